package chart

import (
	"github.com/captainplanet9000/cival-dashboard-sub013/book"
)

// LadderRow represents a single row of the order book view. Relative is the
// row volume normalized against the largest level in the book, for rendering
// depth bars.
type LadderRow struct {
	Price    float64 `json:"price"`
	Volume   float64 `json:"volume"`
	Relative float64 `json:"relative"`
	Side     string  `json:"side"`
}

// ToLadderRows projects the provided book into ordered ladder rows: asks in
// descending price order stacked above bids in descending price order, the
// conventional depth-ladder layout. An empty book yields an empty result.
func ToLadderRows(b book.Book) []LadderRow {
	if len(b.Bids) == 0 && len(b.Asks) == 0 {
		return []LadderRow{}
	}

	var maxVolume float64
	for idx := range b.Bids {
		if b.Bids[idx].Volume > maxVolume {
			maxVolume = b.Bids[idx].Volume
		}
	}
	for idx := range b.Asks {
		if b.Asks[idx].Volume > maxVolume {
			maxVolume = b.Asks[idx].Volume
		}
	}

	relative := func(volume float64) float64 {
		if maxVolume == 0 {
			return 0
		}
		return volume / maxVolume
	}

	rows := make([]LadderRow, 0, len(b.Bids)+len(b.Asks))

	// Asks are generated nearest-first; the ladder renders them farthest
	// price first.
	for idx := len(b.Asks) - 1; idx >= 0; idx-- {
		rows = append(rows, LadderRow{
			Price:    b.Asks[idx].Price,
			Volume:   b.Asks[idx].Volume,
			Relative: relative(b.Asks[idx].Volume),
			Side:     "ask",
		})
	}
	for idx := range b.Bids {
		rows = append(rows, LadderRow{
			Price:    b.Bids[idx].Price,
			Volume:   b.Bids[idx].Volume,
			Relative: relative(b.Bids[idx].Volume),
			Side:     "bid",
		})
	}

	return rows
}
