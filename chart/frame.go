package chart

import (
	"github.com/captainplanet9000/cival-dashboard-sub013/book"
	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

// Options represents the target rendering surface for a frame.
type Options struct {
	// Width and Height are the candle canvas dimensions.
	Width  float64
	Height float64
	// Depth is the number of synthetic ladder levels per side.
	Depth int
	// Window is the number of visible candles, newest last. Zero or
	// negative renders every retained candle.
	Window int
}

// Frame is the ephemeral render output for one refresh of a watchlist entry.
// It is recomputed on every refresh and never persisted. A frame is a pure
// projection of its entry snapshot: identical snapshots and options always
// produce identical frames.
type Frame struct {
	Market              string        `json:"market"`
	Venue               string        `json:"venue"`
	Symbol              string        `json:"symbol"`
	State               string        `json:"state"`
	Granularity         string        `json:"granularity"`
	Focused             bool          `json:"focused"`
	InsufficientHistory bool          `json:"insufficientHistory"`
	UpdatedAt           int64         `json:"updatedAt"`
	Series              []SeriesPoint `json:"series"`
	VWAP                []SeriesPoint `json:"vwap"`
	Candles             []CandleBox   `json:"candles"`
	Ladder              []LadderRow   `json:"ladder"`
}

// BuildFrame assembles the render projections for the provided entry
// snapshot. Inputs the projections cannot use (no ticks, empty candle
// window, missing generator) degrade to empty sections rather than errors so
// the refresh loop never dies on a bad frame. A nil snapshot yields nil.
func BuildFrame(snapshot *shared.EntrySnapshot, generator *book.Generator, opts Options) *Frame {
	if snapshot == nil {
		return nil
	}

	visible := make([]shared.Candle, 0, len(snapshot.Candles)+1)
	visible = append(visible, snapshot.Candles...)
	if snapshot.Current != nil {
		visible = append(visible, *snapshot.Current)
	}
	if opts.Window > 0 && len(visible) > opts.Window {
		visible = visible[len(visible)-opts.Window:]
	}

	ladder := []LadderRow{}
	var updatedAt int64
	if len(snapshot.Ticks) > 0 {
		latest := snapshot.Ticks[len(snapshot.Ticks)-1]
		updatedAt = latest.Timestamp
		if generator != nil {
			ladder = ToLadderRows(generator.Generate(latest.Price, opts.Depth))
		}
	}

	return &Frame{
		Market:              snapshot.Entry.Market(),
		Venue:               snapshot.Entry.Venue,
		Symbol:              snapshot.Entry.Symbol,
		State:               snapshot.State.String(),
		Granularity:         snapshot.Granularity.String(),
		Focused:             snapshot.Focused,
		InsufficientHistory: snapshot.InsufficientHistory,
		UpdatedAt:           updatedAt,
		Series:              ToSeries(snapshot.Ticks),
		VWAP:                ToVWAP(snapshot.Ticks),
		Candles:             ToCandleGeometry(visible, opts.Width, opts.Height),
		Ladder:              ladder,
	}
}
