package fetch

import (
	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

// normalizer converts raw quotes into normalized ticks. The trade side is
// derived from the price direction (upticks and unchanged prices read as
// buys) and per-tick volume from the cumulative 24-hour volume delta, clamped
// at zero across daily resets. Quotes identical to the previous one are
// suppressed so downstream buffers only see fresh data.
//
// A normalizer is owned by a single stream goroutine.
type normalizer struct {
	venue  string
	symbol string
	last   Quote
	primed bool
}

func newNormalizer(venue string, symbol string) *normalizer {
	return &normalizer{
		venue:  venue,
		symbol: symbol,
	}
}

// Normalize converts the provided quote into a tick. It returns false when
// the quote is unchanged from the previous one.
func (n *normalizer) Normalize(quote Quote) (shared.Tick, bool) {
	if n.primed && quote == n.last {
		return shared.Tick{}, false
	}

	side := shared.Buy
	if n.primed && quote.Price < n.last.Price {
		side = shared.Sell
	}

	var volume float64
	if n.primed && quote.Volume24h > n.last.Volume24h {
		volume = quote.Volume24h - n.last.Volume24h
	}

	n.last = quote
	n.primed = true

	return shared.Tick{
		Timestamp: quote.Timestamp,
		Price:     quote.Price,
		Bid:       quote.Bid,
		Ask:       quote.Ask,
		Volume:    volume,
		Side:      side,
		Venue:     n.venue,
		Symbol:    n.symbol,
	}, true
}
