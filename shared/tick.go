package shared

// Side represents the taker side attributed to a tick.
type Side int

const (
	Buy Side = iota
	Sell
)

// String stringifies the provided side.
func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Tick represents a single normalized price observation for a market.
//
// Bid, Ask and Volume are optional on the wire and default to zero when the
// feed omits them. Side is derived at the normalization boundary from price
// direction (an uptick or unchanged price is a buy) since the upstream feeds
// carry no side information.
type Tick struct {
	Timestamp int64
	Price     float64
	Bid       float64
	Ask       float64
	Volume    float64
	Side      Side

	// Metadata fields.
	Venue  string
	Symbol string
}

// Market returns the market key for the tick.
func (t *Tick) Market() string {
	return MarketKey(t.Venue, t.Symbol)
}

// MarketKey returns the canonical market key for a venue and symbol pair.
func MarketKey(venue string, symbol string) string {
	return venue + ":" + symbol
}
