package shared

// Candle represents a unit OHLCV aggregate for a market over a fixed time bucket.
//
// One in-progress candle per market and granularity is mutated in place as ticks
// arrive; it transitions to Complete exactly once, when a tick crosses the next
// period boundary. Completed candles are immutable.
type Candle struct {
	Open   float64
	Low    float64
	High   float64
	Close  float64
	Volume float64

	// Metadata fields.
	Market      string
	Granularity Granularity
	PeriodStart int64
	Complete    bool
}

// Bullish reports whether the candle closed at or above its open.
func (c *Candle) Bullish() bool {
	return c.Close >= c.Open
}

// PeriodEnd returns the exclusive end of the candle's period.
func (c *Candle) PeriodEnd() int64 {
	return c.PeriodStart + c.Granularity.Milliseconds()
}
