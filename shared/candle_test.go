package shared

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestCandle(t *testing.T) {
	// Ensure bullishness follows the close relative to the open.
	bullish := Candle{Open: 100, Close: 101, High: 101, Low: 100}
	assert.True(t, bullish.Bullish())

	flat := Candle{Open: 100, Close: 100, High: 100, Low: 100}
	assert.True(t, flat.Bullish())

	bearish := Candle{Open: 101, Close: 100, High: 101, Low: 100}
	assert.False(t, bearish.Bullish())

	// Ensure the period end is exclusive of the next bucket.
	candle := Candle{PeriodStart: 60_000, Granularity: OneMinute}
	assert.Equal(t, candle.PeriodEnd(), int64(120_000))
}
