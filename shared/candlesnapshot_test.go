package shared

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestCandleSnapshot(t *testing.T) {
	// Ensure candle snapshot size cannot be negative or zero.
	_, err := NewCandleSnapshot(-1)
	assert.Error(t, err)

	_, err = NewCandleSnapshot(0)
	assert.Error(t, err)

	// Ensure a candle snapshot can be created.
	size := int32(4)
	candleSnapshot, err := NewCandleSnapshot(size)
	assert.NoError(t, err)

	// Ensure calling last on an empty snapshot returns nothing.
	_, ok := candleSnapshot.Last()
	assert.False(t, ok)

	// Ensure the snapshot can be updated with candles.
	for idx := range size {
		candleSnapshot.Update(Candle{
			Open:        float64(idx + 1),
			Close:       float64(idx + 2),
			High:        float64(idx + 3),
			Low:         float64(idx),
			Volume:      float64(idx),
			PeriodStart: int64(idx) * 60_000,
			Granularity: OneMinute,
			Complete:    true,
		})
	}

	assert.Equal(t, candleSnapshot.Count(), size)

	// Ensure last returns the last added entry.
	last, ok := candleSnapshot.Last()
	assert.True(t, ok)
	assert.Equal(t, last.Low, float64(3))

	// Ensure updates at capacity overwrite the oldest entry.
	candleSnapshot.Update(Candle{
		Open:        5,
		Close:       8,
		High:        9,
		Low:         3,
		Volume:      2,
		PeriodStart: 4 * 60_000,
		Granularity: OneMinute,
		Complete:    true,
	})

	assert.Equal(t, candleSnapshot.Count(), size)
	all := candleSnapshot.All()
	assert.Equal(t, len(all), int(size))
	assert.Equal(t, all[0].PeriodStart, int64(60_000))
	assert.Equal(t, all[len(all)-1].PeriodStart, int64(240_000))

	// Ensure LastN returns the most recent entries oldest to newest.
	lastN := candleSnapshot.LastN(2)
	assert.Equal(t, len(lastN), 2)
	assert.Equal(t, lastN[0].PeriodStart, int64(180_000))
	assert.Equal(t, lastN[1].PeriodStart, int64(240_000))

	// Ensure resetting installs the provided candles.
	candleSnapshot.Reset([]Candle{
		{Open: 1, Close: 2, High: 2, Low: 1, PeriodStart: 0, Complete: true},
		{Open: 2, Close: 3, High: 3, Low: 2, PeriodStart: 60_000, Complete: true},
	})
	assert.Equal(t, candleSnapshot.Count(), int32(2))
	last, ok = candleSnapshot.Last()
	assert.True(t, ok)
	assert.Equal(t, last.PeriodStart, int64(60_000))

	// Ensure resetting past capacity keeps only the most recent entries.
	oversized := make([]Candle, size+2)
	for idx := range oversized {
		oversized[idx] = Candle{PeriodStart: int64(idx) * 60_000, Complete: true}
	}
	candleSnapshot.Reset(oversized)
	assert.Equal(t, candleSnapshot.Count(), size)
	all = candleSnapshot.All()
	assert.Equal(t, all[0].PeriodStart, int64(120_000))
	assert.Equal(t, all[len(all)-1].PeriodStart, int64(300_000))
}
