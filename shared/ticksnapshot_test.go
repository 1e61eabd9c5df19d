package shared

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestTickSnapshot(t *testing.T) {
	// Ensure tick snapshot size cannot be negative or zero.
	_, err := NewTickSnapshot(-1)
	assert.Error(t, err)

	_, err = NewTickSnapshot(0)
	assert.Error(t, err)

	// Ensure a tick snapshot can be created.
	size := int32(3)
	tickSnapshot, err := NewTickSnapshot(size)
	assert.NoError(t, err)

	// Ensure calling last on an empty snapshot returns nothing.
	_, ok := tickSnapshot.Last()
	assert.False(t, ok)

	// Ensure replacing the last entry of an empty snapshot is a no-op.
	replaced := tickSnapshot.ReplaceLast(Tick{Timestamp: 1, Price: 1})
	assert.False(t, replaced)

	// Ensure calling LastN with zero or negative size returns nil.
	assert.Nil(t, tickSnapshot.LastN(0))
	assert.Nil(t, tickSnapshot.LastN(-1))

	// Ensure pushing past capacity keeps only the most recent entries,
	// ordered oldest to newest.
	for idx := 1; idx <= 5; idx++ {
		tickSnapshot.Update(Tick{
			Timestamp: int64(idx),
			Price:     float64(idx),
			Venue:     "binance",
			Symbol:    "BTC/USD",
		})
	}

	assert.Equal(t, tickSnapshot.Count(), size)
	all := tickSnapshot.All()
	assert.Equal(t, len(all), int(size))
	assert.Equal(t, all[0].Price, float64(3))
	assert.Equal(t, all[1].Price, float64(4))
	assert.Equal(t, all[2].Price, float64(5))

	// Ensure the snapshot sequence is timestamp ordered.
	for idx := 1; idx < len(all); idx++ {
		assert.True(t, all[idx].Timestamp > all[idx-1].Timestamp)
	}

	// Ensure last returns the most recent entry.
	last, ok := tickSnapshot.Last()
	assert.True(t, ok)
	assert.Equal(t, last.Price, float64(5))

	// Ensure LastN clamps when it exceeds the snapshot count.
	lastN := tickSnapshot.LastN(size + 2)
	assert.Equal(t, len(lastN), int(size))

	// Ensure replacing the last entry applies last-write-wins semantics.
	replaced = tickSnapshot.ReplaceLast(Tick{Timestamp: 5, Price: 5.5})
	assert.True(t, replaced)
	last, ok = tickSnapshot.Last()
	assert.True(t, ok)
	assert.Equal(t, last.Price, 5.5)
	assert.Equal(t, tickSnapshot.Count(), size)

	// Ensure snapshots are copies, not views into the ring.
	all = tickSnapshot.All()
	all[0].Price = -1
	fresh := tickSnapshot.All()
	assert.Equal(t, fresh[0].Price, float64(3))
}
