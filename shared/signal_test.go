package shared

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestSignalStatus(t *testing.T) {
	// Ensure signals can be created and can receive status updates on their corresponding channels.
	entry := NewWatchlistEntry("binance", "BTC/USD", "Bitcoin")

	addSignal := NewAddEntrySignal(*entry)
	assert.Equal(t, addSignal.Entry.Market(), "binance:BTC/USD")
	go func() { addSignal.Status <- Processed }()
	status := <-addSignal.Status
	assert.Equal(t, status, Processed)

	removeSignal := NewRemoveEntrySignal(entry.ID)
	assert.Equal(t, removeSignal.ID, entry.ID)
	go func() { removeSignal.Status <- Processed }()
	status = <-removeSignal.Status
	assert.Equal(t, status, Processed)

	focusSignal := NewFocusSignal(entry.ID)
	assert.Equal(t, focusSignal.ID, entry.ID)
	go func() { focusSignal.Status <- Processed }()
	status = <-focusSignal.Status
	assert.Equal(t, status, Processed)

	granularitySignal := NewGranularitySignal(entry.ID, FiveMinute)
	assert.Equal(t, granularitySignal.Granularity, FiveMinute)
	go func() { granularitySignal.Status <- Processed }()
	status = <-granularitySignal.Status
	assert.Equal(t, status, Processed)
}
