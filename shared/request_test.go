package shared

import (
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestRequestResponse(t *testing.T) {
	// Ensure requests can be created and can receive their responses on their corresponding channels.
	entry := NewWatchlistEntry("binance", "BTC/USD", "Bitcoin")

	snapshotReq := NewSnapshotRequest(entry.ID)
	assert.NotNil(t, snapshotReq)
	go func() {
		snapshotReq.Response <- &EntrySnapshot{
			Entry:       *entry,
			State:       EntryActive,
			Granularity: OneMinute,
		}
	}()
	snapshotResp := <-snapshotReq.Response
	assert.Equal(t, snapshotResp.Entry.ID, entry.ID)
	assert.Equal(t, snapshotResp.State, EntryActive)

	statusReq := NewStatusRequest()
	assert.NotNil(t, statusReq)
	go func() { statusReq.Response <- []EntryStatus{} }()
	statusResp := <-statusReq.Response
	assert.Equal(t, statusResp, []EntryStatus{})
}
