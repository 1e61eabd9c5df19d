package shared

import (
	"time"
)

const (
	// TimeoutDuration is the maximum time to wait before timing out.
	TimeoutDuration = time.Second * 4
)

// EntrySnapshot is a read-only view of a watchlist entry's market state.
// Every field is a copy; mutating a snapshot has no effect on the live
// buffer or aggregation state it was derived from.
type EntrySnapshot struct {
	Entry               WatchlistEntry
	State               EntryState
	Granularity         Granularity
	Focused             bool
	InsufficientHistory bool
	Ticks               []Tick
	Candles             []Candle
	Current             *Candle
}

// SnapshotRequest represents a request to fetch a read-only snapshot of a
// watchlist entry's market state.
type SnapshotRequest struct {
	ID       string
	Response chan *EntrySnapshot
}

// NewSnapshotRequest initializes a new snapshot request.
func NewSnapshotRequest(id string) *SnapshotRequest {
	return &SnapshotRequest{
		ID:       id,
		Response: make(chan *EntrySnapshot, 1),
	}
}

// StatusRequest represents a request to fetch the runtime status of all
// active watchlist entries.
type StatusRequest struct {
	Response chan []EntryStatus
}

// NewStatusRequest initializes a new status request.
func NewStatusRequest() *StatusRequest {
	return &StatusRequest{
		Response: make(chan []EntryStatus, 1),
	}
}
