package shared

import (
	"time"

	"github.com/google/uuid"
)

// WatchlistEntry represents a tracked venue and symbol pair. Each entry owns
// one live subscription with its associated buffer and aggregation state for
// its lifetime.
type WatchlistEntry struct {
	ID          string `json:"id"`
	Venue       string `json:"venue"`
	Symbol      string `json:"symbol"`
	DisplayName string `json:"displayName,omitempty"`
	AddedAt     int64  `json:"addedAt"`
}

// NewWatchlistEntry initializes a new watchlist entry.
func NewWatchlistEntry(venue string, symbol string, displayName string) *WatchlistEntry {
	return &WatchlistEntry{
		ID:          uuid.NewString(),
		Venue:       venue,
		Symbol:      symbol,
		DisplayName: displayName,
		AddedAt:     time.Now().UnixMilli(),
	}
}

// Market returns the market key for the entry.
func (e *WatchlistEntry) Market() string {
	return MarketKey(e.Venue, e.Symbol)
}

// EntryStatus summarizes the runtime state of a watchlist entry.
type EntryStatus struct {
	Entry       WatchlistEntry `json:"entry"`
	State       string         `json:"state"`
	Granularity string         `json:"granularity"`
	Focused     bool           `json:"focused"`
}
