package shared

// StatusCode represents a request or signal status code.
type StatusCode int

const (
	Processing StatusCode = iota
	Processed
)

// AddEntrySignal represents a signal to activate a watchlist entry.
type AddEntrySignal struct {
	Entry  WatchlistEntry
	Status chan StatusCode
}

// NewAddEntrySignal initializes a new add entry signal.
func NewAddEntrySignal(entry WatchlistEntry) AddEntrySignal {
	return AddEntrySignal{
		Entry:  entry,
		Status: make(chan StatusCode, 1),
	}
}

// RemoveEntrySignal represents a signal to deactivate a watchlist entry and
// discard its associated state.
type RemoveEntrySignal struct {
	ID     string
	Status chan StatusCode
}

// NewRemoveEntrySignal initializes a new remove entry signal.
func NewRemoveEntrySignal(id string) RemoveEntrySignal {
	return RemoveEntrySignal{
		ID:     id,
		Status: make(chan StatusCode, 1),
	}
}

// FocusSignal represents a signal to render the provided watchlist entry at
// full resolution.
type FocusSignal struct {
	ID     string
	Status chan StatusCode
}

// NewFocusSignal initializes a new focus signal.
func NewFocusSignal(id string) FocusSignal {
	return FocusSignal{
		ID:     id,
		Status: make(chan StatusCode, 1),
	}
}

// GranularitySignal represents a signal to re-point a watchlist entry's candle
// aggregation at a new granularity.
type GranularitySignal struct {
	ID          string
	Granularity Granularity
	Status      chan StatusCode
}

// NewGranularitySignal initializes a new granularity signal.
func NewGranularitySignal(id string, granularity Granularity) GranularitySignal {
	return GranularitySignal{
		ID:          id,
		Granularity: granularity,
		Status:      make(chan StatusCode, 1),
	}
}
