package shared

// ConnectionState represents the transport health of a market subscription.
type ConnectionState int

const (
	Connected ConnectionState = iota
	Reconnecting
	Failed
)

// String stringifies the provided connection state.
func (c ConnectionState) String() string {
	switch c {
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// EntryState represents the lifecycle state of a watchlist entry.
type EntryState int

const (
	EntryIdle EntryState = iota
	EntrySubscribing
	EntryActive
	EntryReconnecting
	EntryFailed
	EntryRemoved
)

// String stringifies the provided entry state.
func (e EntryState) String() string {
	switch e {
	case EntryIdle:
		return "idle"
	case EntrySubscribing:
		return "subscribing"
	case EntryActive:
		return "active"
	case EntryReconnecting:
		return "reconnecting"
	case EntryFailed:
		return "failed"
	case EntryRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
