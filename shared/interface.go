package shared

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TickHandler consumes normalized ticks from a subscription.
type TickHandler func(tick Tick)

// StateHandler consumes connection state transitions for a subscription.
type StateHandler func(venue string, symbol string, state ConnectionState)

// TickSubscription describes a market subscription for a tick source.
type TickSubscription struct {
	Venue    string
	Symbol   string
	Interval time.Duration
	OnTick   TickHandler
	OnState  StateHandler
}

// Validate asserts the subscription is valid.
func (s *TickSubscription) Validate() error {
	var errs error

	if s.Venue == "" {
		errs = errors.Join(errs, fmt.Errorf("venue cannot be an empty string"))
	}
	if s.Symbol == "" {
		errs = errors.Join(errs, fmt.Errorf("symbol cannot be an empty string"))
	}
	if s.OnTick == nil {
		errs = errors.Join(errs, fmt.Errorf("tick handler cannot be nil"))
	}

	return errs
}

// Market returns the market key for the subscription.
func (s *TickSubscription) Market() string {
	return MarketKey(s.Venue, s.Symbol)
}

// TickStream is a live market data subscription handle.
type TickStream interface {
	// Cancel terminates the subscription. Calling it more than once is a no-op.
	Cancel()
	// SetInterval adjusts the refresh cadence of a polled subscription.
	// It is a no-op for push subscriptions.
	SetInterval(interval time.Duration)
}

// TickSource defines the requirements for streaming normalized ticks. Polled
// and pushed transports are interchangeable behind this interface.
type TickSource interface {
	// Subscribe registers the provided market subscription and begins
	// delivering ticks to its handler.
	Subscribe(sub *TickSubscription) (TickStream, error)
}

// HistoryFetcher defines the requirements for fetching historical candle data.
type HistoryFetcher interface {
	// FetchCandleHistory fetches completed candles for a market, ordered
	// oldest to newest.
	FetchCandleHistory(ctx context.Context, venue string, symbol string, granularity Granularity, start int64, end int64, limit int) ([]Candle, error)
}

// WatchlistStore defines the requirements for persisting watchlist entries.
type WatchlistStore interface {
	// CreateWatchlistEntry persists the provided watchlist entry.
	CreateWatchlistEntry(ctx context.Context, entry *WatchlistEntry) error
	// DeleteWatchlistEntry removes the watchlist entry with the provided id.
	DeleteWatchlistEntry(ctx context.Context, id string) error
	// ListWatchlistEntries fetches all persisted watchlist entries.
	ListWatchlistEntries(ctx context.Context) ([]WatchlistEntry, error)
}
