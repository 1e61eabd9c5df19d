package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

const (
	// DefaultPollInterval is the poll cadence applied to subscriptions
	// that do not set one.
	DefaultPollInterval = time.Second * 2
)

// QuoteFetcher defines the requirements for fetching the current quote of a
// market.
type QuoteFetcher interface {
	// FetchQuote fetches the current quote for the provided market.
	FetchQuote(ctx context.Context, venue string, symbol string) (Quote, error)
}

// PollSourceConfig represents the poll source configuration.
type PollSourceConfig struct {
	// Fetcher fetches current market quotes.
	Fetcher QuoteFetcher
	// Backoff governs retry pacing after fetch failures.
	Backoff Backoff
	// Logger is the source logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane defaults are set.
func (cfg *PollSourceConfig) Validate() error {
	var errs error

	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("quote fetcher cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// PollSource adapts the market data quote endpoint into a tick stream by
// sampling it on an interval. Each subscription runs its own cancelable poll
// loop, so one market's cadence or failures never affect another's.
type PollSource struct {
	cfg *PollSourceConfig
}

// Ensure the PollSource implements the TickSource interface.
var _ shared.TickSource = (*PollSource)(nil)

// NewPollSource instantiates a new poll source.
func NewPollSource(cfg *PollSourceConfig) (*PollSource, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating poll source config: %w", err)
	}

	return &PollSource{
		cfg: cfg,
	}, nil
}

// Subscribe registers the provided market subscription and begins delivering
// ticks to its handler.
func (s *PollSource) Subscribe(sub *shared.TickSubscription) (shared.TickStream, error) {
	err := sub.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating tick subscription: %w", err)
	}

	interval := sub.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream := &pollStream{
		cfg:      s.cfg,
		sub:      sub,
		interval: atomic.NewDuration(interval),
		bump:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go stream.run()

	return stream, nil
}

// pollStream represents one active poll subscription.
type pollStream struct {
	cfg      *PollSourceConfig
	sub      *shared.TickSubscription
	interval *atomic.Duration
	bump     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// Ensure the pollStream implements the TickStream interface.
var _ shared.TickStream = (*pollStream)(nil)

// Cancel terminates the subscription. It blocks until the poll loop exits,
// so no tick is delivered after it returns. Calling it more than once is a
// no-op, it must not be called from the subscription's own callbacks.
func (s *pollStream) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// SetInterval adjusts the poll cadence. The new cadence takes effect
// immediately, non-positive intervals are ignored.
func (s *pollStream) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.interval.Store(interval)
	select {
	case s.bump <- struct{}{}:
	default:
		// A pending nudge already covers the change.
	}
}

// notifyState relays a connection state change to the subscriber.
func (s *pollStream) notifyState(state shared.ConnectionState) {
	s.cfg.Logger.Debug().Str("market", s.sub.Market()).
		Str("state", state.String()).Msg("poll stream connection state changed")

	if s.sub.OnState != nil {
		s.sub.OnState(s.sub.Venue, s.sub.Symbol, state)
	}
}

// run repeatedly samples the quote endpoint and delivers normalized ticks.
// Fetch failures back off exponentially and surface as connection state
// changes; after a sustained failure streak the stream reports failed but
// keeps retrying at the backoff ceiling. Malformed payloads are dropped
// without affecting the connection state.
//
// Must be run as a goroutine.
func (s *pollStream) run() {
	defer close(s.done)

	norm := newNormalizer(s.sub.Venue, s.sub.Symbol)
	state := shared.ConnectionState(-1)
	failures := 0

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.bump:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.interval.Load())
			continue
		case <-timer.C:
		}

		quote, err := s.cfg.Fetcher.FetchQuote(s.ctx, s.sub.Venue, s.sub.Symbol)
		switch {
		case s.ctx.Err() != nil:
			return
		case err != nil:
			var mErr *shared.MalformedTickError
			if errors.As(err, &mErr) {
				s.cfg.Logger.Error().Err(err).Str("market", s.sub.Market()).
					Msg("dropping malformed quote")
				timer.Reset(s.interval.Load())
				continue
			}

			failures++
			next := shared.Reconnecting
			if failures >= maxFailureStreak {
				next = shared.Failed
			}
			if state != next {
				state = next
				s.notifyState(state)
			}

			s.cfg.Logger.Error().Err(err).Str("market", s.sub.Market()).
				Int("failures", failures).Msg("fetching quote failed")
			timer.Reset(s.cfg.Backoff.Next(failures))
			continue
		}

		failures = 0
		if state != shared.Connected {
			state = shared.Connected
			s.notifyState(state)
		}

		if tick, ok := norm.Normalize(quote); ok {
			s.sub.OnTick(tick)
		}

		timer.Reset(s.interval.Load())
	}
}
