package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

const (
	// unsubscribeTimeout bounds the best-effort unsubscribe write on
	// cancellation.
	unsubscribeTimeout = time.Second
)

// PushSourceConfig represents the push source configuration.
type PushSourceConfig struct {
	// URL is the websocket feed url.
	URL string
	// Backoff governs redial pacing after connection failures.
	Backoff Backoff
	// Logger is the source logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane defaults are set.
func (cfg *PushSourceConfig) Validate() error {
	var errs error

	if cfg.URL == "" {
		errs = errors.Join(errs, fmt.Errorf("url cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// PushSource adapts a websocket market data feed into a tick stream. Each
// subscription holds its own connection and redial loop, so one market's
// feed trouble never affects another's. Push and poll sources are
// interchangeable behind the tick source interface.
type PushSource struct {
	cfg *PushSourceConfig
}

// Ensure the PushSource implements the TickSource interface.
var _ shared.TickSource = (*PushSource)(nil)

// NewPushSource instantiates a new push source.
func NewPushSource(cfg *PushSourceConfig) (*PushSource, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating push source config: %w", err)
	}

	return &PushSource{
		cfg: cfg,
	}, nil
}

// Subscribe registers the provided market subscription and begins delivering
// ticks to its handler.
func (s *PushSource) Subscribe(sub *shared.TickSubscription) (shared.TickStream, error) {
	err := sub.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating tick subscription: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream := &pushStream{
		cfg:    s.cfg,
		sub:    sub,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go stream.run()

	return stream, nil
}

// pushStream represents one active push subscription.
type pushStream struct {
	cfg    *PushSourceConfig
	sub    *shared.TickSubscription
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	connMtx sync.Mutex
	conn    *websocket.Conn
}

// Ensure the pushStream implements the TickStream interface.
var _ shared.TickStream = (*pushStream)(nil)

// Cancel terminates the subscription, unsubscribing from the feed on a best
// effort basis. It blocks until the read loop exits, so no tick is delivered
// after it returns. Calling it more than once is a no-op, it must not be
// called from the subscription's own callbacks.
func (s *pushStream) Cancel() {
	s.once.Do(func() {
		s.cancel()

		s.connMtx.Lock()
		if s.conn != nil {
			payload := fmt.Sprintf(`{"type":"unsubscribe","venue":%q,"symbol":%q}`,
				s.sub.Venue, s.sub.Symbol)
			_ = s.conn.SetWriteDeadline(time.Now().Add(unsubscribeTimeout))
			_ = s.conn.WriteMessage(websocket.TextMessage, []byte(payload))
			_ = s.conn.Close()
		}
		s.connMtx.Unlock()

		<-s.done
	})
}

// SetInterval is a no-op. A push feed delivers on the venue's cadence.
func (s *pushStream) SetInterval(interval time.Duration) {}

// track publishes the stream's active connection for cancellation. A
// connection tracked after cancellation is closed immediately so the read
// loop unblocks.
func (s *pushStream) track(conn *websocket.Conn) {
	s.connMtx.Lock()
	defer s.connMtx.Unlock()

	if conn != nil && s.ctx.Err() != nil {
		_ = conn.Close()
	}
	s.conn = conn
}

// notifyState relays a connection state change to the subscriber.
func (s *pushStream) notifyState(state shared.ConnectionState) {
	s.cfg.Logger.Debug().Str("market", s.sub.Market()).
		Str("state", state.String()).Msg("push stream connection state changed")

	if s.sub.OnState != nil {
		s.sub.OnState(s.sub.Venue, s.sub.Symbol, state)
	}
}

// dial connects to the feed and subscribes to the stream's market.
func (s *pushStream) dial() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing feed %s: %w", s.cfg.URL, err)
	}

	payload := fmt.Sprintf(`{"type":"subscribe","venue":%q,"symbol":%q}`,
		s.sub.Venue, s.sub.Symbol)
	err = conn.WriteMessage(websocket.TextMessage, []byte(payload))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", s.sub.Market(), err)
	}

	return conn, nil
}

// read consumes feed messages until the connection errors or the stream is
// canceled. Tick messages normalize and deliver to the subscriber, malformed
// ones are dropped with a log, all other message types are ignored.
func (s *pushStream) read(conn *websocket.Conn, norm *normalizer) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil &&
				websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.cfg.Logger.Error().Err(err).Str("market", s.sub.Market()).
					Msg("reading feed message failed")
			}
			return
		}

		if gjson.GetBytes(payload, "type").String() != "tick" {
			continue
		}

		venue := gjson.GetBytes(payload, "venue").String()
		symbol := gjson.GetBytes(payload, "symbol").String()
		if venue != "" && venue != s.sub.Venue || symbol != "" && symbol != s.sub.Symbol {
			continue
		}

		quote, err := ParseQuote(payload, s.sub.Venue, s.sub.Symbol)
		if err != nil {
			s.cfg.Logger.Error().Err(err).Str("market", s.sub.Market()).
				Msg("dropping malformed tick")
			continue
		}

		if tick, ok := norm.Normalize(quote); ok {
			s.sub.OnTick(tick)
		}
	}
}

// wait sleeps for the provided duration unless the stream is canceled first.
func (s *pushStream) wait(duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// run maintains the feed connection, redialing with backoff and
// resubscribing after drops. Dial failures surface as connection state
// changes; after a sustained failure streak the stream reports failed but
// keeps retrying at the backoff ceiling.
//
// Must be run as a goroutine.
func (s *pushStream) run() {
	defer close(s.done)

	norm := newNormalizer(s.sub.Venue, s.sub.Symbol)
	state := shared.ConnectionState(-1)
	failures := 0

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn, err := s.dial()
		if err != nil {
			if s.ctx.Err() != nil {
				return
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
				Int("failures", failures).Msg("dialing feed failed")
			if !s.wait(s.cfg.Backoff.Next(failures)) {
				return
			}
			continue
		}

		s.track(conn)

		failures = 0
		if state != shared.Connected {
			state = shared.Connected
			s.notifyState(state)
		}

		s.read(conn, norm)
		s.track(nil)
		_ = conn.Close()

		if s.ctx.Err() != nil {
			return
		}

		state = shared.Reconnecting
		s.notifyState(state)
		if !s.wait(s.cfg.Backoff.Next(1)) {
			return
		}
	}
}
