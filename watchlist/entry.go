package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/captainplanet9000/cival-dashboard-sub013/candle"
	"github.com/captainplanet9000/cival-dashboard-sub013/metrics"
	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

const (
	// bufferSize is the default buffer size for channels.
	bufferSize = 64
)

// BackfillSignal carries fetched candle history into an entry pipeline. The
// epoch pins the signal to the granularity generation it was requested for,
// results from a superseded generation are discarded.
type BackfillSignal struct {
	Granularity shared.Granularity
	Epoch       int64
	Candles     []shared.Candle
	Err         error
}

// EntryConfig represents the configuration of a tracked watchlist entry.
type EntryConfig struct {
	// Entry is the persisted watchlist entry being tracked.
	Entry shared.WatchlistEntry
	// Granularity is the entry's initial candle granularity.
	Granularity shared.Granularity
	// TickSize is the tick buffer capacity.
	TickSize int32
	// HistorySize is the completed candle retention bound.
	HistorySize int32
	// RequestBackfill schedules a candle history fetch for the entry.
	RequestBackfill func(granularity shared.Granularity, epoch int64)
	// Metrics is the dashboard metrics collection.
	Metrics *metrics.Metrics
	// Logger is the entry logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane defaults are set.
func (cfg *EntryConfig) Validate() error {
	var errs error

	if cfg.Entry.ID == "" {
		errs = errors.Join(errs, fmt.Errorf("entry id cannot be an empty string"))
	}
	if cfg.Entry.Venue == "" {
		errs = errors.Join(errs, fmt.Errorf("entry venue cannot be an empty string"))
	}
	if cfg.Entry.Symbol == "" {
		errs = errors.Join(errs, fmt.Errorf("entry symbol cannot be an empty string"))
	}
	if cfg.RequestBackfill == nil {
		errs = errors.Join(errs, fmt.Errorf("backfill request function cannot be nil"))
	}
	if cfg.Metrics == nil {
		errs = errors.Join(errs, fmt.Errorf("metrics cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Entry is the live pipeline of a tracked watchlist entry: a tick buffer and
// a candle aggregator fed through bounded channels. All pipeline state is
// owned by the entry's run goroutine; other goroutines interact through the
// non-blocking send methods and the atomics, so one entry can never block or
// corrupt another.
type Entry struct {
	cfg    *EntryConfig
	market string

	state       *atomic.Int32
	focused     *atomic.Bool
	epoch       *atomic.Int64
	granularity *atomic.Int32

	// insufficientHistory is owned by the run goroutine.
	insufficientHistory bool

	ticks      *shared.TickSnapshot
	aggregator *candle.Aggregator

	// stream and stop are the entry's tick subscription handle and
	// pipeline cancel, set by the manager.
	stream shared.TickStream
	stop   context.CancelFunc

	tickSignals        chan shared.Tick
	connSignals        chan shared.ConnectionState
	granularitySignals chan shared.GranularitySignal
	backfillSignals    chan BackfillSignal
	snapshotRequests   chan *shared.SnapshotRequest
}

// NewEntry initializes a new watchlist entry pipeline.
func NewEntry(cfg *EntryConfig) (*Entry, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating entry config: %w", err)
	}

	if cfg.TickSize == 0 {
		cfg.TickSize = shared.DefaultTickSnapshotSize
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = shared.DefaultCandleSnapshotSize
	}

	ticks, err := shared.NewTickSnapshot(cfg.TickSize)
	if err != nil {
		return nil, fmt.Errorf("creating tick snapshot: %w", err)
	}

	market := cfg.Entry.Market()
	aggregator, err := candle.NewAggregator(&candle.AggregatorConfig{
		Market:      market,
		Granularity: cfg.Granularity,
		HistorySize: cfg.HistorySize,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating candle aggregator: %w", err)
	}

	return &Entry{
		cfg:                cfg,
		market:             market,
		state:              atomic.NewInt32(int32(shared.EntryIdle)),
		focused:            atomic.NewBool(false),
		epoch:              atomic.NewInt64(0),
		granularity:        atomic.NewInt32(int32(cfg.Granularity)),
		ticks:              ticks,
		aggregator:         aggregator,
		tickSignals:        make(chan shared.Tick, bufferSize),
		connSignals:        make(chan shared.ConnectionState, bufferSize),
		granularitySignals: make(chan shared.GranularitySignal, bufferSize),
		backfillSignals:    make(chan BackfillSignal, bufferSize),
		snapshotRequests:   make(chan *shared.SnapshotRequest, bufferSize),
	}, nil
}

// State returns the entry's lifecycle state.
func (e *Entry) State() shared.EntryState {
	return shared.EntryState(e.state.Load())
}

// setState transitions the entry's lifecycle state.
func (e *Entry) setState(state shared.EntryState) {
	if shared.EntryState(e.state.Swap(int32(state))) != state {
		e.cfg.Logger.Debug().Str("market", e.market).
			Str("state", state.String()).Msg("entry state changed")
	}
}

// Focused reports whether the entry is the dashboard's focused entry.
func (e *Entry) Focused() bool {
	return e.focused.Load()
}

// SetFocused marks the entry focused or idle.
func (e *Entry) SetFocused(focused bool) {
	e.focused.Store(focused)
}

// Epoch returns the entry's current granularity generation.
func (e *Entry) Epoch() int64 {
	return e.epoch.Load()
}

// Granularity returns the entry's candle granularity.
func (e *Entry) Granularity() shared.Granularity {
	return shared.Granularity(e.granularity.Load())
}

// SendTick relays the provided tick for processing.
func (e *Entry) SendTick(tick shared.Tick) {
	select {
	case e.tickSignals <- tick:
		// do nothing.
	default:
		e.cfg.Metrics.TicksDropped.WithLabelValues(e.market, "backpressure").Inc()
		e.cfg.Logger.Error().Msgf("%s tick channel at capacity: %d/%d",
			e.market, len(e.tickSignals), bufferSize)
	}
}

// SendConnectionState relays the provided connection state for processing.
func (e *Entry) SendConnectionState(state shared.ConnectionState) {
	select {
	case e.connSignals <- state:
		// do nothing.
	default:
		e.cfg.Logger.Error().Msgf("%s connection channel at capacity: %d/%d",
			e.market, len(e.connSignals), bufferSize)
	}
}

// SendGranularitySignal relays the provided granularity change for processing.
func (e *Entry) SendGranularitySignal(signal shared.GranularitySignal) {
	select {
	case e.granularitySignals <- signal:
		// do nothing.
	default:
		e.cfg.Logger.Error().Msgf("%s granularity channel at capacity: %d/%d",
			e.market, len(e.granularitySignals), bufferSize)
	}
}

// SendBackfill relays fetched candle history for processing.
func (e *Entry) SendBackfill(signal BackfillSignal) {
	select {
	case e.backfillSignals <- signal:
		// do nothing.
	default:
		e.cfg.Logger.Error().Msgf("%s backfill channel at capacity: %d/%d",
			e.market, len(e.backfillSignals), bufferSize)
	}
}

// SendSnapshotRequest relays the provided snapshot request for processing.
func (e *Entry) SendSnapshotRequest(req *shared.SnapshotRequest) {
	select {
	case e.snapshotRequests <- req:
		// do nothing.
	default:
		e.cfg.Logger.Error().Msgf("%s snapshot request channel at capacity: %d/%d",
			e.market, len(e.snapshotRequests), bufferSize)
	}
}

// handleTick processes the provided tick. Ticks newer than the buffered view
// append and aggregate; a tick carrying the newest timestamp again replaces
// its predecessor, the later write wins; anything older is dropped.
func (e *Entry) handleTick(tick shared.Tick) {
	e.cfg.Metrics.TicksProcessed.WithLabelValues(e.market).Inc()

	last, ok := e.ticks.Last()
	switch {
	case !ok || tick.Timestamp > last.Timestamp:
		e.ticks.Update(tick)
		if completed := e.aggregator.Ingest(tick); completed != nil {
			e.cfg.Metrics.CandlesCompleted.WithLabelValues(e.market, completed.Granularity.String()).Inc()
		}
	case tick.Timestamp == last.Timestamp:
		e.ticks.ReplaceLast(tick)
		e.aggregator.Amend(last, tick)
	default:
		e.cfg.Metrics.TicksDropped.WithLabelValues(e.market, "stale").Inc()
		e.cfg.Logger.Debug().Str("market", e.market).
			Int64("timestamp", tick.Timestamp).Msg("dropping stale tick")
	}
}

// handleConnectionState processes the provided connection state transition.
func (e *Entry) handleConnectionState(state shared.ConnectionState) {
	switch state {
	case shared.Connected:
		e.setState(shared.EntryActive)
	case shared.Reconnecting:
		e.cfg.Metrics.Reconnects.WithLabelValues(e.market).Inc()
		e.setState(shared.EntryReconnecting)
	case shared.Failed:
		e.setState(shared.EntryFailed)
	}
}

// handleGranularitySignal processes the provided granularity change. The
// candle series re-derives from the retained ticks; when they cannot fill a
// single period the entry flags insufficient history. Either way a backfill
// for the new granularity is requested under a fresh epoch, so any fetch
// still in flight for the previous granularity is discarded on arrival.
func (e *Entry) handleGranularitySignal(signal shared.GranularitySignal) {
	defer func() {
		signal.Status <- shared.Processed
	}()

	if signal.Granularity == e.Granularity() {
		return
	}

	epoch := e.epoch.Inc()
	insufficient := e.aggregator.Rebase(signal.Granularity, e.ticks.All())
	e.granularity.Store(int32(signal.Granularity))
	e.insufficientHistory = insufficient

	e.cfg.Logger.Info().Str("market", e.market).
		Str("granularity", signal.Granularity.String()).
		Bool("insufficientHistory", insufficient).Msg("granularity changed")

	e.cfg.RequestBackfill(signal.Granularity, epoch)
}

// handleBackfill processes the provided backfill result. Results for a
// superseded epoch or granularity are discarded.
func (e *Entry) handleBackfill(signal BackfillSignal) {
	if signal.Epoch != e.epoch.Load() || signal.Granularity != e.Granularity() {
		e.cfg.Logger.Debug().Str("market", e.market).
			Int64("epoch", signal.Epoch).Msg("discarding superseded backfill")
		return
	}

	if signal.Err != nil {
		e.cfg.Metrics.Backfills.WithLabelValues(e.market, "error").Inc()
		e.cfg.Logger.Error().Err(signal.Err).Str("market", e.market).
			Msg("backfilling candle history failed")
		return
	}

	e.cfg.Metrics.Backfills.WithLabelValues(e.market, "ok").Inc()
	e.aggregator.SeedHistory(signal.Candles)
	if len(e.aggregator.History()) > 0 {
		e.insufficientHistory = false
	}
}

// handleSnapshotRequest responds with a read-only copy of the entry's market
// state.
func (e *Entry) handleSnapshotRequest(req *shared.SnapshotRequest) {
	snapshot := &shared.EntrySnapshot{
		Entry:               e.cfg.Entry,
		State:               e.State(),
		Granularity:         e.Granularity(),
		Focused:             e.focused.Load(),
		InsufficientHistory: e.insufficientHistory,
		Ticks:               e.ticks.All(),
		Candles:             e.aggregator.History(),
	}
	if current, ok := e.aggregator.Current(); ok {
		snapshot.Current = &current
	}

	req.Response <- snapshot
}

// Run drives the entry pipeline. It requests the initial candle history
// backfill and then processes signals until the provided context is
// cancelled.
//
// Must be run as a goroutine.
func (e *Entry) Run(ctx context.Context) {
	e.cfg.RequestBackfill(e.Granularity(), e.epoch.Load())

	for {
		select {
		case <-ctx.Done():
			e.setState(shared.EntryRemoved)
			return
		case tick := <-e.tickSignals:
			e.handleTick(tick)
		case state := <-e.connSignals:
			e.handleConnectionState(state)
		case signal := <-e.granularitySignals:
			e.handleGranularitySignal(signal)
		case signal := <-e.backfillSignals:
			e.handleBackfill(signal)
		case req := <-e.snapshotRequests:
			e.handleSnapshotRequest(req)
		}
	}
}

// Snapshot fetches a read-only snapshot of the entry's market state. It
// returns nil if the pipeline does not respond within the shared timeout.
func (e *Entry) Snapshot() *shared.EntrySnapshot {
	req := shared.NewSnapshotRequest(e.cfg.Entry.ID)
	e.SendSnapshotRequest(req)

	select {
	case snapshot := <-req.Response:
		return snapshot
	case <-time.After(shared.TimeoutDuration):
		e.cfg.Logger.Error().Str("market", e.market).
			Msg("timed out fetching entry snapshot")
		return nil
	}
}
