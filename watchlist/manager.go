package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/captainplanet9000/cival-dashboard-sub013/book"
	"github.com/captainplanet9000/cival-dashboard-sub013/chart"
	"github.com/captainplanet9000/cival-dashboard-sub013/metrics"
	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

const (
	// maxWorkers is the maximum number of concurrent workers.
	maxWorkers = 8

	// DefaultFocusedInterval is the default poll and refresh cadence of
	// the focused entry.
	DefaultFocusedInterval = time.Second
	// DefaultIdleInterval is the default poll and refresh cadence of
	// unfocused entries.
	DefaultIdleInterval = time.Second * 5

	// defaultFrameWidth and defaultFrameHeight are the default render
	// canvas dimensions.
	defaultFrameWidth  = 800
	defaultFrameHeight = 450
	// defaultFrameWindow is the default number of visible candles.
	defaultFrameWindow = 60
)

// ManagerConfig represents the watchlist manager configuration.
type ManagerConfig struct {
	// Source streams live market ticks.
	Source shared.TickSource
	// Fetcher fetches historical candles for backfills.
	Fetcher shared.HistoryFetcher
	// PublishFrame publishes a rendered frame.
	PublishFrame func(frame *chart.Frame)
	// JobScheduler schedules per-entry frame refresh jobs.
	JobScheduler *gocron.Scheduler
	// Metrics is the dashboard metrics collection.
	Metrics *metrics.Metrics
	// Health is the dashboard health status.
	Health *metrics.HealthStatus
	// DefaultGranularity is the candle granularity applied to new entries.
	DefaultGranularity shared.Granularity
	// FocusedInterval is the poll and refresh cadence of the focused
	// entry.
	FocusedInterval time.Duration
	// IdleInterval is the poll and refresh cadence of unfocused entries.
	IdleInterval time.Duration
	// TickSize is the per-entry tick buffer capacity.
	TickSize int32
	// HistorySize is the per-entry completed candle retention bound.
	HistorySize int32
	// RenderOptions sizes the render projections.
	RenderOptions chart.Options
	// Logger is the manager logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane defaults are set.
func (cfg *ManagerConfig) Validate() error {
	var errs error

	if cfg.Source == nil {
		errs = errors.Join(errs, fmt.Errorf("tick source cannot be nil"))
	}
	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("history fetcher cannot be nil"))
	}
	if cfg.PublishFrame == nil {
		errs = errors.Join(errs, fmt.Errorf("frame publish function cannot be nil"))
	}
	if cfg.JobScheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("job scheduler cannot be nil"))
	}
	if cfg.Metrics == nil {
		errs = errors.Join(errs, fmt.Errorf("metrics cannot be nil"))
	}
	if cfg.Health == nil {
		errs = errors.Join(errs, fmt.Errorf("health status cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Manager manages the lifecycle processes of all watchlist entries: adding
// and removing markets, focus, granularity changes, frame refresh scheduling
// and candle history backfills. The entry map is owned by the manager's run
// goroutine; all mutations flow through signals.
type Manager struct {
	cfg       *ManagerConfig
	generator *book.Generator
	entries   map[string]*Entry
	focusedID string

	addSignals         chan shared.AddEntrySignal
	removeSignals      chan shared.RemoveEntrySignal
	focusSignals       chan shared.FocusSignal
	granularitySignals chan shared.GranularitySignal
	snapshotRequests   chan *shared.SnapshotRequest
	statusRequests     chan *shared.StatusRequest
	workers            chan struct{}
}

// NewManager initializes a new watchlist manager.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating manager config: %w", err)
	}

	if cfg.FocusedInterval <= 0 {
		cfg.FocusedInterval = DefaultFocusedInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultIdleInterval
	}
	if cfg.RenderOptions.Width <= 0 {
		cfg.RenderOptions.Width = defaultFrameWidth
	}
	if cfg.RenderOptions.Height <= 0 {
		cfg.RenderOptions.Height = defaultFrameHeight
	}
	if cfg.RenderOptions.Depth <= 0 {
		cfg.RenderOptions.Depth = book.DefaultDepth
	}
	if cfg.RenderOptions.Window <= 0 {
		cfg.RenderOptions.Window = defaultFrameWindow
	}

	generator, err := book.NewGenerator(&book.GeneratorConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating book generator: %w", err)
	}

	return &Manager{
		cfg:                cfg,
		generator:          generator,
		entries:            make(map[string]*Entry),
		addSignals:         make(chan shared.AddEntrySignal, bufferSize),
		removeSignals:      make(chan shared.RemoveEntrySignal, bufferSize),
		focusSignals:       make(chan shared.FocusSignal, bufferSize),
		granularitySignals: make(chan shared.GranularitySignal, bufferSize),
		snapshotRequests:   make(chan *shared.SnapshotRequest, bufferSize),
		statusRequests:     make(chan *shared.StatusRequest, bufferSize),
		workers:            make(chan struct{}, maxWorkers),
	}, nil
}

// SendAddSignal relays the provided add signal for processing.
func (m *Manager) SendAddSignal(signal shared.AddEntrySignal) {
	select {
	case m.addSignals <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("add signal channel at capacity: %d/%d",
			len(m.addSignals), bufferSize)
	}
}

// SendRemoveSignal relays the provided remove signal for processing.
func (m *Manager) SendRemoveSignal(signal shared.RemoveEntrySignal) {
	select {
	case m.removeSignals <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("remove signal channel at capacity: %d/%d",
			len(m.removeSignals), bufferSize)
	}
}

// SendFocusSignal relays the provided focus signal for processing.
func (m *Manager) SendFocusSignal(signal shared.FocusSignal) {
	select {
	case m.focusSignals <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("focus signal channel at capacity: %d/%d",
			len(m.focusSignals), bufferSize)
	}
}

// SendGranularitySignal relays the provided granularity signal for processing.
func (m *Manager) SendGranularitySignal(signal shared.GranularitySignal) {
	select {
	case m.granularitySignals <- signal:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("granularity signal channel at capacity: %d/%d",
			len(m.granularitySignals), bufferSize)
	}
}

// SendSnapshotRequest relays the provided snapshot request for processing.
func (m *Manager) SendSnapshotRequest(req *shared.SnapshotRequest) {
	select {
	case m.snapshotRequests <- req:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("snapshot request channel at capacity: %d/%d",
			len(m.snapshotRequests), bufferSize)
	}
}

// SendStatusRequest relays the provided status request for processing.
func (m *Manager) SendStatusRequest(req *shared.StatusRequest) {
	select {
	case m.statusRequests <- req:
		// do nothing.
	default:
		m.cfg.Logger.Error().Msgf("status request channel at capacity: %d/%d",
			len(m.statusRequests), bufferSize)
	}
}

// Frame renders an on-demand frame for the entry with the provided id. It
// returns nil if the entry is unknown or does not respond within the shared
// timeout.
func (m *Manager) Frame(id string) *chart.Frame {
	req := shared.NewSnapshotRequest(id)
	m.SendSnapshotRequest(req)

	select {
	case snapshot := <-req.Response:
		if snapshot == nil {
			return nil
		}
		return chart.BuildFrame(snapshot, m.generator, m.cfg.RenderOptions)
	case <-time.After(shared.TimeoutDuration):
		m.cfg.Logger.Error().Msgf("timed out rendering a frame for entry %s", id)
		return nil
	}
}

// refresh renders and publishes a frame for the provided entry.
func (m *Manager) refresh(ent *Entry) {
	m.workers <- struct{}{}
	defer func() {
		<-m.workers
	}()

	snapshot := ent.Snapshot()
	if snapshot == nil {
		return
	}

	frame := chart.BuildFrame(snapshot, m.generator, m.cfg.RenderOptions)
	m.cfg.PublishFrame(frame)
	m.cfg.Metrics.FramesPublished.WithLabelValues(ent.market).Inc()
}

// backfill fetches candle history for the provided entry and relays the
// result to its pipeline. The epoch travels with the result so the pipeline
// can discard fetches superseded by a granularity change or removal.
func (m *Manager) backfill(ent *Entry, granularity shared.Granularity, epoch int64) {
	go func() {
		m.workers <- struct{}{}
		defer func() {
			<-m.workers
		}()

		ctx, cancel := context.WithTimeout(context.Background(), shared.TimeoutDuration)
		defer cancel()

		end := time.Now().UnixMilli()
		start := end - granularity.Milliseconds()*int64(ent.cfg.HistorySize)
		candles, err := m.cfg.Fetcher.FetchCandleHistory(ctx, ent.cfg.Entry.Venue,
			ent.cfg.Entry.Symbol, granularity, start, end, int(ent.cfg.HistorySize))

		ent.SendBackfill(BackfillSignal{
			Granularity: granularity,
			Epoch:       epoch,
			Candles:     candles,
			Err:         err,
		})
	}()
}

// scheduleRefresh replaces the entry's frame refresh job with one on the
// provided cadence.
func (m *Manager) scheduleRefresh(ent *Entry, interval time.Duration) {
	id := ent.cfg.Entry.ID
	_ = m.cfg.JobScheduler.RemoveByTag(id)

	_, err := m.cfg.JobScheduler.Every(interval).Tag(id).StartImmediately().
		Do(func() { m.refresh(ent) })
	if err != nil {
		m.cfg.Logger.Error().Err(err).Msgf("scheduling %s frame refresh", ent.market)
	}
}

// focus makes the provided entry the dashboard's focused entry, dropping the
// previous one to the idle cadence.
func (m *Manager) focus(ent *Entry) {
	if prev, ok := m.entries[m.focusedID]; ok && prev != ent {
		prev.SetFocused(false)
		prev.stream.SetInterval(m.cfg.IdleInterval)
		m.scheduleRefresh(prev, m.cfg.IdleInterval)
	}

	m.focusedID = ent.cfg.Entry.ID
	ent.SetFocused(true)
	ent.stream.SetInterval(m.cfg.FocusedInterval)
	m.scheduleRefresh(ent, m.cfg.FocusedInterval)
}

// handleAddSignal starts tracking the provided watchlist entry: it creates
// the entry pipeline, subscribes it to the tick source and schedules its
// frame refresh job. The first tracked entry becomes the focused one.
func (m *Manager) handleAddSignal(ctx context.Context, signal shared.AddEntrySignal) {
	defer func() {
		signal.Status <- shared.Processed
	}()

	market := signal.Entry.Market()
	for _, existing := range m.entries {
		if existing.market == market {
			m.cfg.Logger.Warn().Msgf("%s is already on the watchlist", market)
			return
		}
	}

	var ent *Entry
	ent, err := NewEntry(&EntryConfig{
		Entry:       signal.Entry,
		Granularity: m.cfg.DefaultGranularity,
		TickSize:    m.cfg.TickSize,
		HistorySize: m.cfg.HistorySize,
		RequestBackfill: func(granularity shared.Granularity, epoch int64) {
			m.backfill(ent, granularity, epoch)
		},
		Metrics: m.cfg.Metrics,
		Logger:  m.cfg.Logger,
	})
	if err != nil {
		m.cfg.Logger.Error().Err(err).Msgf("creating %s entry", market)
		return
	}

	ent.setState(shared.EntrySubscribing)
	stream, err := m.cfg.Source.Subscribe(&shared.TickSubscription{
		Venue:    signal.Entry.Venue,
		Symbol:   signal.Entry.Symbol,
		Interval: m.cfg.IdleInterval,
		OnTick: func(tick shared.Tick) {
			m.cfg.Health.SetLastTickTime(time.Now())
			ent.SendTick(tick)
		},
		OnState: func(venue string, symbol string, state shared.ConnectionState) {
			ent.SendConnectionState(state)
		},
	})
	if err != nil {
		ent.setState(shared.EntryFailed)
		m.cfg.Logger.Error().Err(err).Msgf("subscribing to %s", market)
		return
	}

	ent.stream = stream

	entryCtx, cancel := context.WithCancel(ctx)
	ent.stop = cancel
	go ent.Run(entryCtx)

	m.entries[signal.Entry.ID] = ent
	m.cfg.Metrics.ActiveEntries.Set(float64(len(m.entries)))
	m.cfg.Health.SetActiveEntries(len(m.entries))
	m.cfg.Logger.Info().Msgf("now tracking %s", market)

	m.scheduleRefresh(ent, m.cfg.IdleInterval)
	if m.focusedID == "" {
		m.focus(ent)
	}
}

// handleRemoveSignal stops tracking the watchlist entry with the provided
// id. Its refresh job, tick subscription and pipeline are all torn down; a
// backfill still in flight resolves against the stopped pipeline and is
// discarded. Removing the focused entry promotes another tracked entry.
func (m *Manager) handleRemoveSignal(signal shared.RemoveEntrySignal) {
	defer func() {
		signal.Status <- shared.Processed
	}()

	ent, ok := m.entries[signal.ID]
	if !ok {
		m.cfg.Logger.Warn().Msgf("no watchlist entry found with id %s for removal", signal.ID)
		return
	}

	_ = m.cfg.JobScheduler.RemoveByTag(signal.ID)
	ent.stream.Cancel()
	ent.stop()
	delete(m.entries, signal.ID)

	m.cfg.Metrics.ActiveEntries.Set(float64(len(m.entries)))
	m.cfg.Health.SetActiveEntries(len(m.entries))
	m.cfg.Logger.Info().Msgf("no longer tracking %s", ent.market)

	if m.focusedID == signal.ID {
		m.focusedID = ""
		for _, next := range m.entries {
			m.focus(next)
			break
		}
	}
}

// handleFocusSignal makes the entry with the provided id the focused one.
func (m *Manager) handleFocusSignal(signal shared.FocusSignal) {
	defer func() {
		signal.Status <- shared.Processed
	}()

	if signal.ID == m.focusedID {
		return
	}

	ent, ok := m.entries[signal.ID]
	if !ok {
		m.cfg.Logger.Warn().Msgf("no watchlist entry found with id %s to focus", signal.ID)
		return
	}

	m.focus(ent)
}

// handleGranularitySignal routes the provided granularity change to its
// entry pipeline.
func (m *Manager) handleGranularitySignal(signal shared.GranularitySignal) {
	ent, ok := m.entries[signal.ID]
	if !ok {
		m.cfg.Logger.Warn().Msgf("no watchlist entry found with id %s for granularity change", signal.ID)
		signal.Status <- shared.Processed
		return
	}

	ent.SendGranularitySignal(signal)
}

// handleSnapshotRequest routes the provided snapshot request to its entry
// pipeline. Requests for unknown entries resolve to nil.
func (m *Manager) handleSnapshotRequest(req *shared.SnapshotRequest) {
	ent, ok := m.entries[req.ID]
	if !ok {
		req.Response <- nil
		return
	}

	ent.SendSnapshotRequest(req)
}

// handleStatusRequest responds with the runtime status of all tracked
// entries, ordered by when they were added.
func (m *Manager) handleStatusRequest(req *shared.StatusRequest) {
	statuses := make([]shared.EntryStatus, 0, len(m.entries))
	for _, ent := range m.entries {
		statuses = append(statuses, shared.EntryStatus{
			Entry:       ent.cfg.Entry,
			State:       ent.State().String(),
			Granularity: ent.Granularity().String(),
			Focused:     ent.Focused(),
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].Entry.AddedAt == statuses[j].Entry.AddedAt {
			return statuses[i].Entry.ID < statuses[j].Entry.ID
		}
		return statuses[i].Entry.AddedAt < statuses[j].Entry.AddedAt
	})

	req.Response <- statuses
}

// shutdown tears down all tracked entries.
func (m *Manager) shutdown() {
	for id, ent := range m.entries {
		_ = m.cfg.JobScheduler.RemoveByTag(id)
		ent.stream.Cancel()
		ent.stop()
		delete(m.entries, id)
	}

	m.focusedID = ""
	m.cfg.Metrics.ActiveEntries.Set(0)
	m.cfg.Health.SetActiveEntries(0)
}

// Run manages the lifecycle processes of the watchlist manager.
func (m *Manager) Run(ctx context.Context) {
	m.cfg.JobScheduler.StartAsync()
	defer m.cfg.JobScheduler.Stop()

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return
		case signal := <-m.addSignals:
			m.handleAddSignal(ctx, signal)
		case signal := <-m.removeSignals:
			m.handleRemoveSignal(signal)
		case signal := <-m.focusSignals:
			m.handleFocusSignal(signal)
		case signal := <-m.granularitySignals:
			m.handleGranularitySignal(signal)
		case req := <-m.snapshotRequests:
			m.handleSnapshotRequest(req)
		case req := <-m.statusRequests:
			m.handleStatusRequest(req)
		}
	}
}
