package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/captainplanet9000/cival-dashboard-sub013/chart"
	"github.com/captainplanet9000/cival-dashboard-sub013/database"
	"github.com/captainplanet9000/cival-dashboard-sub013/fetch"
	"github.com/captainplanet9000/cival-dashboard-sub013/gateway"
	"github.com/captainplanet9000/cival-dashboard-sub013/metrics"
	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
	"github.com/captainplanet9000/cival-dashboard-sub013/watchlist"
)

const (
	// storeProbeInterval is the cadence of the watchlist store liveness
	// probe.
	storeProbeInterval = time.Second * 30
)

// DashboardConfig represents the configuration struct for the dashboard
// service.
type DashboardConfig struct {
	// ListenAddress is the dashboard api listen address.
	ListenAddress string
	// MarketDataURL is the market data service base url.
	MarketDataURL string
	// MarketDataAPIKey is the market data service api key.
	MarketDataAPIKey string
	// StreamURL is the market data websocket feed url. When set, ticks
	// are streamed instead of polled.
	StreamURL string
	// DatabaseEndpoint represents the database connection endpoint.
	DatabaseEndpoint string
	// DatabaseUser is the database user.
	DatabaseUser string
	// DatabasePass is the database user pass.
	DatabasePass string
	// Granularity is the default candle granularity for new entries.
	Granularity string
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config sane inputs.
func (cfg *DashboardConfig) Validate() error {
	var errs error

	if cfg.ListenAddress == "" {
		errs = errors.Join(errs, fmt.Errorf("listen address cannot be an empty string"))
	}
	if cfg.MarketDataURL == "" {
		errs = errors.Join(errs, fmt.Errorf("market data url cannot be an empty string"))
	}
	if cfg.DatabaseEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	return errs
}

// Dashboard represents the live market dashboard service.
type Dashboard struct {
	cfg     *DashboardConfig
	store   *database.Database
	manager *watchlist.Manager
	hub     *gateway.Hub
	server  *gateway.Server
	health  *metrics.HealthStatus
	logger  *zerolog.Logger
	wg      sync.WaitGroup
}

// NewDashboard initializes a new dashboard service.
func NewDashboard(ctx context.Context, cfg *DashboardConfig) (*Dashboard, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating dashboard config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	logger := log.With().Str("service", "dashboard").Logger()

	granularity := shared.OneMinute
	if cfg.Granularity != "" {
		granularity, err = shared.ParseGranularity(cfg.Granularity)
		if err != nil {
			return nil, fmt.Errorf("parsing default granularity: %v", err)
		}
	}

	registry := prometheus.NewRegistry()
	mets := metrics.New(registry)
	health := metrics.NewHealthStatus()

	dbLogger := logger.With().Str("component", "database").Logger()
	store, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DatabaseEndpoint,
		User:     cfg.DatabaseUser,
		Pass:     cfg.DatabasePass,
		Logger:   &dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating database: %v", err)
	}

	client, err := fetch.NewClient(&fetch.ClientConfig{
		BaseURL: cfg.MarketDataURL,
		APIKey:  cfg.MarketDataAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market data client: %v", err)
	}

	var source shared.TickSource
	switch {
	case cfg.StreamURL != "":
		sourceLogger := logger.With().Str("component", "pushsource").Logger()
		source, err = fetch.NewPushSource(&fetch.PushSourceConfig{
			URL:     cfg.StreamURL,
			Backoff: fetch.DefaultBackoff(),
			Logger:  &sourceLogger,
		})
	default:
		sourceLogger := logger.With().Str("component", "pollsource").Logger()
		source, err = fetch.NewPollSource(&fetch.PollSourceConfig{
			Fetcher: client,
			Backoff: fetch.DefaultBackoff(),
			Logger:  &sourceLogger,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("creating tick source: %v", err)
	}

	hubLogger := logger.With().Str("component", "hub").Logger()
	hub, err := gateway.NewHub(&gateway.HubConfig{
		Metrics: mets,
		Logger:  &hubLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating frame hub: %v", err)
	}

	jobScheduler := gocron.NewScheduler(time.UTC)
	_, err = jobScheduler.Every(storeProbeInterval).Tag("storeprobe").Do(func() {
		probeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		err := store.Ping(probeCtx)
		health.SetStoreOK(err == nil)
		if err != nil {
			dbLogger.Error().Err(err).Msg("store liveness probe failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling store liveness probe: %v", err)
	}

	managerLogger := logger.With().Str("component", "watchlistmanager").Logger()
	manager, err := watchlist.NewManager(&watchlist.ManagerConfig{
		Source:  source,
		Fetcher: client,
		PublishFrame: func(frame *chart.Frame) {
			payload, err := json.Marshal(frame)
			if err != nil {
				managerLogger.Error().Err(err).Msgf("marshaling %s frame", frame.Market)
				return
			}
			hub.Broadcast(payload)
		},
		JobScheduler:       jobScheduler,
		Metrics:            mets,
		Health:             health,
		DefaultGranularity: granularity,
		Logger:             &managerLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating watchlist manager: %v", err)
	}

	serverLogger := logger.With().Str("component", "server").Logger()
	server, err := gateway.NewServer(&gateway.ServerConfig{
		Address:  cfg.ListenAddress,
		Manager:  manager,
		Store:    store,
		Hub:      hub,
		Health:   health,
		Registry: registry,
		Logger:   &serverLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dashboard api server: %v", err)
	}

	service := &Dashboard{
		cfg:     cfg,
		store:   store,
		manager: manager,
		hub:     hub,
		server:  server,
		health:  health,
		logger:  &logger,
	}

	return service, nil
}

// seedWatchlist activates all persisted watchlist entries.
func (d *Dashboard) seedWatchlist(ctx context.Context) {
	entries, err := d.store.ListWatchlistEntries(ctx)
	if err != nil {
		d.health.SetStoreOK(false)
		d.logger.Error().Err(err).Msg("listing persisted watchlist entries")
		return
	}

	for idx := range entries {
		d.manager.SendAddSignal(shared.NewAddEntrySignal(entries[idx]))
	}

	d.logger.Info().Msgf("seeded %d watchlist entries", len(entries))
}

// Run handles the lifecycle processes of the dashboard service.
func (d *Dashboard) Run(ctx context.Context) {
	d.wg.Add(2)

	go func() {
		d.manager.Run(ctx)
		d.wg.Done()
	}()

	go func() {
		d.server.Run(ctx)
		d.wg.Done()
	}()

	d.seedWatchlist(ctx)

	d.wg.Wait()
}
