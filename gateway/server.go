package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/captainplanet9000/cival-dashboard-sub013/metrics"
	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
	"github.com/captainplanet9000/cival-dashboard-sub013/watchlist"
)

// ServerConfig represents the dashboard api server configuration.
type ServerConfig struct {
	// Address is the listen address of the dashboard api.
	Address string
	// Manager coordinates the tracked watchlist entries.
	Manager *watchlist.Manager
	// Store persists watchlist entries.
	Store shared.WatchlistStore
	// Hub fans rendered frames out to dashboard clients.
	Hub *Hub
	// Health reports process liveness.
	Health *metrics.HealthStatus
	// Registry is the prometheus registry backing the metrics endpoint.
	Registry *prometheus.Registry
	// Logger is the server logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane defaults are set.
func (cfg *ServerConfig) Validate() error {
	var errs error

	if cfg.Address == "" {
		errs = errors.Join(errs, fmt.Errorf("address cannot be an empty string"))
	}
	if cfg.Manager == nil {
		errs = errors.Join(errs, fmt.Errorf("watchlist manager cannot be nil"))
	}
	if cfg.Store == nil {
		errs = errors.Join(errs, fmt.Errorf("watchlist store cannot be nil"))
	}
	if cfg.Hub == nil {
		errs = errors.Join(errs, fmt.Errorf("hub cannot be nil"))
	}
	if cfg.Health == nil {
		errs = errors.Join(errs, fmt.Errorf("health status cannot be nil"))
	}
	if cfg.Registry == nil {
		errs = errors.Join(errs, fmt.Errorf("metrics registry cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Server is the http surface of the dashboard: the watchlist rest api, the
// frame stream websocket and the health and metrics endpoints.
type Server struct {
	cfg      *ServerConfig
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer initializes a new dashboard api server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating server config: %w", err)
	}

	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/watchlist", s.handleWatchlist)
	mux.HandleFunc("/api/watchlist/focus", s.handleFocus)
	mux.HandleFunc("/api/watchlist/granularity", s.handleGranularity)
	mux.HandleFunc("/api/watchlist/frame", s.handleFrame)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/healthz", cfg.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{Addr: cfg.Address, Handler: mux}

	return s, nil
}

// setCORS sets CORS headers for rest endpoints.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeJSON writes the provided payload as a json response.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes the provided message as a json error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statuses fetches the runtime statuses of all tracked entries.
func (s *Server) statuses() ([]shared.EntryStatus, error) {
	req := shared.NewStatusRequest()
	s.cfg.Manager.SendStatusRequest(req)

	select {
	case statuses := <-req.Response:
		return statuses, nil
	case <-time.After(shared.TimeoutDuration):
		return nil, fmt.Errorf("timed out fetching watchlist statuses")
	}
}

// entryStatus returns the status of the tracked entry with the provided id.
func (s *Server) entryStatus(id string) (*shared.EntryStatus, error) {
	statuses, err := s.statuses()
	if err != nil {
		return nil, err
	}

	for idx := range statuses {
		if statuses[idx].Entry.ID == id {
			return &statuses[idx], nil
		}
	}

	return nil, nil
}

// handleWatchlist serves the watchlist collection: listing tracked entries,
// adding a market and removing one.
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		statuses, err := s.statuses()
		if err != nil {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, statuses)
	case http.MethodPost:
		s.handleAddEntry(w, r)
	case http.MethodDelete:
		s.handleRemoveEntry(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAddEntry persists a new watchlist entry and activates its pipeline.
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Venue       string `json:"venue"`
		Symbol      string `json:"symbol"`
		DisplayName string `json:"displayName"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Venue == "" || body.Symbol == "" {
		writeError(w, http.StatusBadRequest, "venue and symbol are required")
		return
	}

	market := shared.MarketKey(body.Venue, body.Symbol)
	statuses, err := s.statuses()
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	for idx := range statuses {
		if statuses[idx].Entry.Market() == market {
			writeError(w, http.StatusConflict, fmt.Sprintf("%s is already on the watchlist", market))
			return
		}
	}

	entry := shared.NewWatchlistEntry(body.Venue, body.Symbol, body.DisplayName)
	err = s.cfg.Store.CreateWatchlistEntry(r.Context(), entry)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msgf("persisting watchlist entry for %s", market)
		writeError(w, http.StatusInternalServerError, "persisting watchlist entry failed")
		return
	}

	signal := shared.NewAddEntrySignal(*entry)
	s.cfg.Manager.SendAddSignal(signal)

	select {
	case <-signal.Status:
		writeJSON(w, http.StatusCreated, entry)
	case <-time.After(shared.TimeoutDuration):
		writeError(w, http.StatusGatewayTimeout, "timed out activating watchlist entry")
	}
}

// handleRemoveEntry deletes a watchlist entry and tears its pipeline down.
func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	status, err := s.entryStatus(id)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no watchlist entry found with id %s", id))
		return
	}

	err = s.cfg.Store.DeleteWatchlistEntry(r.Context(), id)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msgf("deleting watchlist entry %s", id)
		writeError(w, http.StatusInternalServerError, "deleting watchlist entry failed")
		return
	}

	signal := shared.NewRemoveEntrySignal(id)
	s.cfg.Manager.SendRemoveSignal(signal)

	select {
	case <-signal.Status:
		w.WriteHeader(http.StatusNoContent)
	case <-time.After(shared.TimeoutDuration):
		writeError(w, http.StatusGatewayTimeout, "timed out deactivating watchlist entry")
	}
}

// handleFocus makes the entry with the provided id the focused one.
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		ID string `json:"id"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	status, err := s.entryStatus(body.ID)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no watchlist entry found with id %s", body.ID))
		return
	}

	signal := shared.NewFocusSignal(body.ID)
	s.cfg.Manager.SendFocusSignal(signal)

	select {
	case <-signal.Status:
		w.WriteHeader(http.StatusNoContent)
	case <-time.After(shared.TimeoutDuration):
		writeError(w, http.StatusGatewayTimeout, "timed out focusing watchlist entry")
	}
}

// handleGranularity re-points the candle aggregation of the entry with the
// provided id at a new granularity.
func (s *Server) handleGranularity(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		ID          string `json:"id"`
		Granularity string `json:"granularity"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	granularity, err := shared.ParseGranularity(body.Granularity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := s.entryStatus(body.ID)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no watchlist entry found with id %s", body.ID))
		return
	}

	signal := shared.NewGranularitySignal(body.ID, granularity)
	s.cfg.Manager.SendGranularitySignal(signal)

	select {
	case <-signal.Status:
		w.WriteHeader(http.StatusNoContent)
	case <-time.After(shared.TimeoutDuration):
		writeError(w, http.StatusGatewayTimeout, "timed out changing granularity")
	}
}

// handleFrame serves an on-demand rendered frame for a tracked entry.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	frame := s.cfg.Manager.Frame(id)
	if frame == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no watchlist entry found with id %s", id))
		return
	}

	writeJSON(w, http.StatusOK, frame)
}

// handleWS upgrades the connection and registers it for the frame stream.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Error().Err(err).Msg("upgrading dashboard client connection")
		return
	}

	s.cfg.Hub.Register(conn)
}

// Run starts the dashboard api and blocks until the provided context is
// cancelled.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shared.TimeoutDuration)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.cfg.Hub.Close()
	}()

	s.cfg.Logger.Info().Msgf("dashboard api listening on %s", s.cfg.Address)
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.cfg.Logger.Error().Err(err).Msg("dashboard api terminated")
	}
}
