package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dashboard's prometheus collectors.
type Metrics struct {
	TicksProcessed   *prometheus.CounterVec
	TicksDropped     *prometheus.CounterVec
	CandlesCompleted *prometheus.CounterVec
	FramesPublished  *prometheus.CounterVec
	Reconnects       *prometheus.CounterVec
	Backfills        *prometheus.CounterVec
	ActiveEntries    prometheus.Gauge
	ConnectedClients prometheus.Gauge
}

// New initializes the dashboard metrics and registers them on the provided
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_ticks_processed_total",
			Help: "Normalized ticks processed per market",
		}, []string{"market"}),
		TicksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_ticks_dropped_total",
			Help: "Ticks dropped per market (stale or channel full)",
		}, []string{"market", "reason"}),
		CandlesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_candles_completed_total",
			Help: "Candles completed per market and granularity",
		}, []string{"market", "granularity"}),
		FramesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_frames_published_total",
			Help: "Render frames published per market",
		}, []string{"market"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_reconnects_total",
			Help: "Market data stream reconnect transitions per market",
		}, []string{"market"}),
		Backfills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_backfills_total",
			Help: "Candle history backfills per market and result",
		}, []string{"market", "result"}),
		ActiveEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_active_entries",
			Help: "Watchlist entries currently tracked",
		}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_connected_clients",
			Help: "Websocket clients currently connected",
		}),
	}

	reg.MustRegister(
		m.TicksProcessed,
		m.TicksDropped,
		m.CandlesCompleted,
		m.FramesPublished,
		m.Reconnects,
		m.Backfills,
		m.ActiveEntries,
		m.ConnectedClients,
	)

	return m
}
