package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	// Ensure metrics register on a fresh registry without panicking.
	m := New(prometheus.NewRegistry())

	market := "binance:BTC/USD"
	m.TicksProcessed.WithLabelValues(market).Inc()
	m.TicksProcessed.WithLabelValues(market).Inc()
	m.TicksDropped.WithLabelValues(market, "stale").Inc()
	m.CandlesCompleted.WithLabelValues(market, "1m").Inc()
	m.FramesPublished.WithLabelValues(market).Inc()
	m.Reconnects.WithLabelValues(market).Inc()
	m.Backfills.WithLabelValues(market, "ok").Inc()
	m.ActiveEntries.Set(3)
	m.ConnectedClients.Inc()

	assert.Equal(t, testutil.ToFloat64(m.TicksProcessed.WithLabelValues(market)), float64(2))
	assert.Equal(t, testutil.ToFloat64(m.TicksDropped.WithLabelValues(market, "stale")), float64(1))
	assert.Equal(t, testutil.ToFloat64(m.CandlesCompleted.WithLabelValues(market, "1m")), float64(1))
	assert.Equal(t, testutil.ToFloat64(m.ActiveEntries), float64(3))
	assert.Equal(t, testutil.ToFloat64(m.ConnectedClients), float64(1))

	// Ensure separate registries can hold their own collectors, repeated
	// registration on a shared one would panic.
	_ = New(prometheus.NewRegistry())
}

func TestHealthStatus(t *testing.T) {
	health := NewHealthStatus()

	// Ensure a fresh status reports healthy.
	recorder := httptest.NewRecorder()
	health.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, recorder.Code, http.StatusOK)

	var payload map[string]any
	err := json.Unmarshal(recorder.Body.Bytes(), &payload)
	assert.NoError(t, err)
	assert.Equal(t, payload["status"], "healthy")

	// Ensure store trouble degrades the status.
	health.SetStoreOK(false)
	health.SetActiveEntries(2)
	health.SetLastTickTime(time.Now())

	recorder = httptest.NewRecorder()
	health.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, recorder.Code, http.StatusServiceUnavailable)

	err = json.Unmarshal(recorder.Body.Bytes(), &payload)
	assert.NoError(t, err)
	assert.Equal(t, payload["status"], "degraded")
	assert.Equal[any](t, payload["activeEntries"], float64(2))
	assert.NotEqual(t, payload["tickAge"], "")

	// Ensure recovery restores the healthy status.
	health.SetStoreOK(true)
	recorder = httptest.NewRecorder()
	health.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, recorder.Code, http.StatusOK)
}
