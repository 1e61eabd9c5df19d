package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the dashboard's health.
type HealthStatus struct {
	mu sync.RWMutex

	storeOK       bool
	activeEntries int
	lastTickTime  time.Time
	startedAt     time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		storeOK:   true,
		startedAt: time.Now(),
	}
}

// SetStoreOK records watchlist store reachability.
func (h *HealthStatus) SetStoreOK(v bool) {
	h.mu.Lock()
	h.storeOK = v
	h.mu.Unlock()
}

// SetActiveEntries records the number of tracked watchlist entries.
func (h *HealthStatus) SetActiveEntries(n int) {
	h.mu.Lock()
	h.activeEntries = n
	h.mu.Unlock()
}

// SetLastTickTime records the arrival time of the most recent tick.
func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.lastTickTime = t
	h.mu.Unlock()
}

// ServeHTTP handles the health endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.storeOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	lastTick := ""
	if !h.lastTickTime.IsZero() {
		lastTick = h.lastTickTime.Format(time.RFC3339)
		tickAge = time.Since(h.lastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status        string `json:"status"`
		Uptime        string `json:"uptime"`
		StoreOK       bool   `json:"storeOk"`
		ActiveEntries int    `json:"activeEntries"`
		LastTickTime  string `json:"lastTickTime"`
		TickAge       string `json:"tickAge"`
	}{
		Status:        overallStatus,
		Uptime:        time.Since(h.startedAt).Round(time.Second).String(),
		StoreOK:       h.storeOK,
		ActiveEntries: h.activeEntries,
		LastTickTime:  lastTick,
		TickAge:       tickAge,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	_ = json.NewEncoder(w).Encode(status)
}
