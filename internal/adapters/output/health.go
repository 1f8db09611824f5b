package output

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/botradar/internal/ports"
)

// BreakerReporter exposes the backend circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

type HealthStatus struct {
	Healthy        bool    `json:"healthy"`
	Status         string  `json:"status"`
	BackendBreaker string  `json:"backend_breaker,omitempty"`
	TrackedClients int     `json:"tracked_clients"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Reason         string  `json:"reason,omitempty"`
}

// HealthChecker reports readiness: the proxy is ready unless its backend
// breaker is open. Results are cached for CheckInterval.
type HealthChecker struct {
	backend   BreakerReporter
	inspector ports.ClientInspector
	startTime time.Time
	now       func() time.Time

	lastCheck     HealthStatus
	lastCheckTime time.Time
	lastCheckMu   sync.RWMutex
	checkInterval time.Duration
}

type HealthCheckerConfig struct {
	CheckInterval time.Duration
}

func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		CheckInterval: time.Second,
	}
}

func NewHealthChecker(backend BreakerReporter, inspector ports.ClientInspector, config HealthCheckerConfig) *HealthChecker {
	return &HealthChecker{
		backend:       backend,
		inspector:     inspector,
		checkInterval: config.CheckInterval,
		startTime:     time.Now(),
		now:           time.Now,
	}
}

func (h *HealthChecker) Check() HealthStatus {
	h.lastCheckMu.RLock()
	if !h.lastCheckTime.IsZero() && h.now().Sub(h.lastCheckTime) < h.checkInterval {
		cached := h.lastCheck
		h.lastCheckMu.RUnlock()
		return cached
	}
	h.lastCheckMu.RUnlock()

	status := h.performCheck()

	h.lastCheckMu.Lock()
	h.lastCheck = status
	h.lastCheckTime = h.now()
	h.lastCheckMu.Unlock()

	return status
}

func (h *HealthChecker) performCheck() HealthStatus {
	status := HealthStatus{
		Healthy:       true,
		Status:        "HEALTHY",
		UptimeSeconds: h.now().Sub(h.startTime).Seconds(),
	}
	if h.inspector != nil {
		status.TrackedClients = h.inspector.TrackedClients()
	}
	if h.backend == nil {
		return status
	}

	status.BackendBreaker = h.backend.BreakerState()
	switch status.BackendBreaker {
	case "open":
		status.Healthy = false
		status.Status = "BACKEND_UNAVAILABLE"
		status.Reason = "backend circuit breaker is open"
	case "half-open":
		status.Status = "DEGRADED"
		status.Reason = "probing backend after failures"
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	body, err := json.Marshal(status)
	if err != nil {
		log.Error().Err(err).Msg("Error serializing health status")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(body)
}
