package handler

import (
	"net/http"
	"time"

	"github.com/tmoradi/kestrel/internal/scheduler"
	"github.com/tmoradi/kestrel/internal/upstream"
)

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	upstream  *upstream.Client
	scheduler *scheduler.Scheduler
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(client *upstream.Client, sched *scheduler.Scheduler, version string) *HealthHandler {
	return &HealthHandler{
		upstream:  client,
		scheduler: sched,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	Upstream      string `json:"upstream"`
	Monitoring    bool   `json:"monitoring"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready      bool `json:"ready"`
	Monitoring bool `json:"monitoring"`
}

// Health returns the service health status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	mode := "live"
	if h.upstream.MockMode() {
		mode = "mock"
	}

	response := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Upstream:      mode,
		Monitoring:    h.scheduler.Running(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	writeJSON(w, http.StatusOK, response)
}

// Ready returns the service readiness status. The process serves mock data
// when the registry is down, so readiness tracks process liveness only.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ReadyResponse{
		Ready:      true,
		Monitoring: h.scheduler.Running(),
	})
}
