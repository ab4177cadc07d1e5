package handler

import (
	"errors"
	"net/http"

	"github.com/tmoradi/kestrel/internal/monitor"
	"github.com/tmoradi/kestrel/internal/scheduler"
	"github.com/tmoradi/kestrel/internal/upstream"
)

// MonitorHandler exposes lifecycle control and introspection for the
// monitoring loop.
type MonitorHandler struct {
	scheduler *scheduler.Scheduler
	engine    *monitor.Engine
	upstream  *upstream.Client
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(sched *scheduler.Scheduler, engine *monitor.Engine, client *upstream.Client) *MonitorHandler {
	return &MonitorHandler{
		scheduler: sched,
		engine:    engine,
		upstream:  client,
	}
}

// State handles GET /api/v1/monitor
func (h *MonitorHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.State())
}

// Start handles POST /api/v1/monitor/start
func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !h.scheduler.Start() {
		writeError(w, http.StatusConflict, "Monitoring is already running")
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.State())
}

// Stop handles POST /api/v1/monitor/stop
func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !h.scheduler.Stop() {
		writeError(w, http.StatusConflict, "Monitoring is not running")
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.State())
}

// Trigger handles POST /api/v1/monitor/trigger
func (h *MonitorHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	result, err := h.scheduler.TriggerNow(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrNotRunning):
			writeError(w, http.StatusConflict, "Monitoring is not running")
		case errors.Is(err, scheduler.ErrCycleInFlight):
			writeError(w, http.StatusConflict, "A cycle is already in flight")
		default:
			writeError(w, http.StatusBadGateway, "Cycle failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Snapshot handles GET and DELETE /api/v1/monitor/snapshot
func (h *MonitorHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := h.engine.TrackedJobs()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count": len(jobs),
			"jobs":  jobs,
		})
	case http.MethodDelete:
		dropped := h.engine.ClearSnapshot()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"jobs_dropped": dropped,
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// ClearCache handles DELETE /api/v1/monitor/cache
func (h *MonitorHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	dropped := h.upstream.ClearCache()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries_dropped": dropped,
	})
}
