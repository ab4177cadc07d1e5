package handler

import (
	"net/http"
	"strings"

	"github.com/tmoradi/kestrel/internal/bus"
	"github.com/tmoradi/kestrel/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	jobsHandler     *JobsHandler
	backendsHandler *BackendsHandler
	monitorHandler  *MonitorHandler
	alertsHandler   *AlertsHandler
	healthHandler   *HealthHandler
	hub             *bus.Hub
	corsConfig      middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	jobsHandler *JobsHandler,
	backendsHandler *BackendsHandler,
	monitorHandler *MonitorHandler,
	alertsHandler *AlertsHandler,
	healthHandler *HealthHandler,
	hub *bus.Hub,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		jobsHandler:     jobsHandler,
		backendsHandler: backendsHandler,
		monitorHandler:  monitorHandler,
		alertsHandler:   alertsHandler,
		healthHandler:   healthHandler,
		hub:             hub,
		corsConfig:      corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)

	// API endpoints
	mux.HandleFunc("/api/v1/jobs", rt.jobsHandler.List)
	mux.HandleFunc("/api/v1/jobs/", rt.jobsHandler.Get)
	mux.HandleFunc("/api/v1/backends", rt.backendsHandler.List)
	mux.HandleFunc("/api/v1/backends/", rt.handleBackendsWithName)
	mux.HandleFunc("/api/v1/monitor", rt.monitorHandler.State)
	mux.HandleFunc("/api/v1/monitor/start", rt.monitorHandler.Start)
	mux.HandleFunc("/api/v1/monitor/stop", rt.monitorHandler.Stop)
	mux.HandleFunc("/api/v1/monitor/trigger", rt.monitorHandler.Trigger)
	mux.HandleFunc("/api/v1/monitor/snapshot", rt.monitorHandler.Snapshot)
	mux.HandleFunc("/api/v1/monitor/cache", rt.monitorHandler.ClearCache)
	mux.HandleFunc("/api/v1/alerts/rules", rt.alertsHandler.Rules)
	mux.HandleFunc("/api/v1/alerts/recent", rt.alertsHandler.Recent)

	// Websocket endpoint
	mux.HandleFunc("/ws", rt.hub.ServeWS)

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.RequestID(handler)

	return handler
}

// handleBackendsWithName routes backend individual endpoints
func (rt *Router) handleBackendsWithName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/backends/")

	// Check if this is a queue endpoint
	if strings.HasSuffix(path, "/queue") {
		rt.backendsHandler.Queue(w, r)
		return
	}

	// For other backend operations (if needed in the future)
	writeError(w, http.StatusNotFound, "Endpoint not found")
}
