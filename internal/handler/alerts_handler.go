package handler

import (
	"net/http"

	"github.com/tmoradi/kestrel/internal/alert"
)

// AlertsHandler exposes the loaded alert rules and recent triggers.
type AlertsHandler struct {
	alerts *alert.Engine
}

// NewAlertsHandler creates a new alerts handler
func NewAlertsHandler(engine *alert.Engine) *AlertsHandler {
	return &AlertsHandler{alerts: engine}
}

// Rules handles GET /api/v1/alerts/rules
func (h *AlertsHandler) Rules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rules := h.alerts.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rules),
		"rules": rules,
	})
}

// Recent handles GET /api/v1/alerts/recent
func (h *AlertsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	events := h.alerts.Recent()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(events),
		"alerts": events,
	})
}
