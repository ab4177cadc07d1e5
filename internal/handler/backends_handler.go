package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/tmoradi/kestrel/internal/model"
	"github.com/tmoradi/kestrel/internal/upstream"
)

// BackendsHandler serves the device inventory and per-device queue reads.
type BackendsHandler struct {
	upstream *upstream.Client
}

// NewBackendsHandler creates a new backends handler
func NewBackendsHandler(client *upstream.Client) *BackendsHandler {
	return &BackendsHandler{upstream: client}
}

// List handles GET /api/v1/backends
func (h *BackendsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	backends, err := h.upstream.Backends(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	online := 0
	for _, b := range backends {
		if b.Operational {
			online++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(backends),
		"online":   online,
		"backends": backends,
	})
}

// Queue handles GET /api/v1/backends/{name}/queue
func (h *BackendsHandler) Queue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/backends/")
	name := strings.TrimSuffix(path, "/queue")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "Backend name is required")
		return
	}

	qs, err := h.upstream.QueueStatus(r.Context(), name)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.QueueUpdate{
		Backend:          name,
		Length:           qs.Length,
		EstimatedWaitSec: qs.EstimatedWaitSec,
		ObservedAt:       time.Now().UTC(),
	})
}
