package handler

import (
	"net/http"
	"strings"

	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/model"
	"github.com/tmoradi/kestrel/internal/monitor"
	"github.com/tmoradi/kestrel/internal/upstream"
)

// JobsHandler serves job reads. The tracked snapshot answers first; before
// the first cycle has populated it, reads fall through to the upstream
// adapter so the surface is useful without monitoring running.
type JobsHandler struct {
	engine       *monitor.Engine
	upstream     *upstream.Client
	defaultLimit int
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(cfg *config.Config, engine *monitor.Engine, client *upstream.Client) *JobsHandler {
	return &JobsHandler{
		engine:       engine,
		upstream:     client,
		defaultLimit: cfg.JobsFetchLimit,
	}
}

// List handles GET /api/v1/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := parseQueryInt(r, "limit", h.defaultLimit)
	if limit < 1 || limit > 200 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
		return
	}
	offset := parseQueryInt(r, "offset", 0)
	if offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must not be negative")
		return
	}

	var status model.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status = model.JobStatus(strings.ToUpper(raw))
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status: "+raw)
			return
		}
	}

	if h.engine.TrackedCount() > 0 {
		jobs := h.engine.TrackedJobs()
		if status != "" {
			filtered := make([]model.Job, 0, len(jobs))
			for _, j := range jobs {
				if j.Status == status {
					filtered = append(filtered, j)
				}
			}
			jobs = filtered
		}
		if offset >= len(jobs) {
			jobs = []model.Job{}
		} else {
			jobs = jobs[offset:]
		}
		if len(jobs) > limit {
			jobs = jobs[:limit]
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count": len(jobs),
			"jobs":  jobs,
		})
		return
	}

	jobs, err := h.upstream.Jobs(r.Context(), limit, offset, status)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

// Get handles GET /api/v1/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	if job, ok := h.engine.TrackedJob(id); ok {
		writeJSON(w, http.StatusOK, job)
		return
	}

	job, err := h.upstream.Job(r.Context(), id)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
