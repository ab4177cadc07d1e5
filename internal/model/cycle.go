package model

import (
	"time"
)

// StatusChange records one job moving between statuses across two
// consecutive observations.
type StatusChange struct {
	JobID      string    `json:"job_id"`
	Name       string    `json:"name,omitempty"`
	Backend    string    `json:"backend"`
	From       JobStatus `json:"from"`
	To         JobStatus `json:"to"`
	ObservedAt time.Time `json:"observed_at"`
}

// QueueUpdate is a per-backend queue reading taken during a cycle.
type QueueUpdate struct {
	Backend          string    `json:"backend"`
	Length           int       `json:"length"`
	EstimatedWaitSec int       `json:"estimated_wait_seconds"`
	ObservedAt       time.Time `json:"observed_at"`
}

// JobCounts buckets jobs by status. Errored folds ERROR and CANCELLED
// together, the way the dashboard presents them.
type JobCounts struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Queued    int `json:"queued"`
	Completed int `json:"completed"`
	Errored   int `json:"errored"`
}

// CountJobs tallies a job list into dashboard buckets.
func CountJobs(jobs []Job) JobCounts {
	c := JobCounts{Total: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case StatusRunning:
			c.Running++
		case StatusQueued:
			c.Queued++
		case StatusCompleted:
			c.Completed++
		case StatusError, StatusCancelled:
			c.Errored++
		}
	}
	return c
}

// DashboardSummary is the aggregate view published on every cycle.
type DashboardSummary struct {
	GeneratedAt    time.Time        `json:"generated_at"`
	Jobs           JobCounts        `json:"jobs"`
	Backends       []BackendSummary `json:"backends"`
	BackendsOnline int              `json:"backends_online"`
	RecentJobs     []Job            `json:"recent_jobs"`
	Stats          *SystemStats     `json:"stats,omitempty"`
}

// CycleResult is the outcome of one completed monitoring cycle.
type CycleResult struct {
	CycleID      string           `json:"cycle_id"`
	StartedAt    time.Time        `json:"started_at"`
	DurationMS   int64            `json:"duration_ms"`
	FromMock     bool             `json:"from_mock"`
	NewJobs      []Job            `json:"new_jobs"`
	Changes      []StatusChange   `json:"changes"`
	Unchanged    int              `json:"unchanged"`
	TrackedJobs  int              `json:"tracked_jobs"`
	Summary      DashboardSummary `json:"summary"`
	QueueUpdates []QueueUpdate    `json:"queue_updates"`
}

// MonitoringState is the engine-plus-scheduler status surfaced over HTTP.
type MonitoringState struct {
	Running      bool       `json:"running"`
	MockMode     bool       `json:"mock_mode"`
	CyclesTotal  uint64     `json:"cycles_total"`
	CyclesFailed uint64     `json:"cycles_failed"`
	TrackedJobs  int        `json:"tracked_jobs"`
	Subscribers  int        `json:"subscribers"`
	LastCycleID  string     `json:"last_cycle_id,omitempty"`
	LastCycleAt  *time.Time `json:"last_cycle_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	NextPollAt   *time.Time `json:"next_poll_at,omitempty"`
	NextDeepAt   *time.Time `json:"next_deep_at,omitempty"`
}
