package model

// Backend describes a compute device in the fleet, physical or simulated.
type Backend struct {
	Name        string   `json:"name"`
	Operational bool     `json:"operational"`
	QubitCount  int      `json:"qubit_count"`
	IsSimulator bool     `json:"is_simulator"`
	PendingJobs int      `json:"pending_jobs"`
	BasisGates  []string `json:"basis_gates,omitempty"`
}

// BackendSummary is the dashboard projection of a Backend. BasisGates is
// truncated to maxGates entries so wide devices do not dominate the payload.
type BackendSummary struct {
	Name        string   `json:"name"`
	Operational bool     `json:"operational"`
	QubitCount  int      `json:"qubit_count"`
	IsSimulator bool     `json:"is_simulator"`
	PendingJobs int      `json:"pending_jobs"`
	BasisGates  []string `json:"basis_gates,omitempty"`
	GatesTotal  int      `json:"gates_total"`
}

// ToSummary projects the backend for dashboard payloads.
func (b Backend) ToSummary(maxGates int) BackendSummary {
	gates := b.BasisGates
	if maxGates >= 0 && len(gates) > maxGates {
		gates = gates[:maxGates]
	}
	return BackendSummary{
		Name:        b.Name,
		Operational: b.Operational,
		QubitCount:  b.QubitCount,
		IsSimulator: b.IsSimulator,
		PendingJobs: b.PendingJobs,
		BasisGates:  gates,
		GatesTotal:  len(b.BasisGates),
	}
}

// QueueStatus is a point-in-time reading of one backend's queue.
type QueueStatus struct {
	Length           int `json:"length"`
	EstimatedWaitSec int `json:"estimated_wait_seconds"`
}

// SystemStats are the fleet-wide aggregates reported by the upstream registry.
type SystemStats struct {
	JobsTotal      int `json:"jobs_total"`
	JobsRunning    int `json:"jobs_running"`
	JobsQueued     int `json:"jobs_queued"`
	JobsCompleted  int `json:"jobs_completed"`
	JobsErrored    int `json:"jobs_errored"`
	BackendsTotal  int `json:"backends_total"`
	BackendsOnline int `json:"backends_online"`
}
