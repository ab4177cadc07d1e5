package model

import (
	"time"
)

// JobStatus is the lifecycle state the upstream registry reports for a job.
type JobStatus string

const (
	StatusRunning   JobStatus = "RUNNING"
	StatusQueued    JobStatus = "QUEUED"
	StatusCompleted JobStatus = "COMPLETED"
	StatusError     JobStatus = "ERROR"
	StatusCancelled JobStatus = "CANCELLED"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusRunning, StatusQueued, StatusCompleted, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether a job in this status can still change state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Job represents a unit of work submitted to the compute fleet.
// ID is unique and immutable for the lifetime of the process; Status is the
// field that changes between observations.
type Job struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name,omitempty"`
	Status                  JobStatus  `json:"status"`
	Backend                 string     `json:"backend"`
	Shots                   int        `json:"shots"`
	Qubits                  int        `json:"qubits"`
	CreationDate            time.Time  `json:"creation_date"`
	QueuePosition           *int       `json:"queue_position,omitempty"`
	EstimatedCompletionTime *time.Time `json:"estimated_completion_time,omitempty"`
}

// DisplayName returns the job name, falling back to the ID when the
// submitter did not label the job.
func (j Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}
