package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountJobs(t *testing.T) {
	jobs := []Job{
		{ID: "a", Status: StatusRunning},
		{ID: "b", Status: StatusRunning},
		{ID: "c", Status: StatusQueued},
		{ID: "d", Status: StatusCompleted},
		{ID: "e", Status: StatusError},
		{ID: "f", Status: StatusCancelled},
	}

	counts := CountJobs(jobs)

	assert.Equal(t, 6, counts.Total)
	assert.Equal(t, 2, counts.Running)
	assert.Equal(t, 1, counts.Queued)
	assert.Equal(t, 1, counts.Completed)
	assert.Equal(t, 2, counts.Errored, "ERROR and CANCELLED share the errored bucket")
}

func TestCountJobsEmpty(t *testing.T) {
	assert.Equal(t, JobCounts{}, CountJobs(nil))
}
