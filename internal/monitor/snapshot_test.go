package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmoradi/kestrel/internal/model"
)

func TestSnapshotUpdateAndGet(t *testing.T) {
	s := NewSnapshot()

	s.Update([]model.Job{
		{ID: "a", Status: model.StatusQueued},
		{ID: "b", Status: model.StatusRunning},
	})

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, got.Status)

	_, ok = s.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestSnapshotKeepsJobsAbsentFromBatch(t *testing.T) {
	s := NewSnapshot()
	s.Update([]model.Job{
		{ID: "a", Status: model.StatusQueued},
		{ID: "b", Status: model.StatusRunning},
	})

	// The next batch no longer carries "a"; its last record survives.
	s.Update([]model.Job{
		{ID: "b", Status: model.StatusCompleted},
	})

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.StatusQueued, got.Status)

	got, ok = s.Get("b")
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 2, s.Len())
}

func TestSnapshotJobsSortedNewestFirst(t *testing.T) {
	s := NewSnapshot()
	base := time.Now()
	s.Update([]model.Job{
		{ID: "old", CreationDate: base.Add(-2 * time.Hour)},
		{ID: "new", CreationDate: base},
		{ID: "mid", CreationDate: base.Add(-1 * time.Hour)},
	})

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, "mid", jobs[1].ID)
	assert.Equal(t, "old", jobs[2].ID)
}

func TestSnapshotClear(t *testing.T) {
	s := NewSnapshot()
	s.Update([]model.Job{{ID: "a"}, {ID: "b"}})

	assert.Equal(t, 2, s.Clear())
	assert.Equal(t, 0, s.Len())

	_, ok := s.Get("a")
	assert.False(t, ok)
}
