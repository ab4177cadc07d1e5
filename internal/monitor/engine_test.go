package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmoradi/kestrel/internal/bus"
	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/model"
)

type fakeSource struct {
	mu          sync.Mutex
	jobs        []model.Job
	backends    []model.Backend
	stats       model.SystemStats
	queues      map[string]model.QueueStatus
	jobsErr     error
	backendsErr error
	statsErr    error
	mock        bool
}

func (f *fakeSource) Jobs(ctx context.Context, limit, offset int, status model.JobStatus) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.jobsErr != nil {
		return nil, f.jobsErr
	}
	return append([]model.Job(nil), f.jobs...), nil
}

func (f *fakeSource) Backends(ctx context.Context) ([]model.Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.backendsErr != nil {
		return nil, f.backendsErr
	}
	return append([]model.Backend(nil), f.backends...), nil
}

func (f *fakeSource) QueueStatus(ctx context.Context, backend string) (model.QueueStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	qs, ok := f.queues[backend]
	if !ok {
		return model.QueueStatus{}, fmt.Errorf("no queue for %s", backend)
	}
	return qs, nil
}

func (f *fakeSource) Stats(ctx context.Context) (model.SystemStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return model.SystemStats{}, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeSource) MockMode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mock
}

func (f *fakeSource) setJobStatus(id string, status model.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.jobs {
		if f.jobs[i].ID == id {
			f.jobs[i].Status = status
		}
	}
}

type published struct {
	room  string
	event string
	data  any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: event, data: data})
}

func (p *fakePublisher) PublishToRoom(room, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room: room, event: event, data: data})
}

func (p *fakePublisher) byEvent(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeAlerter struct {
	mu      sync.Mutex
	results []model.CycleResult
}

func (a *fakeAlerter) Evaluate(result model.CycleResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, result)
}

func testEngineConfig() *config.Config {
	return &config.Config{
		JobsFetchLimit:  50,
		QueueProbeLimit: 2,
		RecentJobsLimit: 3,
		BasisGatesLimit: 2,
	}
}

func twoJobs() []model.Job {
	base := time.Now()
	return []model.Job{
		{ID: "j-1", Name: "vqe-1", Status: model.StatusQueued, Backend: "falcon-27", CreationDate: base.Add(-time.Minute)},
		{ID: "j-2", Name: "qaoa-2", Status: model.StatusRunning, Backend: "heron-133", CreationDate: base},
	}
}

func TestEngineFirstCycleAllNew(t *testing.T) {
	src := &fakeSource{jobs: twoJobs()}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.NewJobs, 2)
	assert.Empty(t, result.Changes)
	assert.Equal(t, 0, result.Unchanged)
	assert.Equal(t, 2, result.TrackedJobs)
	assert.NotEmpty(t, result.CycleID)

	require.Len(t, pub.byEvent(bus.EventDashboardUpdate), 1)
	require.Len(t, pub.byEvent(bus.EventNewJobs), 1)
}

func TestEngineDetectsStatusChangeOnce(t *testing.T) {
	src := &fakeSource{jobs: twoJobs()}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)
	ctx := context.Background()

	_, err := e.RunCycle(ctx)
	require.NoError(t, err)

	src.setJobStatus("j-1", model.StatusRunning)

	result, err := e.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "j-1", result.Changes[0].JobID)
	assert.Equal(t, model.StatusQueued, result.Changes[0].From)
	assert.Equal(t, model.StatusRunning, result.Changes[0].To)
	assert.Empty(t, result.NewJobs)
	assert.Equal(t, 1, result.Unchanged)

	// A third cycle with nothing moving reports no changes and does not
	// republish the change topic.
	result, err = e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Changes)
	assert.Equal(t, 2, result.Unchanged)
	assert.Len(t, pub.byEvent(bus.EventJobStatusChange), 1)
}

func TestEngineAbortLeavesSnapshotUntouched(t *testing.T) {
	src := &fakeSource{jobs: twoJobs()}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)
	ctx := context.Background()

	_, err := e.RunCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, e.TrackedCount())

	src.mu.Lock()
	src.backendsErr = errors.New("registry down")
	src.mu.Unlock()

	_, err = e.RunCycle(ctx)
	require.ErrorIs(t, err, ErrCycleAborted)

	assert.Equal(t, 2, e.TrackedCount(), "a failed cycle must not touch the snapshot")
	assert.Len(t, pub.byEvent(bus.EventMonitorError), 1)
	assert.Len(t, pub.byEvent(bus.EventDashboardUpdate), 1, "no dashboard for an aborted cycle")

	stats := e.CycleStats()
	assert.Equal(t, uint64(2), stats.Total)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Contains(t, stats.LastError, "registry down")

	// Recovery clears the sticky error.
	src.mu.Lock()
	src.backendsErr = nil
	src.mu.Unlock()
	_, err = e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, e.CycleStats().LastError)
}

func TestEngineQueueProbesRankedAndCapped(t *testing.T) {
	src := &fakeSource{
		jobs: twoJobs(),
		backends: []model.Backend{
			{Name: "idle-1", Operational: true, PendingJobs: 1},
			{Name: "busy-9", Operational: true, PendingJobs: 9},
			{Name: "busy-5", Operational: true, PendingJobs: 5},
			{Name: "down-7", Operational: false, PendingJobs: 7},
			{Name: "sim-8", Operational: true, IsSimulator: true, PendingJobs: 8},
		},
		queues: map[string]model.QueueStatus{
			"idle-1": {Length: 1},
			"busy-9": {Length: 9, EstimatedWaitSec: 540},
			"busy-5": {Length: 5, EstimatedWaitSec: 300},
			"down-7": {Length: 7},
			"sim-8":  {Length: 8},
		},
	}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	// Probe limit is 2: only the two busiest operational hardware devices.
	require.Len(t, result.QueueUpdates, 2)
	names := []string{result.QueueUpdates[0].Backend, result.QueueUpdates[1].Backend}
	assert.Contains(t, names, "busy-9")
	assert.Contains(t, names, "busy-5")

	// One global list plus one room-scoped event per probed device.
	global := pub.byEvent(bus.EventQueueUpdate)
	require.Len(t, global, 3)
	rooms := make([]string, 0, 2)
	for _, ev := range global {
		if ev.room != "" {
			rooms = append(rooms, ev.room)
		}
	}
	assert.Contains(t, rooms, bus.RoomForBackend("busy-9"))
	assert.Contains(t, rooms, bus.RoomForBackend("busy-5"))
}

func TestEngineProbeFailureSkipped(t *testing.T) {
	src := &fakeSource{
		jobs: twoJobs(),
		backends: []model.Backend{
			{Name: "ok-dev", Operational: true, PendingJobs: 4},
			{Name: "broken-dev", Operational: true, PendingJobs: 2},
		},
		queues: map[string]model.QueueStatus{
			"ok-dev": {Length: 4},
		},
	}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err, "a failed probe never fails the cycle")
	require.Len(t, result.QueueUpdates, 1)
	assert.Equal(t, "ok-dev", result.QueueUpdates[0].Backend)
}

func TestEngineSummaryShape(t *testing.T) {
	base := time.Now()
	jobs := []model.Job{
		{ID: "j-1", Status: model.StatusRunning, CreationDate: base.Add(-4 * time.Minute)},
		{ID: "j-2", Status: model.StatusQueued, CreationDate: base.Add(-3 * time.Minute)},
		{ID: "j-3", Status: model.StatusCompleted, CreationDate: base.Add(-2 * time.Minute)},
		{ID: "j-4", Status: model.StatusError, CreationDate: base.Add(-time.Minute)},
		{ID: "j-5", Status: model.StatusCancelled, CreationDate: base},
	}
	src := &fakeSource{
		jobs: jobs,
		backends: []model.Backend{
			{Name: "falcon-27", Operational: true, BasisGates: []string{"id", "rz", "sx", "x", "cx"}},
			{Name: "egret-5", Operational: false},
		},
		stats: model.SystemStats{JobsTotal: 40},
	}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	sum := result.Summary
	assert.Equal(t, 5, sum.Jobs.Total)
	assert.Equal(t, 1, sum.Jobs.Running)
	assert.Equal(t, 1, sum.Jobs.Queued)
	assert.Equal(t, 1, sum.Jobs.Completed)
	assert.Equal(t, 2, sum.Jobs.Errored, "ERROR and CANCELLED fold together")
	assert.Equal(t, 1, sum.BackendsOnline)

	// Recent jobs are capped at the configured limit, newest first.
	require.Len(t, sum.RecentJobs, 3)
	assert.Equal(t, "j-5", sum.RecentJobs[0].ID)
	assert.Equal(t, "j-4", sum.RecentJobs[1].ID)

	// Basis gates are truncated for display but the total is preserved.
	require.Len(t, sum.Backends, 2)
	assert.Len(t, sum.Backends[0].BasisGates, 2)
	assert.Equal(t, 5, sum.Backends[0].GatesTotal)

	require.NotNil(t, sum.Stats)
	assert.Equal(t, 40, sum.Stats.JobsTotal)
}

func TestEngineDeepScanPublishesStatsOnly(t *testing.T) {
	src := &fakeSource{
		jobs:  twoJobs(),
		stats: model.SystemStats{JobsTotal: 12, BackendsOnline: 4},
	}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)
	ctx := context.Background()

	_, err := e.RunCycle(ctx)
	require.NoError(t, err)
	tracked := e.TrackedCount()

	stats, err := e.DeepScan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.JobsTotal)

	events := pub.byEvent(bus.EventStatsUpdate)
	require.Len(t, events, 1)
	got, ok := events[0].data.(model.SystemStats)
	require.True(t, ok)
	assert.Equal(t, 12, got.JobsTotal)

	assert.Equal(t, tracked, e.TrackedCount(), "deep scans never touch the snapshot")
	assert.Equal(t, uint64(1), e.CycleStats().Total, "deep scans are not cycles")
}

func TestEngineDeepScanFailure(t *testing.T) {
	src := &fakeSource{statsErr: errors.New("stats offline")}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)

	_, err := e.DeepScan(context.Background())
	require.Error(t, err)
	assert.Len(t, pub.byEvent(bus.EventMonitorError), 1)
	assert.Contains(t, e.CycleStats().LastError, "stats offline")
}

func TestEngineHandsResultToAlerter(t *testing.T) {
	src := &fakeSource{jobs: twoJobs()}
	pub := &fakePublisher{}
	al := &fakeAlerter{}
	e := NewEngine(testEngineConfig(), src, pub, al)

	result, err := e.RunCycle(context.Background())
	require.NoError(t, err)

	al.mu.Lock()
	defer al.mu.Unlock()
	require.Len(t, al.results, 1)
	assert.Equal(t, result.CycleID, al.results[0].CycleID)
}

func TestEngineClearSnapshotRestartsDiff(t *testing.T) {
	src := &fakeSource{jobs: twoJobs()}
	pub := &fakePublisher{}
	e := NewEngine(testEngineConfig(), src, pub, nil)
	ctx := context.Background()

	_, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, e.ClearSnapshot())

	// With the store empty everything is new again.
	result, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, result.NewJobs, 2)
}
