package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tmoradi/kestrel/internal/bus"
	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/model"
)

// ErrCycleAborted wraps the fetch failure that caused a cycle to be skipped.
var ErrCycleAborted = errors.New("monitoring cycle aborted")

// Source is the slice of the upstream adapter the engine consumes.
type Source interface {
	Jobs(ctx context.Context, limit, offset int, status model.JobStatus) ([]model.Job, error)
	Backends(ctx context.Context) ([]model.Backend, error)
	QueueStatus(ctx context.Context, backend string) (model.QueueStatus, error)
	Stats(ctx context.Context) (model.SystemStats, error)
	MockMode() bool
}

// Publisher is the slice of the fan-out bus the engine publishes through.
type Publisher interface {
	Publish(event string, data any)
	PublishToRoom(room, event string, data any)
}

// Alerter receives every completed cycle for rule evaluation. Optional.
type Alerter interface {
	Evaluate(result model.CycleResult)
}

// CycleStats is the engine's own bookkeeping, surfaced in MonitoringState.
type CycleStats struct {
	Total       uint64
	Failed      uint64
	LastCycleID string
	LastCycleAt time.Time
	LastError   string
}

// Engine runs one fetch-diff-update-publish cycle at a time against the
// snapshot store. Serialization of cycles is the scheduler's job; the
// engine itself assumes a single caller.
type Engine struct {
	source  Source
	pub     Publisher
	alerter Alerter

	snapshot *Snapshot

	fetchLimit  int
	probeLimit  int
	recentLimit int
	gatesLimit  int

	mu           sync.Mutex
	cyclesTotal  uint64
	cyclesFailed uint64
	lastCycleID  string
	lastCycleAt  time.Time
	lastError    string

	log *slog.Logger
}

// NewEngine wires the engine. alerter may be nil when alerting is disabled.
func NewEngine(cfg *config.Config, source Source, pub Publisher, alerter Alerter) *Engine {
	return &Engine{
		source:      source,
		pub:         pub,
		alerter:     alerter,
		snapshot:    NewSnapshot(),
		fetchLimit:  cfg.JobsFetchLimit,
		probeLimit:  cfg.QueueProbeLimit,
		recentLimit: cfg.RecentJobsLimit,
		gatesLimit:  cfg.BasisGatesLimit,
		log:         config.Logger("monitor"),
	}
}

// RunCycle executes one full monitoring cycle: fetch jobs, backends and
// stats concurrently, diff jobs against the snapshot, overwrite the
// snapshot, probe the busiest queues, then publish. If any of the three
// primary fetches fails the cycle aborts and the snapshot stays untouched.
func (e *Engine) RunCycle(ctx context.Context) (model.CycleResult, error) {
	start := time.Now()
	cycleID := uuid.NewString()
	log := e.log.With("cycle_id", cycleID)
	log.Debug("Cycle started")

	var (
		jobs     []model.Job
		backends []model.Backend
		stats    model.SystemStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if jobs, err = e.source.Jobs(gctx, e.fetchLimit, 0, ""); err != nil {
			return fmt.Errorf("fetch jobs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if backends, err = e.source.Backends(gctx); err != nil {
			return fmt.Errorf("fetch backends: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if stats, err = e.source.Stats(gctx); err != nil {
			return fmt.Errorf("fetch stats: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.CycleResult{}, e.abort(cycleID, err)
	}

	observedAt := time.Now().UTC()
	newJobs := make([]model.Job, 0)
	changes := make([]model.StatusChange, 0)
	unchanged := 0
	for _, j := range jobs {
		prev, ok := e.snapshot.Get(j.ID)
		switch {
		case !ok:
			newJobs = append(newJobs, j)
		case prev.Status != j.Status:
			changes = append(changes, model.StatusChange{
				JobID:      j.ID,
				Name:       j.Name,
				Backend:    j.Backend,
				From:       prev.Status,
				To:         j.Status,
				ObservedAt: observedAt,
			})
		default:
			unchanged++
		}
	}
	e.snapshot.Update(jobs)

	result := model.CycleResult{
		CycleID:      cycleID,
		StartedAt:    start.UTC(),
		FromMock:     e.source.MockMode(),
		NewJobs:      newJobs,
		Changes:      changes,
		Unchanged:    unchanged,
		TrackedJobs:  e.snapshot.Len(),
		Summary:      e.buildSummary(observedAt, jobs, backends, stats),
		QueueUpdates: e.probeQueues(ctx, backends),
	}
	result.DurationMS = time.Since(start).Milliseconds()

	e.recordSuccess(result)
	e.publish(result)
	if e.alerter != nil {
		e.alerter.Evaluate(result)
	}

	log.Info("Cycle completed",
		"duration_ms", result.DurationMS,
		"new_jobs", len(result.NewJobs),
		"status_changes", len(result.Changes),
		"unchanged", result.Unchanged,
		"tracked_jobs", result.TrackedJobs,
		"from_mock", result.FromMock,
	)
	return result, nil
}

// DeepScan re-fetches the fleet aggregates and republishes them without
// running the diff. Driven by the slow cadence.
func (e *Engine) DeepScan(ctx context.Context) (model.SystemStats, error) {
	stats, err := e.source.Stats(ctx)
	if err != nil {
		e.mu.Lock()
		e.lastError = err.Error()
		e.mu.Unlock()

		e.log.Error("Deep scan failed", "error", err.Error())
		e.pub.Publish(bus.EventMonitorError, map[string]any{
			"error": err.Error(),
			"at":    time.Now().UTC(),
		})
		return model.SystemStats{}, err
	}

	e.pub.Publish(bus.EventStatsUpdate, stats)
	e.log.Info("Deep scan completed",
		"jobs_total", stats.JobsTotal,
		"backends_online", stats.BackendsOnline,
	)
	return stats, nil
}

// MockMode reports whether the upstream source is serving synthetic data.
func (e *Engine) MockMode() bool {
	return e.source.MockMode()
}

// TrackedJobs returns every job in the snapshot, newest first.
func (e *Engine) TrackedJobs() []model.Job {
	return e.snapshot.Jobs()
}

// TrackedJob returns the stored record of one job.
func (e *Engine) TrackedJob(id string) (model.Job, bool) {
	return e.snapshot.Get(id)
}

// TrackedCount counts jobs in the snapshot.
func (e *Engine) TrackedCount() int {
	return e.snapshot.Len()
}

// ClearSnapshot drops the snapshot store.
func (e *Engine) ClearSnapshot() int {
	n := e.snapshot.Clear()
	e.log.Info("Snapshot cleared", "jobs_dropped", n)
	return n
}

// CycleStats returns a copy of the engine's counters.
func (e *Engine) CycleStats() CycleStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CycleStats{
		Total:       e.cyclesTotal,
		Failed:      e.cyclesFailed,
		LastCycleID: e.lastCycleID,
		LastCycleAt: e.lastCycleAt,
		LastError:   e.lastError,
	}
}

func (e *Engine) abort(cycleID string, cause error) error {
	e.mu.Lock()
	e.cyclesTotal++
	e.cyclesFailed++
	e.lastError = cause.Error()
	e.mu.Unlock()

	e.log.Error("Cycle aborted, snapshot left unchanged",
		"cycle_id", cycleID,
		"error", cause.Error(),
	)
	e.pub.Publish(bus.EventMonitorError, map[string]any{
		"cycle_id": cycleID,
		"error":    cause.Error(),
		"at":       time.Now().UTC(),
	})
	return errors.Join(ErrCycleAborted, cause)
}

func (e *Engine) recordSuccess(r model.CycleResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cyclesTotal++
	e.lastCycleID = r.CycleID
	e.lastCycleAt = r.StartedAt
	e.lastError = ""
}

// publish fans the cycle out. dashboard_update always fires; the change
// topics only fire when they carry something.
func (e *Engine) publish(r model.CycleResult) {
	e.pub.Publish(bus.EventDashboardUpdate, r.Summary)
	if len(r.NewJobs) > 0 {
		e.pub.Publish(bus.EventNewJobs, r.NewJobs)
	}
	if len(r.Changes) > 0 {
		e.pub.Publish(bus.EventJobStatusChange, r.Changes)
	}
	if len(r.QueueUpdates) > 0 {
		e.pub.Publish(bus.EventQueueUpdate, r.QueueUpdates)
		for _, qu := range r.QueueUpdates {
			e.pub.PublishToRoom(bus.RoomForBackend(qu.Backend), bus.EventQueueUpdate, qu)
		}
	}
}

func (e *Engine) buildSummary(at time.Time, jobs []model.Job, backends []model.Backend, stats model.SystemStats) model.DashboardSummary {
	// Sort a copy: the jobs slice may be shared with the adapter's cache.
	recent := append([]model.Job(nil), jobs...)
	sort.Slice(recent, func(i, k int) bool {
		return recent[i].CreationDate.After(recent[k].CreationDate)
	})
	if len(recent) > e.recentLimit {
		recent = recent[:e.recentLimit]
	}

	online := 0
	summaries := make([]model.BackendSummary, 0, len(backends))
	for _, b := range backends {
		if b.Operational {
			online++
		}
		summaries = append(summaries, b.ToSummary(e.gatesLimit))
	}

	return model.DashboardSummary{
		GeneratedAt:    at,
		Jobs:           model.CountJobs(jobs),
		Backends:       summaries,
		BackendsOnline: online,
		RecentJobs:     recent,
		Stats:          &stats,
	}
}

// probeQueues reads queue depth for the busiest operational devices,
// simulators excluded. Probes are best-effort; a failed probe is logged
// and skipped.
func (e *Engine) probeQueues(ctx context.Context, backends []model.Backend) []model.QueueUpdate {
	candidates := make([]model.Backend, 0, len(backends))
	for _, b := range backends {
		if b.Operational && !b.IsSimulator {
			candidates = append(candidates, b)
		}
	}
	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].PendingJobs != candidates[k].PendingJobs {
			return candidates[i].PendingJobs > candidates[k].PendingJobs
		}
		return candidates[i].Name < candidates[k].Name
	})
	if len(candidates) > e.probeLimit {
		candidates = candidates[:e.probeLimit]
	}

	updates := make([]model.QueueUpdate, len(candidates))
	var g errgroup.Group
	for i, b := range candidates {
		i, b := i, b
		g.Go(func() error {
			qs, err := e.source.QueueStatus(ctx, b.Name)
			if err != nil {
				e.log.Warn("Queue probe failed", "backend", b.Name, "error", err.Error())
				return nil
			}
			updates[i] = model.QueueUpdate{
				Backend:          b.Name,
				Length:           qs.Length,
				EstimatedWaitSec: qs.EstimatedWaitSec,
				ObservedAt:       time.Now().UTC(),
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.QueueUpdate, 0, len(updates))
	for _, u := range updates {
		if u.Backend != "" {
			out = append(out, u)
		}
	}
	return out
}
