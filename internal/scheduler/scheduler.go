package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/model"
	"github.com/tmoradi/kestrel/internal/monitor"
)

var (
	// ErrNotRunning rejects manual triggers while monitoring is stopped.
	ErrNotRunning = errors.New("scheduler is not running")

	// ErrCycleInFlight rejects a manual trigger that would overlap a
	// running cycle.
	ErrCycleInFlight = errors.New("a cycle is already in flight")
)

// SubscriberCounter reports connected subscribers for the state view.
type SubscriberCounter interface {
	SubscriberCount() int
}

// Scheduler drives the engine on two independent cadences: a fast poll
// running full cycles and a slow deep scan republishing aggregates. A
// single-admission gate guarantees cycles never overlap; a tick that fires
// mid-cycle is skipped, not queued.
type Scheduler struct {
	cfg    *config.Config
	engine *monitor.Engine
	subs   SubscriberCounter

	// Optional cron overrides for the fixed intervals.
	pollSched cron.Schedule
	deepSched cron.Schedule

	// stopChan and wg belong to one generation of loops; Stop waits on
	// the generation it stopped, never on a later restart.
	mu         sync.Mutex
	running    bool
	stopChan   chan struct{}
	wg         *sync.WaitGroup
	nextPollAt time.Time
	nextDeepAt time.Time

	inFlight atomic.Bool

	log *slog.Logger
}

// New builds the scheduler. Cron overrides are parsed here so a bad
// expression fails startup instead of the first tick.
func New(cfg *config.Config, engine *monitor.Engine, subs SubscriberCounter) (*Scheduler, error) {
	s := &Scheduler{
		cfg:    cfg,
		engine: engine,
		subs:   subs,
		log:    config.Logger("scheduler"),
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if cfg.PollSchedule != "" {
		sched, err := parser.Parse(cfg.PollSchedule)
		if err != nil {
			return nil, fmt.Errorf("parsing POLL_SCHEDULE: %w", err)
		}
		s.pollSched = sched
	}
	if cfg.DeepScanSchedule != "" {
		sched, err := parser.Parse(cfg.DeepScanSchedule)
		if err != nil {
			return nil, fmt.Errorf("parsing DEEP_SCAN_SCHEDULE: %w", err)
		}
		s.deepSched = sched
	}
	return s, nil
}

// Start transitions to RUNNING and arms both cadences. The first cycle
// fires after a short warm-up so the rest of the process can finish
// wiring. Starting while already running is a no-op.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Start requested while already running")
		return false
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.wg = &sync.WaitGroup{}
	s.wg.Add(2)
	stop := s.stopChan
	wg := s.wg
	s.mu.Unlock()

	go s.runPollLoop(stop, wg)
	go s.runDeepLoop(stop, wg)

	s.log.Info("Monitoring started",
		"poll_interval", s.cfg.PollInterval.String(),
		"poll_schedule", s.cfg.PollSchedule,
		"deep_scan_interval", s.cfg.DeepScanInterval.String(),
		"deep_scan_schedule", s.cfg.DeepScanSchedule,
		"warmup_delay", s.cfg.WarmupDelay.String(),
	)
	return true
}

// Stop transitions to STOPPED and disarms both cadences. An in-flight
// cycle is not cancelled; Stop waits for its own generation's loops to
// finish. A Start issued while Stop drains begins a fresh generation that
// this Stop does not wait on. Stopping while already stopped is a no-op.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	close(s.stopChan)
	wg := s.wg
	s.nextPollAt = time.Time{}
	s.nextDeepAt = time.Time{}
	s.mu.Unlock()

	wg.Wait()
	s.log.Info("Monitoring stopped")
	return true
}

// Running reports whether the scheduler is in the RUNNING state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerNow runs one cycle immediately, bypassing the timers but not the
// no-overlap gate.
func (s *Scheduler) TriggerNow(ctx context.Context) (model.CycleResult, error) {
	if !s.Running() {
		return model.CycleResult{}, ErrNotRunning
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return model.CycleResult{}, ErrCycleInFlight
	}
	defer s.inFlight.Store(false)

	s.log.Info("Manual cycle triggered")
	return s.engine.RunCycle(ctx)
}

// State assembles the process-wide monitoring view.
func (s *Scheduler) State() model.MonitoringState {
	cs := s.engine.CycleStats()

	s.mu.Lock()
	running := s.running
	nextPoll := s.nextPollAt
	nextDeep := s.nextDeepAt
	s.mu.Unlock()

	state := model.MonitoringState{
		Running:      running,
		MockMode:     s.engine.MockMode(),
		CyclesTotal:  cs.Total,
		CyclesFailed: cs.Failed,
		TrackedJobs:  s.engine.TrackedCount(),
		Subscribers:  s.subs.SubscriberCount(),
		LastCycleID:  cs.LastCycleID,
		LastError:    cs.LastError,
	}
	if !cs.LastCycleAt.IsZero() {
		t := cs.LastCycleAt
		state.LastCycleAt = &t
	}
	if !nextPoll.IsZero() {
		t := nextPoll
		state.NextPollAt = &t
	}
	if !nextDeep.IsZero() {
		t := nextDeep
		state.NextDeepAt = &t
	}
	return state
}

func (s *Scheduler) runPollLoop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	s.setNextPoll(stop, time.Now().Add(s.cfg.WarmupDelay))
	select {
	case <-time.After(s.cfg.WarmupDelay):
	case <-stop:
		return
	}
	s.firePoll()

	for {
		delay := s.pollDelay(time.Now())
		s.setNextPoll(stop, time.Now().Add(delay))
		select {
		case <-time.After(delay):
			s.firePoll()
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) runDeepLoop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		delay := s.deepDelay(time.Now())
		s.setNextDeep(stop, time.Now().Add(delay))
		select {
		case <-time.After(delay):
			s.fireDeep()
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) firePoll() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Warn("Previous cycle still in flight, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	// Stop must not cancel an in-flight cycle, so ticks run against the
	// background context; upstream calls carry their own timeouts.
	if _, err := s.engine.RunCycle(context.Background()); err != nil {
		s.log.Warn("Scheduled cycle skipped", "error", err.Error())
	}
}

func (s *Scheduler) fireDeep() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("Cycle in flight, skipping deep scan")
		return
	}
	defer s.inFlight.Store(false)

	if _, err := s.engine.DeepScan(context.Background()); err != nil {
		s.log.Warn("Deep scan skipped", "error", err.Error())
	}
}

func (s *Scheduler) pollDelay(now time.Time) time.Duration {
	if s.pollSched != nil {
		return s.pollSched.Next(now).Sub(now)
	}
	return s.cfg.PollInterval
}

func (s *Scheduler) deepDelay(now time.Time) time.Duration {
	if s.deepSched != nil {
		return s.deepSched.Next(now).Sub(now)
	}
	return s.cfg.DeepScanInterval
}

// setNextPoll records the armed tick. A loop from a stopped generation,
// still draining an in-flight cycle while a restart runs, must not write
// over the live generation's view.
func (s *Scheduler) setNextPoll(stop <-chan struct{}, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.stopChan == stop {
		s.nextPollAt = t
	}
}

func (s *Scheduler) setNextDeep(stop <-chan struct{}, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.stopChan == stop {
		s.nextDeepAt = t
	}
}
