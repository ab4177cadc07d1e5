package upstream

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmoradi/kestrel/internal/model"
)

const (
	mockSeedJobs = 18
	mockMaxJobs  = 36
)

type mockDevice struct {
	name       string
	qubits     int
	simulator  bool
	basisGates []string
}

var mockFleet = []mockDevice{
	{"falcon-27", 27, false, []string{"id", "rz", "sx", "x", "cx"}},
	{"egret-5", 5, false, []string{"id", "rz", "sx", "x", "ecr"}},
	{"heron-133", 133, false, []string{"id", "rz", "sx", "x", "cz"}},
	{"condor-433", 433, false, []string{"id", "rz", "sx", "x", "cx"}},
	{"osprey-sim-32", 32, true, []string{"id", "rz", "sx", "x", "cx", "cz", "swap", "ccx"}},
	{"albatross-sim-64", 64, true, []string{"id", "rz", "sx", "x", "cx", "cz", "swap", "ccx"}},
}

var mockJobPrefixes = []string{"vqe", "qaoa", "grover", "bell", "ghz", "teleport", "kernel", "sampler"}

var mockShots = []int{1024, 2048, 4096, 8192}

// Mock serves synthetic registry data matching the real wire schema. It keeps
// a fleet of jobs between calls and walks their statuses forward on each read,
// so consecutive cycles observe plausible transitions instead of an unrelated
// random universe every time.
type Mock struct {
	mu   sync.Mutex
	rng  *rand.Rand
	jobs []model.Job
	seq  int
}

// NewMock seeds a fleet mid-flight, with jobs spread across statuses.
func NewMock() *Mock {
	m := &Mock{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	base := time.Now().Add(-30 * time.Minute)
	for i := 0; i < mockSeedJobs; i++ {
		m.jobs = append(m.jobs, m.newJob(base.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 3; i++ {
		m.advance()
	}
	return m
}

// Jobs returns the current fleet, newest first, after advancing it one step.
func (m *Mock) Jobs(ctx context.Context, limit, offset int, status model.JobStatus) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()

	out := make([]model.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreationDate.After(out[k].CreationDate) })

	if offset >= len(out) {
		return []model.Job{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Job looks up a single tracked job by ID.
func (m *Mock) Job(ctx context.Context, id string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return model.Job{}, fmt.Errorf("%w: job %s", ErrNotFound, id)
}

// Backends lists the fleet devices with pending counts derived from the
// current job population.
func (m *Mock) Backends(ctx context.Context) ([]model.Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := make(map[string]int)
	for _, j := range m.jobs {
		if j.Status == model.StatusQueued {
			pending[j.Backend]++
		}
	}

	out := make([]model.Backend, 0, len(mockFleet))
	for _, dev := range mockFleet {
		operational := true
		if !dev.simulator && m.rng.Float64() < 0.04 {
			operational = false
		}
		out = append(out, model.Backend{
			Name:        dev.name,
			Operational: operational,
			QubitCount:  dev.qubits,
			IsSimulator: dev.simulator,
			PendingJobs: pending[dev.name],
			BasisGates:  dev.basisGates,
		})
	}
	return out, nil
}

// QueueStatus reports the queue of one known device.
func (m *Mock) QueueStatus(ctx context.Context, backend string) (model.QueueStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := false
	for _, dev := range mockFleet {
		if dev.name == backend {
			known = true
			break
		}
	}
	if !known {
		return model.QueueStatus{}, fmt.Errorf("%w: backend %s", ErrNotFound, backend)
	}

	length := m.rng.Intn(4)
	for _, j := range m.jobs {
		if j.Status == model.StatusQueued && j.Backend == backend {
			length++
		}
	}
	return model.QueueStatus{
		Length:           length,
		EstimatedWaitSec: length * (60 + m.rng.Intn(180)),
	}, nil
}

// Stats aggregates the current fleet into system-wide counters.
func (m *Mock) Stats(ctx context.Context) (model.SystemStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := model.SystemStats{
		JobsTotal:      len(m.jobs),
		BackendsTotal:  len(mockFleet),
		BackendsOnline: len(mockFleet) - m.rng.Intn(2),
	}
	for _, j := range m.jobs {
		switch j.Status {
		case model.StatusRunning:
			s.JobsRunning++
		case model.StatusQueued:
			s.JobsQueued++
		case model.StatusCompleted:
			s.JobsCompleted++
		case model.StatusError, model.StatusCancelled:
			s.JobsErrored++
		}
	}
	return s, nil
}

// advance walks the fleet one step: queued jobs start, running jobs finish,
// finished jobs age out, new submissions arrive. Callers hold m.mu.
func (m *Mock) advance() {
	now := time.Now()

	for i := range m.jobs {
		j := &m.jobs[i]
		switch j.Status {
		case model.StatusQueued:
			if m.rng.Float64() < 0.35 {
				j.Status = model.StatusRunning
				j.QueuePosition = nil
				eta := now.Add(time.Duration(2+m.rng.Intn(12)) * time.Minute)
				j.EstimatedCompletionTime = &eta
			}
		case model.StatusRunning:
			switch roll := m.rng.Float64(); {
			case roll < 0.30:
				j.Status = model.StatusCompleted
				j.EstimatedCompletionTime = nil
			case roll < 0.36:
				j.Status = model.StatusError
				j.EstimatedCompletionTime = nil
			case roll < 0.39:
				j.Status = model.StatusCancelled
				j.EstimatedCompletionTime = nil
			}
		}
	}

	for n := m.rng.Intn(3); n > 0; n-- {
		m.jobs = append(m.jobs, m.newJob(now))
	}

	// Oldest finished jobs age out once the fleet outgrows its cap.
	if over := len(m.jobs) - mockMaxJobs; over > 0 {
		kept := make([]model.Job, 0, len(m.jobs))
		for _, j := range m.jobs {
			if over > 0 && j.Status.Terminal() {
				over--
				continue
			}
			kept = append(kept, j)
		}
		m.jobs = kept
	}

	// Queue positions are per backend, in submission order.
	pos := make(map[string]int)
	for i := range m.jobs {
		j := &m.jobs[i]
		if j.Status == model.StatusQueued {
			pos[j.Backend]++
			p := pos[j.Backend]
			j.QueuePosition = &p
		}
	}
}

func (m *Mock) newJob(createdAt time.Time) model.Job {
	m.seq++
	dev := mockFleet[m.rng.Intn(len(mockFleet))]
	return model.Job{
		ID:           uuid.NewString(),
		Name:         fmt.Sprintf("%s-%d", mockJobPrefixes[m.rng.Intn(len(mockJobPrefixes))], m.seq),
		Status:       model.StatusQueued,
		Backend:      dev.name,
		Shots:        mockShots[m.rng.Intn(len(mockShots))],
		Qubits:       2 + m.rng.Intn(dev.qubits-1),
		CreationDate: createdAt,
	}
}
