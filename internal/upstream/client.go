package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmoradi/kestrel/internal/config"
	"github.com/tmoradi/kestrel/internal/model"
)

// Responses are read through a limit to keep a misbehaving registry from
// ballooning memory.
const maxResponseBytes = 1 << 20

// Client is the adapter in front of the job registry. Reads go through
// per-endpoint TTL caches; failed bulk reads are served from the mock fleet
// instead of propagating, and repeated authentication failures latch the
// client into mock mode for the rest of the session.
type Client struct {
	base       string
	token      string
	http       *http.Client
	timeout    time.Duration
	retryDelay time.Duration

	jobs     *Cache[[]model.Job]
	backends *Cache[[]model.Backend]
	queues   *Cache[model.QueueStatus]
	stats    *Cache[model.SystemStats]

	mock *Mock

	mu            sync.Mutex
	authFails     int
	authThreshold int
	mockMode      bool

	log *slog.Logger
}

// newHTTPClient tunes the shared transport for the poller: a single registry
// host with at most the bulk fetches and queue probes of one cycle in flight.
// Idle connections are kept long enough to span a poll cadence.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     2 * time.Minute,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// NewClient builds the adapter from configuration. Passing a nil httpClient
// selects the default pooled transport; tests inject their own.
func NewClient(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.UpstreamTimeout)
	}
	c := &Client{
		base:          strings.TrimRight(cfg.UpstreamBaseURL, "/"),
		token:         cfg.UpstreamAPIToken,
		http:          httpClient,
		timeout:       cfg.UpstreamTimeout,
		retryDelay:    cfg.RateLimitRetryDelay,
		authThreshold: cfg.AuthFailureThreshold,
		mockMode:      cfg.MockMode,
		mock:          NewMock(),
		jobs:          NewCache[[]model.Job](cfg.JobsCacheTTL),
		backends:      NewCache[[]model.Backend](cfg.BackendsCacheTTL),
		queues:        NewCache[model.QueueStatus](cfg.QueueCacheTTL),
		stats:         NewCache[model.SystemStats](cfg.StatsCacheTTL),
		log:           config.Logger("upstream"),
	}
	if c.mockMode {
		c.log.Info("Mock mode enabled by configuration, registry will not be contacted")
	}
	return c
}

// Jobs fetches a page of jobs, optionally filtered by status. Failures are
// absorbed by the mock fleet so callers always get a schema-shaped answer.
func (c *Client) Jobs(ctx context.Context, limit, offset int, status model.JobStatus) ([]model.Job, error) {
	key := fmt.Sprintf("jobs|%d|%d|%s", limit, offset, status)
	if jobs, ok := c.jobs.Get(key); ok {
		return jobs, nil
	}

	if c.MockMode() {
		jobs, err := c.mock.Jobs(ctx, limit, offset, status)
		if err != nil {
			return nil, err
		}
		c.jobs.Set(key, jobs)
		return jobs, nil
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if status != "" {
		q.Set("status", string(status))
	}

	var resp jobsResponse
	if err := c.getJSON(ctx, "/v1/jobs?"+q.Encode(), &resp); err != nil {
		c.noteError(err)
		c.log.Warn("Jobs fetch failed, serving mock data", "error", err.Error())
		jobs, mockErr := c.mock.Jobs(ctx, limit, offset, status)
		if mockErr != nil {
			return nil, mockErr
		}
		c.jobs.Set(key, jobs)
		return jobs, nil
	}
	c.noteSuccess()

	jobs := make([]model.Job, 0, len(resp.Jobs))
	for _, dto := range resp.Jobs {
		jobs = append(jobs, dto.toModel())
	}
	c.jobs.Set(key, jobs)
	return jobs, nil
}

// Job looks up one job by ID. Unlike the bulk reads there is no mock
// substitute for an unknown entity, so failures propagate to the caller.
func (c *Client) Job(ctx context.Context, id string) (model.Job, error) {
	if c.MockMode() {
		return c.mock.Job(ctx, id)
	}

	var dto jobDTO
	if err := c.getJSON(ctx, "/v1/jobs/"+url.PathEscape(id), &dto); err != nil {
		c.noteError(err)
		return model.Job{}, err
	}
	c.noteSuccess()
	return dto.toModel(), nil
}

// Backends fetches the device inventory.
func (c *Client) Backends(ctx context.Context) ([]model.Backend, error) {
	const key = "backends"
	if backends, ok := c.backends.Get(key); ok {
		return backends, nil
	}

	if c.MockMode() {
		backends, err := c.mock.Backends(ctx)
		if err != nil {
			return nil, err
		}
		c.backends.Set(key, backends)
		return backends, nil
	}

	var resp backendsResponse
	if err := c.getJSON(ctx, "/v1/backends", &resp); err != nil {
		c.noteError(err)
		c.log.Warn("Backends fetch failed, serving mock data", "error", err.Error())
		backends, mockErr := c.mock.Backends(ctx)
		if mockErr != nil {
			return nil, mockErr
		}
		c.backends.Set(key, backends)
		return backends, nil
	}
	c.noteSuccess()

	backends := make([]model.Backend, 0, len(resp.Backends))
	for _, dto := range resp.Backends {
		backends = append(backends, dto.toModel())
	}
	c.backends.Set(key, backends)
	return backends, nil
}

// QueueStatus reads one device's queue depth. An unknown device name
// propagates as ErrNotFound; every other failure is absorbed by the mock.
func (c *Client) QueueStatus(ctx context.Context, backend string) (model.QueueStatus, error) {
	if qs, ok := c.queues.Get(backend); ok {
		return qs, nil
	}

	if c.MockMode() {
		qs, err := c.mock.QueueStatus(ctx, backend)
		if err != nil {
			return model.QueueStatus{}, err
		}
		c.queues.Set(backend, qs)
		return qs, nil
	}

	var dto queueDTO
	if err := c.getJSON(ctx, "/v1/backends/"+url.PathEscape(backend)+"/queue", &dto); err != nil {
		c.noteError(err)
		if errors.Is(err, ErrNotFound) {
			return model.QueueStatus{}, err
		}
		c.log.Warn("Queue fetch failed, serving mock data", "backend", backend, "error", err.Error())
		qs, mockErr := c.mock.QueueStatus(ctx, backend)
		if mockErr != nil {
			return model.QueueStatus{}, mockErr
		}
		c.queues.Set(backend, qs)
		return qs, nil
	}
	c.noteSuccess()

	qs := model.QueueStatus{Length: dto.Length, EstimatedWaitSec: dto.EstimatedWaitSeconds}
	c.queues.Set(backend, qs)
	return qs, nil
}

// Stats fetches the registry's fleet-wide aggregates.
func (c *Client) Stats(ctx context.Context) (model.SystemStats, error) {
	const key = "stats"
	if stats, ok := c.stats.Get(key); ok {
		return stats, nil
	}

	if c.MockMode() {
		stats, err := c.mock.Stats(ctx)
		if err != nil {
			return model.SystemStats{}, err
		}
		c.stats.Set(key, stats)
		return stats, nil
	}

	var stats model.SystemStats
	if err := c.getJSON(ctx, "/v1/stats", &stats); err != nil {
		c.noteError(err)
		c.log.Warn("Stats fetch failed, serving mock data", "error", err.Error())
		mocked, mockErr := c.mock.Stats(ctx)
		if mockErr != nil {
			return model.SystemStats{}, mockErr
		}
		c.stats.Set(key, mocked)
		return mocked, nil
	}
	c.noteSuccess()

	c.stats.Set(key, stats)
	return stats, nil
}

// ClearCache discards every cached entry across all endpoints and reports
// how many were dropped. The next read of each endpoint re-fetches or
// re-mocks.
func (c *Client) ClearCache() int {
	n := c.jobs.Clear() + c.backends.Clear() + c.queues.Clear() + c.stats.Clear()
	c.log.Info("Upstream cache cleared", "entries_dropped", n)
	return n
}

// CacheSize counts entries currently held across all endpoint caches.
func (c *Client) CacheSize() int {
	return c.jobs.Len() + c.backends.Len() + c.queues.Len() + c.stats.Len()
}

// MockMode reports whether the client is serving synthetic data, either by
// configuration or because the auth-failure latch tripped.
func (c *Client) MockMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mockMode
}

// noteSuccess resets the consecutive auth-failure counter.
func (c *Client) noteSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authFails = 0
}

// noteError advances the auth-failure latch. The latch is one-way: once
// tripped, the client stays on mock data until process restart.
func (c *Client) noteError(err error) {
	if !errors.Is(err, ErrAuthFailed) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mockMode {
		return
	}
	c.authFails++
	if c.authFails >= c.authThreshold {
		c.mockMode = true
		c.log.Warn("Authentication failure threshold reached, serving mock data for the rest of the session",
			"consecutive_failures", c.authFails,
		)
	}
}

// getJSON performs a GET with a single bounded retry when the registry
// answers 429.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	err := c.doGET(ctx, path, out)
	if errors.Is(err, ErrRateLimited) {
		c.log.Warn("Rate limited by registry, retrying once", "path", path, "delay", c.retryDelay.String())
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		err = c.doGET(ctx, path, out)
	}
	return err
}

func (c *Client) doGET(ctx context.Context, path string, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}

// Wire shapes of the registry API. Mapping to the internal model happens
// here so the rest of the system never sees registry field names.

type jobsResponse struct {
	Jobs []jobDTO `json:"jobs"`
}

type jobDTO struct {
	ID                      string     `json:"id"`
	Name                    string     `json:"name"`
	Status                  string     `json:"status"`
	Backend                 string     `json:"backend"`
	Shots                   int        `json:"shots"`
	Qubits                  int        `json:"qubits"`
	CreatedAt               time.Time  `json:"created_at"`
	QueuePosition           *int       `json:"queue_position"`
	EstimatedCompletionTime *time.Time `json:"estimated_completion_time"`
}

func (d jobDTO) toModel() model.Job {
	return model.Job{
		ID:                      d.ID,
		Name:                    d.Name,
		Status:                  model.JobStatus(strings.ToUpper(d.Status)),
		Backend:                 d.Backend,
		Shots:                   d.Shots,
		Qubits:                  d.Qubits,
		CreationDate:            d.CreatedAt,
		QueuePosition:           d.QueuePosition,
		EstimatedCompletionTime: d.EstimatedCompletionTime,
	}
}

type backendsResponse struct {
	Backends []backendDTO `json:"backends"`
}

type backendDTO struct {
	Name        string   `json:"name"`
	Operational bool     `json:"operational"`
	NumQubits   int      `json:"num_qubits"`
	Simulator   bool     `json:"simulator"`
	PendingJobs int      `json:"pending_jobs"`
	BasisGates  []string `json:"basis_gates"`
}

func (d backendDTO) toModel() model.Backend {
	return model.Backend{
		Name:        d.Name,
		Operational: d.Operational,
		QubitCount:  d.NumQubits,
		IsSimulator: d.Simulator,
		PendingJobs: d.PendingJobs,
		BasisGates:  d.BasisGates,
	}
}

type queueDTO struct {
	Length               int `json:"length"`
	EstimatedWaitSeconds int `json:"estimated_wait_seconds"`
}
