package recompute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"uph-engine/internal/service/uph"
	"uph-engine/internal/storage"
)

var (
	ErrRecomputeInProgress = errors.New("recompute already in progress")
	ErrJobNotFound         = errors.New("job not found")
	ErrInvalidWindow       = errors.New("unsupported window")
)

type Pipeline interface {
	Run(ctx context.Context, windows []int) (*storage.Snapshot, error)
	Now() time.Time
}

type Publisher interface {
	PublishSnapshot(ctx context.Context, snap *storage.Snapshot) error
	LoadLatestSnapshot(ctx context.Context) (*storage.Snapshot, error)
}

type JobHandle string

type JobStatus struct {
	ID          JobHandle  `json:"id"`
	IsRunning   bool       `json:"is_running"`
	Windows     []int      `json:"windows"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Fatal       bool       `json:"fatal"`
}

type job struct {
	status JobStatus
	cancel context.CancelFunc
}

type Options struct {
	Windows []int
	Timeout time.Duration
	History int
}

// Manager runs the UPH pipeline as a single-flight background job and
// publishes its results all-or-nothing.
type Manager struct {
	log       *slog.Logger
	pipeline  Pipeline
	publisher Publisher
	store     *SnapshotStore
	opts      Options

	mu      sync.Mutex
	running *job
	jobs    map[JobHandle]*job
	order   []JobHandle
	wg      sync.WaitGroup
}

func NewManager(log *slog.Logger, pipeline Pipeline, publisher Publisher, opts Options) *Manager {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.History <= 0 {
		opts.History = 20
	}

	windows := slices.Clone(opts.Windows)
	slices.Sort(windows)
	opts.Windows = slices.Compact(windows)

	return &Manager{
		log:       log,
		pipeline:  pipeline,
		publisher: publisher,
		store:     &SnapshotStore{},
		opts:      opts,
		jobs:      make(map[JobHandle]*job),
	}
}

func (m *Manager) Windows() []int {
	return slices.Clone(m.opts.Windows)
}

func (m *Manager) ValidWindow(days int) bool {
	return slices.Contains(m.opts.Windows, days)
}

// Warm loads the last persisted run so queries are served right after start.
func (m *Manager) Warm(ctx context.Context) error {
	const op = "service.recompute.Warm"

	snap, err := m.publisher.LoadLatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, w := range m.opts.Windows {
		snap.Statistics = append(snap.Statistics, uph.Summarize(snap.Aggregates, w, uph.Filter{}, snap.Run.ComputedAt)...)
	}
	snap.Windows = slices.Clone(m.opts.Windows)
	m.store.Swap(snap)

	m.log.Info("published results loaded", slog.String("op", op), slog.String("run_id", snap.Run.ID),
		slog.Time("computed_at", snap.Run.ComputedAt))

	return nil
}

// Recompute starts a full rebuild. windowDays narrows the materialized
// windows to one; nil materializes every configured window. While a run is
// in progress the running job's handle is returned with ErrRecomputeInProgress.
func (m *Manager) Recompute(windowDays *int) (JobHandle, error) {
	const op = "service.recompute.Recompute"

	windows := m.opts.Windows
	if windowDays != nil {
		if !m.ValidWindow(*windowDays) {
			return "", fmt.Errorf("%s: %w: %d", op, ErrInvalidWindow, *windowDays)
		}
		windows = []int{*windowDays}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running != nil {
		return m.running.status.ID, ErrRecomputeInProgress
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	j := &job{
		status: JobStatus{
			ID:        JobHandle(uuid.New().String()),
			IsRunning: true,
			Windows:   slices.Clone(windows),
			StartedAt: time.Now().UTC(),
		},
		cancel: cancel,
	}
	m.running = j
	m.remember(j)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(ctx, j)
	}()

	m.log.Info("recompute started", slog.String("op", op), slog.String("job_id", string(j.status.ID)), slog.Any("windows", windows))

	return j.status.ID, nil
}

func (m *Manager) execute(ctx context.Context, j *job) {
	const op = "service.recompute.execute"

	log := m.log.With(slog.String("op", op), slog.String("job_id", string(j.status.ID)))

	err := m.run(ctx, j)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	j.status.IsRunning = false
	j.status.CompletedAt = &now
	if err != nil {
		j.status.Error = err.Error()
		j.status.Fatal = true
		log.Error("recompute failed, previous results kept", slog.String("error", err.Error()))
	} else {
		log.Info("recompute published", slog.Duration("took", now.Sub(j.status.StartedAt)))
	}
	m.running = nil
}

func (m *Manager) run(ctx context.Context, j *job) error {
	snap, err := m.pipeline.Run(ctx, j.status.Windows)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	snap.Run.ID = string(j.status.ID)
	snap.Windows = slices.Clone(j.status.Windows)
	snap.Run.StartedAt = j.status.StartedAt.Truncate(time.Second)
	snap.Run.CompletedAt = time.Now().UTC().Truncate(time.Second)

	if err := m.publisher.PublishSnapshot(ctx, snap); err != nil {
		return err
	}

	m.store.Swap(snap)
	return nil
}

// remember keeps the job and drops the oldest finished ones beyond History.
// Callers hold m.mu.
func (m *Manager) remember(j *job) {
	m.jobs[j.status.ID] = j
	m.order = append(m.order, j.status.ID)

	for len(m.order) > m.opts.History {
		oldest := m.order[0]
		if old, ok := m.jobs[oldest]; ok && old.status.IsRunning {
			break
		}
		delete(m.jobs, oldest)
		m.order = m.order[1:]
	}
}

func (m *Manager) JobStatus(handle JobHandle) (JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[handle]
	if !ok {
		return JobStatus{}, ErrJobNotFound
	}

	status := j.status
	status.Windows = slices.Clone(j.status.Windows)
	return status, nil
}

// Cancel stops a running job. The single-flight slot frees up once the
// pipeline observes the cancellation.
func (m *Manager) Cancel(handle JobHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[handle]
	if !ok {
		return ErrJobNotFound
	}
	if j.status.IsRunning {
		j.cancel()
	}
	return nil
}

// Wait blocks until every started job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels the running job, if any, and waits for it.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.running != nil {
		m.running.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// LastRun describes the currently published snapshot, nil before the first
// successful run.
func (m *Manager) LastRun() (*storage.Run, storage.RejectionCounters) {
	snap := m.store.Load()
	if snap == nil {
		return nil, nil
	}
	run := snap.Run
	return &run, snap.Counters
}

// QueryUph serves statistics from the last published snapshot. Missing data
// is never an error; it yields DataAvailable=false with a reason.
func (m *Manager) QueryUph(f uph.Filter, windowDays int) ([]storage.UphStatistic, error) {
	if !m.ValidWindow(windowDays) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, windowDays)
	}

	snap := m.store.Load()
	if snap == nil {
		return uph.Query(nil, nil, f, windowDays, m.pipeline.Now()), nil
	}

	stats := snap.Statistics
	if !slices.Contains(snap.Windows, windowDays) {
		stats = uph.Summarize(snap.Aggregates, windowDays, uph.Filter{}, snap.Run.ComputedAt)
	}

	return uph.Query(stats, snap.Rejections, f, windowDays, snap.Run.ComputedAt), nil
}

// ListAnomalies returns the rejected aggregates of the last published
// snapshot; a nil window lists all of them.
func (m *Manager) ListAnomalies(windowDays *int) ([]storage.RejectedAggregate, error) {
	if windowDays != nil && *windowDays <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, *windowDays)
	}

	snap := m.store.Load()
	if snap == nil {
		return []storage.RejectedAggregate{}, nil
	}

	return uph.FilterRejections(snap.Rejections, windowDays, snap.Run.ComputedAt), nil
}
