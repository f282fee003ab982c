// Package job implements the async index-build lifecycle: a bounded
// worker pool draining a submitted-job queue, with progress checkpoints
// persisted through a Store, grounded on the teacher's bounded-dispatch
// idiom in internal/rag/retrieve/candidates.go generalized to a
// persistent pool.
package job

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job tracks one asynchronous index-build request.
type Job struct {
	ID        string
	Username  string
	Progress  int
	Status    Status
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists Jobs. UpdateProgress must reject a progress value lower
// than the job's current progress, enforcing monotonic progress.
type Store interface {
	Create(ctx context.Context, j Job) error
	Get(ctx context.Context, id string) (Job, bool, error)
	UpdateProgress(ctx context.Context, id string, progress int) error
	Finish(ctx context.Context, id string, status Status, errMsg string) error
}

// Checkpoints is the fixed progress sequence Manager reports through as
// its task function advances, matching the spec's 10/20/40/50/80/90/100
// checkpoint list.
var Checkpoints = []int{10, 20, 40, 50, 80, 90, 100}

// Task is the unit of work a Manager runs. report must be called with
// strictly increasing values from Checkpoints as the task progresses.
type Task func(ctx context.Context, report func(progress int)) error

// Manager is a bounded worker pool: a fixed number of goroutines drain a
// buffered queue of submitted jobs.
type Manager struct {
	store   Store
	queue   chan submission
	wg      sync.WaitGroup
	timeout time.Duration
}

type submission struct {
	jobID string
	task  Task
}

// NewManager starts workers goroutines draining a queue of depth
// queueDepth. Call Close to let in-flight jobs finish and stop accepting
// new ones.
func NewManager(store Store, workers, queueDepth int, timeout time.Duration) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = workers * 4
	}
	m := &Manager{store: store, queue: make(chan submission, queueDepth), timeout: timeout}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	return m
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for sub := range m.queue {
		m.run(sub)
	}
}

func (m *Manager) run(sub submission) {
	ctx := context.Background()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	_ = m.store.UpdateProgress(ctx, sub.jobID, 0)

	report := func(progress int) {
		_ = m.store.UpdateProgress(ctx, sub.jobID, progress)
	}

	err := sub.task(ctx, report)
	if ctx.Err() == context.DeadlineExceeded {
		_ = m.store.Finish(ctx, sub.jobID, StatusFailed, "job timed out")
		return
	}
	if err != nil {
		_ = m.store.Finish(ctx, sub.jobID, StatusFailed, err.Error())
		return
	}
	_ = m.store.Finish(ctx, sub.jobID, StatusSucceeded, "")
}

// Submit records a new queued Job and enqueues task for execution by the
// worker pool. It returns immediately; the caller polls Store for status.
func (m *Manager) Submit(ctx context.Context, jobID, username string, task Task) error {
	if err := m.store.Create(ctx, Job{ID: jobID, Username: username, Status: StatusQueued}); err != nil {
		return fmt.Errorf("job manager: create job %s: %w", jobID, err)
	}
	select {
	case m.queue <- submission{jobID: jobID, task: task}:
		return nil
	default:
		_ = m.store.Finish(ctx, jobID, StatusFailed, "job queue is full")
		return fmt.Errorf("job manager: queue full, rejected job %s", jobID)
	}
}

// Close stops accepting new submissions and waits for in-flight jobs.
func (m *Manager) Close() {
	close(m.queue)
	m.wg.Wait()
}
