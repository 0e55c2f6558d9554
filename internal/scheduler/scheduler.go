package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spool/internal/config"
	"spool/internal/encoding"
	"spool/internal/events"
	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/workers"
)

var (
	// ErrJobNotFound is returned when an id is not in the live set.
	ErrJobNotFound = fmt.Errorf("job not found: %w", services.ErrNotFound)
	// ErrInvalidRequest marks submissions rejected before queueing.
	ErrInvalidRequest = fmt.Errorf("invalid job request: %w", services.ErrValidation)
)

// Executor runs one transcode to a terminal outcome. *encoding.Runner
// satisfies it.
type Executor interface {
	Run(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) encoding.Outcome
}

// Archiver receives terminal jobs removed by ClearCompleted. *joblog.Store
// satisfies it.
type Archiver interface {
	Record(ctx context.Context, jobs []job.Job) (int, error)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithArchiver hands cleared jobs to archive.
func WithArchiver(archive Archiver) Option {
	return func(s *Scheduler) { s.archive = archive }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBroadcaster replaces the default event broadcaster.
func WithBroadcaster(b *events.Broadcaster) Option {
	return func(s *Scheduler) {
		if b != nil {
			s.events = b
		}
	}
}

type record struct {
	job             *job.Job
	seq             uint64
	cancel          context.CancelFunc
	cancelRequested bool
	done            chan struct{}
}

// Scheduler owns the live job set and composes the queue, worker pool and
// event broadcaster. Lock order is Scheduler.mu before the queue's lock; pool
// methods are never called while holding mu because the pool calls back
// into Claim.
type Scheduler struct {
	cfg      *config.Config
	logger   *slog.Logger
	executor Executor
	archive  Archiver
	events   *events.Broadcaster
	queue    *queue.Queue
	pool     *workers.Pool
	now      func() time.Time

	mu     sync.RWMutex
	jobs   map[job.ID]*record
	seq    uint64
	counts map[job.Status]int
}

// New constructs an idle scheduler. Workers are not started.
func New(cfg *config.Config, executor Executor, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		executor: executor,
		queue:    queue.New(),
		now:      time.Now,
		jobs:     make(map[job.ID]*record),
		counts:   make(map[job.Status]int, 5),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = events.NewBroadcaster(cfg.Events.SubscriberBuffer)
	}
	s.pool = workers.NewPool(s, cfg.WorkerCount(), logger)
	return s
}

// Subscribe returns a live event subscription. Callers must Close it.
func (s *Scheduler) Subscribe() *events.Subscription {
	return s.events.Subscribe()
}

// StartWorkers launches n workers, or the configured count when n <= 0.
// ctx bounds the lifetime of the pool, not just the call.
func (s *Scheduler) StartWorkers(ctx context.Context, n int) error {
	if err := s.pool.Start(ctx, n); err != nil {
		return err
	}
	s.publishSnapshot()
	return nil
}

// StopWorkers cancels running jobs and waits for every worker to exit.
// Cancelled jobs record job.CancelReasonPoolStop; pending jobs stay queued.
func (s *Scheduler) StopWorkers() {
	s.pool.Stop()
	s.publishSnapshot()
}

// Drain stops claiming and waits for running jobs to finish, cancelling them
// if ctx ends first.
func (s *Scheduler) Drain(ctx context.Context) error {
	err := s.pool.Drain(ctx)
	s.publishSnapshot()
	return err
}

// ResizeWorkers sets the pool size used by the next StartWorkers.
func (s *Scheduler) ResizeWorkers(n int) error {
	return s.pool.Resize(n)
}

// WorkerStatus snapshots the pool.
func (s *Scheduler) WorkerStatus() workers.Status {
	status := s.pool.Status()
	if !status.Running {
		status.Size = s.pool.DefaultSize()
	}
	return status
}

// Shutdown stops the pool according to the configured stop policy and ends
// every subscription.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	var err error
	if s.pool.Running() {
		if s.cfg.Workers.StopPolicy == config.StopPolicyDrain {
			drainCtx, cancel := context.WithTimeout(ctx, s.cfg.DrainTimeout())
			err = s.pool.Drain(drainCtx)
			cancel()
			if errors.Is(err, workers.ErrNotRunning) {
				err = nil
			}
		} else {
			s.pool.Stop()
		}
	}
	s.events.CloseAll()
	return err
}

func (s *Scheduler) snapshotLocked() events.QueueSnapshot {
	return events.QueueSnapshot{
		Pending:   s.counts[job.StatusPending],
		Running:   s.counts[job.StatusRunning],
		Completed: s.counts[job.StatusCompleted],
		Failed:    s.counts[job.StatusFailed],
		Cancelled: s.counts[job.StatusCancelled],
		Active:    s.pool.ActiveCount(),
	}
}

func (s *Scheduler) publishSnapshot() {
	s.mu.RLock()
	snapshot := s.snapshotLocked()
	s.mu.RUnlock()
	s.events.Publish(events.Event{Type: events.TypeQueueSnapshot, Snapshot: &snapshot})
}

// transitionLocked applies change to rec and keeps the status counters in
// step. The done channel closes on the first terminal transition.
func (s *Scheduler) transitionLocked(rec *record, change func(now time.Time) error) error {
	from := rec.job.Status
	if err := change(s.now()); err != nil {
		return err
	}
	s.counts[from]--
	s.counts[rec.job.Status]++
	if rec.job.IsTerminal() {
		close(rec.done)
	}
	return nil
}

func jobEvent(typ events.Type, j job.Job) events.Event {
	evt := events.Event{
		Type:       typ,
		JobID:      j.ID,
		InputPath:  j.InputPath,
		OutputPath: j.OutputPath,
		WorkerID:   j.WorkerID,
		Percent:    j.Progress,
		FPS:        j.FPS,
		ETA:        j.ETA,
	}
	switch typ {
	case events.TypeJobCompleted:
		if j.StartedAt != nil && j.CompletedAt != nil {
			evt.Duration = j.CompletedAt.Sub(*j.StartedAt)
		}
	case events.TypeJobFailed:
		evt.Reason = j.Error
	case events.TypeJobCancelled:
		evt.Reason = j.CancelReason
	}
	return evt
}

func terminalEventType(status job.Status) events.Type {
	switch status {
	case job.StatusCompleted:
		return events.TypeJobCompleted
	case job.StatusFailed:
		return events.TypeJobFailed
	default:
		return events.TypeJobCancelled
	}
}
