package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/services"
)

var (
	// ErrAlreadyRunning is returned by Start when the pool is already running.
	ErrAlreadyRunning = errors.New("worker pool already running")
	// ErrInvalidSize is returned by Start when no positive size can be resolved.
	ErrInvalidSize = errors.New("worker pool size must be positive")
	// ErrNotRunning is returned by Drain when there is nothing to drain.
	ErrNotRunning = errors.New("worker pool not running")
)

// Assignment is one claimed job handed to a worker.
type Assignment struct {
	JobID    job.ID
	WorkerID int
}

// claimRetryDelay paces a worker whose Claim panicked.
const claimRetryDelay = 100 * time.Millisecond

// Dispatcher supplies work to the pool. Claim must not block; it returns
// false when nothing is runnable. Execute runs the job to a terminal state
// and must honor ctx cancellation. Abort finalizes a claimed job whose
// execution panicked.
type Dispatcher interface {
	Claim(ctx context.Context, workerID int) (Assignment, bool)
	Execute(ctx context.Context, a Assignment)
	Abort(a Assignment, reason string)
}

// Status describes the pool for status queries.
type Status struct {
	Running   bool           `json:"running"`
	Draining  bool           `json:"draining"`
	Size      int            `json:"size"`
	Active    int            `json:"active"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Workers   []WorkerStatus `json:"workers,omitempty"`
}

// WorkerStatus reports what one worker is doing.
type WorkerStatus struct {
	ID    int    `json:"id"`
	JobID job.ID `json:"job_id,omitempty"`
}

// run holds the state of one Start..Stop cycle.
type run struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	quit      bool
	draining  bool
	size      int
	startedAt time.Time
	current   map[int]job.ID
}

// Pool runs a fixed number of workers that claim jobs from a Dispatcher.
type Pool struct {
	dispatcher  Dispatcher
	logger      *slog.Logger
	defaultSize int

	mu   sync.Mutex
	cond *sync.Cond
	gen  uint64
	cur  *run

	active atomic.Int64
}

// NewPool constructs an idle pool. defaultSize is used when Start is given n <= 0.
func NewPool(dispatcher Dispatcher, defaultSize int, logger *slog.Logger) *Pool {
	p := &Pool{
		dispatcher:  dispatcher,
		defaultSize: defaultSize,
		logger:      logging.NewComponentLogger(logger, "workers"),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches n workers. Cancelling ctx has the same effect as Stop.
func (p *Pool) Start(ctx context.Context, n int) error {
	p.mu.Lock()
	if p.cur != nil {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	if n <= 0 {
		n = p.defaultSize
	}
	if n <= 0 {
		p.mu.Unlock()
		return ErrInvalidSize
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		size:      n,
		startedAt: time.Now(),
		current:   make(map[int]job.ID, n),
	}
	p.cur = r
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(n)
	for id := 1; id <= n; id++ {
		go p.work(r, id, &wg)
	}

	go func() {
		<-runCtx.Done()
		p.mu.Lock()
		r.quit = true
		p.cond.Broadcast()
		p.mu.Unlock()
	}()

	go func() {
		wg.Wait()
		cancel()
		p.mu.Lock()
		if p.cur == r {
			p.cur = nil
		}
		p.mu.Unlock()
		close(r.done)
		p.logger.Info("worker pool stopped", logging.Int("workers", n))
	}()

	p.logger.Info("worker pool started", logging.Int("workers", n))
	return nil
}

// Stop cancels in-flight jobs and waits for every worker to exit. Pending
// jobs are left for the next Start. Stop on an idle pool is a no-op.
func (p *Pool) Stop() {
	p.mu.Lock()
	r := p.cur
	if r == nil {
		p.mu.Unlock()
		return
	}
	r.quit = true
	p.cond.Broadcast()
	p.mu.Unlock()

	r.cancel()
	<-r.done
}

// Drain stops claiming new jobs and waits for in-flight jobs to finish. When
// ctx ends first, the remaining jobs are cancelled as in Stop and ctx.Err()
// is returned.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	r := p.cur
	if r == nil {
		p.mu.Unlock()
		return ErrNotRunning
	}
	r.quit = true
	r.draining = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.logger.Info("draining worker pool", logging.Int64("active", p.active.Load()))
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.cancel()
		<-r.done
		return ctx.Err()
	}
}

// Resize changes the size used by the next Start given n <= 0. The size of a
// running pool cannot change.
func (p *Pool) Resize(n int) error {
	if n <= 0 {
		return ErrInvalidSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		return ErrAlreadyRunning
	}
	p.defaultSize = n
	return nil
}

// DefaultSize returns the size used when Start is given n <= 0.
func (p *Pool) DefaultSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultSize
}

// Notify wakes idle workers because new work may be claimable.
func (p *Pool) Notify() {
	p.mu.Lock()
	p.gen++
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Running reports whether workers are started.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur != nil
}

// ActiveCount returns the number of workers currently executing a job.
func (p *Pool) ActiveCount() int {
	return int(p.active.Load())
}

// Status snapshots the pool.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := Status{Active: int(p.active.Load())}
	r := p.cur
	if r == nil {
		return status
	}
	started := r.startedAt
	status.Running = true
	status.Draining = r.draining
	status.Size = r.size
	status.StartedAt = &started
	status.Workers = make([]WorkerStatus, 0, r.size)
	for id := 1; id <= r.size; id++ {
		status.Workers = append(status.Workers, WorkerStatus{ID: id, JobID: r.current[id]})
	}
	return status
}

func (p *Pool) work(r *run, id int, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := p.logger.With(logging.Int(logging.FieldWorkerID, id))
	for p.step(r, id, logger) {
	}
}

// step claims and runs one job. A panic anywhere in the iteration is
// recovered: a claimed job is aborted, and the worker keeps going either way.
func (p *Pool) step(r *run, id int, logger *slog.Logger) (more bool) {
	var (
		a       Assignment
		claimed bool
	)
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		more = true
		if !claimed {
			logging.ErrorWithContext(logger, "job claim panicked", "worker_panic",
				logging.String("panic", fmt.Sprint(rec)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldImpact, "worker retries the claim"),
				logging.String(logging.FieldErrorHint, "report the stack trace"),
			)
			select {
			case <-r.ctx.Done():
			case <-time.After(claimRetryDelay):
			}
			return
		}
		logging.ErrorWithContext(logger, "job execution panicked", "worker_panic",
			logging.String(logging.FieldJobID, string(a.JobID)),
			logging.String("panic", fmt.Sprint(rec)),
			logging.String("stack", string(debug.Stack())),
			logging.String("failure_kind", services.FailureInternal),
			logging.String(logging.FieldImpact, "job marked failed; worker continues"),
			logging.String(logging.FieldErrorHint, "report the stack trace"),
		)
		p.dispatcher.Abort(a, fmt.Sprintf("worker panic: %v", rec))
	}()

	a, claimed = p.next(r, id)
	if !claimed {
		return false
	}
	p.execute(r, a)
	return true
}

// next blocks until a job is claimed or the run is quitting.
func (p *Pool) next(r *run, id int) (Assignment, bool) {
	p.mu.Lock()
	for {
		if r.quit {
			p.mu.Unlock()
			return Assignment{}, false
		}
		gen := p.gen
		p.mu.Unlock()

		if a, ok := p.dispatcher.Claim(r.ctx, id); ok {
			a.WorkerID = id
			return a, true
		}

		p.mu.Lock()
		for p.gen == gen && !r.quit {
			p.cond.Wait()
		}
	}
}

func (p *Pool) execute(r *run, a Assignment) {
	p.active.Add(1)
	p.setCurrent(r, a.WorkerID, a.JobID)
	defer func() {
		p.setCurrent(r, a.WorkerID, "")
		p.active.Add(-1)
	}()
	ctx := services.WithWorkerID(services.WithJobID(r.ctx, string(a.JobID)), a.WorkerID)
	p.dispatcher.Execute(ctx, a)
}

func (p *Pool) setCurrent(r *run, workerID int, id job.ID) {
	p.mu.Lock()
	if id == "" {
		delete(r.current, workerID)
	} else {
		r.current[workerID] = id
	}
	p.mu.Unlock()
}
