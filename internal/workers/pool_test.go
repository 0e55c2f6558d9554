package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"spool/internal/job"
	"spool/internal/logging"
)

// fakeDispatcher hands out queued ids; each job blocks until released or cancelled.
type fakeDispatcher struct {
	mu        sync.Mutex
	queue     []job.ID
	release   map[job.ID]chan struct{}
	results   map[job.ID]string
	started   chan job.ID
	panicOn   job.ID
	abortedBy map[job.ID]string
	// claimPanics makes the next Claim calls panic.
	claimPanics int
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{
		release:   make(map[job.ID]chan struct{}),
		results:   make(map[job.ID]string),
		started:   make(chan job.ID, 64),
		abortedBy: make(map[job.ID]string),
	}
}

func (d *fakeDispatcher) add(id job.ID) {
	d.mu.Lock()
	d.queue = append(d.queue, id)
	d.release[id] = make(chan struct{})
	d.mu.Unlock()
}

func (d *fakeDispatcher) finish(id job.ID) {
	d.mu.Lock()
	ch := d.release[id]
	d.mu.Unlock()
	close(ch)
}

func (d *fakeDispatcher) result(id job.ID) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results[id]
}

func (d *fakeDispatcher) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *fakeDispatcher) Claim(ctx context.Context, workerID int) (Assignment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimPanics > 0 {
		d.claimPanics--
		panic("claim failed")
	}
	if len(d.queue) == 0 {
		return Assignment{}, false
	}
	id := d.queue[0]
	d.queue = d.queue[1:]
	return Assignment{JobID: id}, true
}

func (d *fakeDispatcher) Execute(ctx context.Context, a Assignment) {
	d.started <- a.JobID
	if a.JobID == d.panicOn {
		panic("boom")
	}
	d.mu.Lock()
	ch := d.release[a.JobID]
	d.mu.Unlock()
	outcome := "completed"
	select {
	case <-ch:
	case <-ctx.Done():
		outcome = "cancelled"
	}
	d.mu.Lock()
	d.results[a.JobID] = outcome
	d.mu.Unlock()
}

func (d *fakeDispatcher) Abort(a Assignment, reason string) {
	d.mu.Lock()
	d.abortedBy[a.JobID] = reason
	d.mu.Unlock()
}

func waitStarted(t *testing.T, d *fakeDispatcher, n int) []job.ID {
	t.Helper()
	var ids []job.ID
	for len(ids) < n {
		select {
		case id := <-d.started:
			ids = append(ids, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d jobs to start, got %d", n, len(ids))
		}
	}
	return ids
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoolRunsUpToSizeConcurrently(t *testing.T) {
	d := newFakeDispatcher()
	for _, id := range []job.ID{"a", "b", "c"} {
		d.add(id)
	}
	pool := NewPool(d, 2, logging.NewNop())
	if err := pool.Start(context.Background(), 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(pool.Stop)

	waitStarted(t, d, 2)
	eventually(t, func() bool { return pool.ActiveCount() == 2 })
	if d.pending() != 1 {
		t.Fatalf("expected one job still pending, got %d", d.pending())
	}
	status := pool.Status()
	if !status.Running || status.Size != 2 || len(status.Workers) != 2 {
		t.Fatalf("unexpected status %+v", status)
	}

	d.finish("a")
	d.finish("b")
	waitStarted(t, d, 1)
	d.finish("c")
	eventually(t, func() bool { return pool.ActiveCount() == 0 })
	for _, id := range []job.ID{"a", "b", "c"} {
		if d.result(id) != "completed" {
			t.Fatalf("job %s: expected completed, got %q", id, d.result(id))
		}
	}
}

func TestPoolStartTwice(t *testing.T) {
	pool := NewPool(newFakeDispatcher(), 1, logging.NewNop())
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()
	if err := pool.Start(context.Background(), 1); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestPoolInvalidSize(t *testing.T) {
	pool := NewPool(newFakeDispatcher(), 0, logging.NewNop())
	if err := pool.Start(context.Background(), 0); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
}

func TestNotifyWakesIdleWorkers(t *testing.T) {
	d := newFakeDispatcher()
	pool := NewPool(d, 1, logging.NewNop())
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	time.Sleep(20 * time.Millisecond)
	d.add("late")
	pool.Notify()
	waitStarted(t, d, 1)
	d.finish("late")
}

func TestStopCancelsInFlightAndKeepsPending(t *testing.T) {
	d := newFakeDispatcher()
	d.add("running")
	d.add("waiting")
	pool := NewPool(d, 1, logging.NewNop())
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, d, 1)

	pool.Stop()
	if pool.Running() {
		t.Fatal("expected pool stopped")
	}
	if d.result("running") != "cancelled" {
		t.Fatalf("expected in-flight job cancelled, got %q", d.result("running"))
	}
	if d.pending() != 1 {
		t.Fatalf("expected pending job untouched, got %d", d.pending())
	}
	pool.Stop()

	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer pool.Stop()
	waitStarted(t, d, 1)
	d.finish("waiting")
	eventually(t, func() bool { return d.result("waiting") == "completed" })
}

func TestDrainWaitsForInFlight(t *testing.T) {
	d := newFakeDispatcher()
	d.add("a")
	d.add("b")
	pool := NewPool(d, 1, logging.NewNop())
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, d, 1)

	drained := make(chan error, 1)
	go func() { drained <- pool.Drain(context.Background()) }()
	eventually(t, func() bool { return pool.Status().Draining })
	d.finish("a")
	if err := <-drained; err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if d.result("a") != "completed" {
		t.Fatalf("expected drained job completed, got %q", d.result("a"))
	}
	if d.pending() != 1 {
		t.Fatal("drain must not claim new jobs")
	}
}

func TestDrainTimeoutCancels(t *testing.T) {
	d := newFakeDispatcher()
	d.add("stuck")
	pool := NewPool(d, 1, logging.NewNop())
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitStarted(t, d, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if d.result("stuck") != "cancelled" {
		t.Fatalf("expected job cancelled after drain timeout, got %q", d.result("stuck"))
	}
}

func TestPanicIsRecoveredAndAborted(t *testing.T) {
	d := newFakeDispatcher()
	d.panicOn = "bad"
	d.add("bad")
	d.add("good")
	pool := NewPool(d, 1, logging.NewNop())
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	waitStarted(t, d, 2)
	d.finish("good")
	eventually(t, func() bool { return d.result("good") == "completed" })
	d.mu.Lock()
	reason := d.abortedBy["bad"]
	d.mu.Unlock()
	if reason != "worker panic: boom" {
		t.Fatalf("unexpected abort reason %q", reason)
	}
}

func TestClaimPanicDoesNotKillWorker(t *testing.T) {
	d := newFakeDispatcher()
	d.claimPanics = 2
	d.add("only")
	pool := NewPool(d, 1, logging.NewNop())
	if err := pool.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop()

	waitStarted(t, d, 1)
	d.finish("only")
	eventually(t, func() bool { return d.result("only") == "completed" })
	if !pool.Running() || pool.Status().Size != 1 {
		t.Fatalf("expected pool to keep its worker, got %+v", pool.Status())
	}
	d.mu.Lock()
	aborted := len(d.abortedBy)
	d.mu.Unlock()
	if aborted != 0 {
		t.Fatalf("expected no aborts for claim panics, got %d", aborted)
	}
}

func TestParentContextCancelStopsPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(newFakeDispatcher(), 2, logging.NewNop())
	if err := pool.Start(ctx, 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	eventually(t, func() bool { return !pool.Running() })
}

func TestResizeOnlyWhileStopped(t *testing.T) {
	d := newFakeDispatcher()
	pool := NewPool(d, 1, logging.NewNop())
	if err := pool.Resize(3); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := pool.Start(context.Background(), 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := pool.Status().Size; got != 3 {
		t.Fatalf("expected 3 workers, got %d", got)
	}
	if err := pool.Resize(2); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	pool.Stop()
	if err := pool.Resize(0); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
	if err := pool.Drain(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}
