package scheduler_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"spool/internal/encoding"
	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/scheduler"
	"spool/internal/testsupport"
)

// quickExecutor succeeds after a short pause so jobs finish while
// ClearCompleted runs.
type quickExecutor struct{}

func (quickExecutor) Run(ctx context.Context, _ encoding.Task, _ func(job.Progress)) encoding.Outcome {
	select {
	case <-time.After(200 * time.Microsecond):
		return encoding.Outcome{Kind: encoding.OutcomeSuccess}
	case <-ctx.Done():
		return encoding.Outcome{Kind: encoding.OutcomeCancelled}
	}
}

// countingArchiver records how often each job was archived.
type countingArchiver struct {
	mu   sync.Mutex
	seen map[job.ID]int
}

func (a *countingArchiver) Record(_ context.Context, jobs []job.Job) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, j := range jobs {
		if !j.Status.IsTerminal() {
			return 0, fmt.Errorf("job %s archived while %s", j.ID, j.Status)
		}
		a.seen[j.ID]++
	}
	return len(jobs), nil
}

func (a *countingArchiver) snapshot() map[job.ID]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[job.ID]int, len(a.seen))
	for id, n := range a.seen {
		out[id] = n
	}
	return out
}

func TestClearCompletedWhileJobsFinish(t *testing.T) {
	const total = 120
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(4))
	archive := &countingArchiver{seen: make(map[job.ID]int)}
	s := scheduler.New(cfg, quickExecutor{}, logging.NewNop(), scheduler.WithArchiver(archive))
	t.Cleanup(s.StopWorkers)
	dir := testsupport.MediaDir(t, cfg)

	submitted := make(map[job.ID]bool, total)
	for i := 0; i < total; i++ {
		j := mustSubmit(t, s, request(t, dir, fmt.Sprintf("clip-%03d", i), job.PriorityNormal))
		submitted[j.ID] = true
	}
	ctx := context.Background()
	if err := s.StartWorkers(ctx, 4); err != nil {
		t.Fatalf("StartWorkers: %v", err)
	}

	cleared := 0
	deadline := time.Now().Add(10 * time.Second)
	for cleared < total {
		if time.Now().After(deadline) {
			t.Fatalf("cleared %d of %d jobs before deadline", cleared, total)
		}
		n, err := s.ClearCompleted(ctx)
		if err != nil {
			t.Fatalf("ClearCompleted: %v", err)
		}
		cleared += n

		stats := s.Stats()
		if sum := stats.Pending + stats.Running + stats.Completed + stats.Failed + stats.Cancelled; sum != stats.Total {
			t.Fatalf("status counts %d disagree with total %d: %+v", sum, stats.Total, stats)
		}
		archived := archive.snapshot()
		if len(archived) != cleared {
			t.Fatalf("archived %d distinct jobs, cleared %d", len(archived), cleared)
		}
		for _, j := range s.List(scheduler.Filter{}) {
			if archived[j.ID] > 0 {
				t.Fatalf("job %s is both live and archived", j.ID.Short())
			}
		}
	}

	archived := archive.snapshot()
	if len(archived) != total {
		t.Fatalf("expected %d archived jobs, got %d", total, len(archived))
	}
	for id, n := range archived {
		if n != 1 {
			t.Fatalf("job %s archived %d times", id.Short(), n)
		}
		if !submitted[id] {
			t.Fatalf("unknown job %s archived", id.Short())
		}
	}
	if stats := s.Stats(); stats.Total != 0 {
		t.Fatalf("expected empty live set, got %+v", stats)
	}
	if jobs := s.List(scheduler.Filter{}); len(jobs) != 0 {
		t.Fatalf("expected no live jobs, got %d", len(jobs))
	}
}
