package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"spool/internal/encoding"
	"spool/internal/events"
	"spool/internal/job"
	"spool/internal/logging"
)

// CancelOutcome reports what a Cancel call did.
type CancelOutcome string

const (
	// CancelledPending means the job was removed from the queue before any
	// worker claimed it.
	CancelledPending CancelOutcome = "cancelled_pending"
	// CancelledRunning means the transcode process was stopped.
	CancelledRunning CancelOutcome = "cancelled_running"
	// AlreadyFinished means the job had reached a terminal state first.
	AlreadyFinished CancelOutcome = "already_finished"
)

// Cancel stops a job. Pending jobs are cancelled immediately. For a Running
// job, Cancel signals the process and waits for the worker to record the
// terminal state; if ctx ends first the cancellation still proceeds in the
// background and ctx.Err() is returned.
func (s *Scheduler) Cancel(ctx context.Context, id job.ID) (CancelOutcome, error) {
	s.mu.Lock()
	rec := s.jobs[id]
	if rec == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	switch rec.job.Status {
	case job.StatusPending:
		s.queue.Remove(id)
		rec.cancelRequested = true
		s.finishLocked(rec, encoding.Outcome{Kind: encoding.OutcomeCancelled}, job.CancelReasonRequested)
		return CancelledPending, nil
	case job.StatusRunning:
		rec.cancelRequested = true
		if rec.cancel != nil {
			rec.cancel()
		}
		done := rec.done
		s.mu.Unlock()
		logging.WithContext(ctx, s.logger).Info("cancelling running job", logging.String(logging.FieldJobID, string(id)))

		select {
		case <-done:
		case <-ctx.Done():
			return CancelledRunning, fmt.Errorf("waiting for job %s to stop: %w", id.Short(), ctx.Err())
		}
		s.mu.RLock()
		status := rec.job.Status
		s.mu.RUnlock()
		if status != job.StatusCancelled {
			return AlreadyFinished, nil
		}
		return CancelledRunning, nil
	default:
		s.mu.Unlock()
		return AlreadyFinished, nil
	}
}

// ClearCompleted removes every terminal job from the live set and returns how
// many were removed. Jobs finishing concurrently are either fully included or
// left for the next call. Removed jobs are then handed to the archiver, if
// any; an archive failure does not restore them.
func (s *Scheduler) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	removed := make([]job.Job, 0)
	order := make(map[job.ID]uint64)
	for id, rec := range s.jobs {
		if !rec.job.IsTerminal() {
			continue
		}
		removed = append(removed, rec.job.Clone())
		order[id] = rec.seq
		s.counts[rec.job.Status]--
		delete(s.jobs, id)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if len(removed) == 0 {
		return 0, nil
	}
	sort.Slice(removed, func(i, j int) bool { return order[removed[i].ID] < order[removed[j].ID] })
	s.events.Publish(events.Event{Type: events.TypeQueueSnapshot, Snapshot: &snapshot})
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("cleared finished jobs", logging.Int("count", len(removed)))

	if s.archive == nil {
		return len(removed), nil
	}
	archived, err := s.archive.Record(ctx, removed)
	if err != nil {
		logging.WarnWithContext(logger, "job history archive failed", "history_archive_failed",
			logging.Error(err),
			logging.Int("cleared", len(removed)),
			logging.Int("archived", archived),
			logging.String(logging.FieldImpact, "cleared jobs are missing from history"),
			logging.String(logging.FieldErrorHint, "check the history database path and permissions"),
		)
		return len(removed), fmt.Errorf("archive cleared jobs: %w", err)
	}
	return len(removed), nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses []job.Status
	Limit    int
}

// Stats summarizes the live set.
type Stats struct {
	Total          int       `json:"total"`
	Pending        int       `json:"pending"`
	Running        int       `json:"running"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	Cancelled      int       `json:"cancelled"`
	ActiveWorkers  int       `json:"active_workers"`
	WorkersRunning bool      `json:"workers_running"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// Get returns a copy of one job.
func (s *Scheduler) Get(id job.ID) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.jobs[id]
	if rec == nil {
		return job.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return rec.job.Clone(), nil
}

// List returns copies of live jobs in submission order.
func (s *Scheduler) List(filter Filter) []job.Job {
	wanted := make(map[job.Status]bool, len(filter.Statuses))
	for _, status := range filter.Statuses {
		wanted[status] = true
	}

	s.mu.RLock()
	recs := make([]*record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		if len(wanted) > 0 && !wanted[rec.job.Status] {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	if filter.Limit > 0 && len(recs) > filter.Limit {
		recs = recs[:filter.Limit]
	}
	out := make([]job.Job, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.job.Clone())
	}
	s.mu.RUnlock()
	return out
}

// QueuePosition returns the 1-based claim order of a pending job, or 0.
func (s *Scheduler) QueuePosition(id job.ID) int {
	return s.queue.Position(id)
}

// Stats reports counts by status in constant time.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	stats := Stats{
		Total:     len(s.jobs),
		Pending:   s.counts[job.StatusPending],
		Running:   s.counts[job.StatusRunning],
		Completed: s.counts[job.StatusCompleted],
		Failed:    s.counts[job.StatusFailed],
		Cancelled: s.counts[job.StatusCancelled],
	}
	s.mu.RUnlock()
	stats.ActiveWorkers = s.pool.ActiveCount()
	stats.WorkersRunning = s.pool.Running()
	stats.GeneratedAt = s.now()
	return stats
}
