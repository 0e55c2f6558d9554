package scheduler

import (
	"context"
	"time"

	"spool/internal/encoding"
	"spool/internal/events"
	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/services"
	"spool/internal/workers"
)

// Claim dequeues the highest priority pending job and marks it Running.
// Entries whose job was cancelled after enqueueing are skipped.
func (s *Scheduler) Claim(ctx context.Context, workerID int) (workers.Assignment, bool) {
	for {
		if ctx.Err() != nil {
			return workers.Assignment{}, false
		}
		entry, ok := s.queue.DequeueHighest()
		if !ok {
			return workers.Assignment{}, false
		}

		s.mu.Lock()
		rec := s.jobs[entry.ID]
		if rec == nil || rec.job.Status != job.StatusPending {
			s.mu.Unlock()
			continue
		}
		if err := s.transitionLocked(rec, func(now time.Time) error {
			return rec.job.Start(workerID, now)
		}); err != nil {
			s.mu.Unlock()
			continue
		}
		started := rec.job.Clone()
		snapshot := s.snapshotLocked()
		s.mu.Unlock()

		s.events.Publish(jobEvent(events.TypeJobStarted, started))
		s.events.Publish(events.Event{Type: events.TypeQueueSnapshot, Snapshot: &snapshot})
		return workers.Assignment{JobID: entry.ID, WorkerID: workerID}, true
	}
}

// Execute runs a claimed job to its terminal state. The outcome reported by
// the executor decides the status; a failure after a cancel request is
// recorded as a cancellation.
func (s *Scheduler) Execute(ctx context.Context, a workers.Assignment) {
	s.mu.Lock()
	rec := s.jobs[a.JobID]
	if rec == nil || rec.job.Status != job.StatusRunning {
		s.mu.Unlock()
		return
	}
	if rec.cancelRequested || ctx.Err() != nil {
		reason := job.CancelReasonPoolStop
		if rec.cancelRequested {
			reason = job.CancelReasonRequested
		}
		s.finishLocked(rec, encoding.Outcome{Kind: encoding.OutcomeCancelled}, reason)
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	rec.cancel = cancel
	task := encoding.Task{
		JobID:          rec.job.ID,
		InputPath:      rec.job.InputPath,
		OutputPath:     rec.job.OutputPath,
		Preset:         rec.job.Preset,
		Encode:         rec.job.Encode,
		SourceDuration: time.Duration(rec.job.SourceDurationSeconds * float64(time.Second)),
	}
	s.mu.Unlock()

	outcome := s.executor.Run(jobCtx, task, func(p job.Progress) {
		s.updateProgress(rec, p)
	})

	s.mu.Lock()
	rec.cancel = nil
	if rec.job.IsTerminal() {
		s.mu.Unlock()
		return
	}
	reason := job.CancelReasonPoolStop
	if rec.cancelRequested {
		reason = job.CancelReasonRequested
	} else if ctx.Err() == nil {
		reason = "transcode interrupted"
	}
	s.finishLocked(rec, outcome, reason)
}

// Abort fails a job whose execution panicked.
func (s *Scheduler) Abort(a workers.Assignment, reason string) {
	s.mu.Lock()
	rec := s.jobs[a.JobID]
	if rec == nil || rec.job.IsTerminal() {
		s.mu.Unlock()
		return
	}
	rec.cancel = nil
	s.finishLocked(rec, encoding.Outcome{
		Kind:        encoding.OutcomeFailure,
		Message:     reason,
		FailureKind: services.FailureInternal,
	}, job.CancelReasonRequested)
}

// finishLocked applies outcome to rec, releases mu and publishes the terminal
// event followed by a queue snapshot.
func (s *Scheduler) finishLocked(rec *record, outcome encoding.Outcome, cancelReason string) {
	if outcome.SourceDuration > 0 {
		rec.job.SourceDurationSeconds = outcome.SourceDuration.Seconds()
	}
	if outcome.InputBytes > 0 {
		rec.job.InputBytes = outcome.InputBytes
	}
	if outcome.OutputBytes > 0 {
		rec.job.OutputBytes = outcome.OutputBytes
	}
	err := s.transitionLocked(rec, func(now time.Time) error {
		switch {
		case outcome.Succeeded():
			return rec.job.Complete(now)
		case outcome.Kind == encoding.OutcomeCancelled,
			rec.cancelRequested && outcome.FailureKind != services.FailureInternal:
			return rec.job.Cancel(cancelReason, now)
		default:
			return rec.job.Fail(outcome.Message, outcome.FailureKind, now)
		}
	})
	finished := rec.job.Clone()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	logger := s.logger.With(
		logging.String(logging.FieldJobID, string(finished.ID)),
		logging.Int(logging.FieldWorkerID, finished.WorkerID),
	)
	if err != nil {
		logging.ErrorWithContext(logger, "job transition rejected", "job_transition_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job status left unchanged"),
			logging.String(logging.FieldErrorHint, "report this as a bug"),
		)
		return
	}

	switch finished.Status {
	case job.StatusCompleted:
		logger.Info("job completed", logging.Duration("elapsed", finished.Elapsed(s.now())))
	case job.StatusFailed:
		logging.WarnWithContext(logger, "job failed", "job_failed",
			logging.String("reason", finished.Error),
			logging.String("failure_kind", finished.FailureKind),
			logging.String(logging.FieldImpact, "output was not produced"),
			logging.String(logging.FieldErrorHint, "inspect the job error and resubmit"),
		)
	case job.StatusCancelled:
		logger.Info("job cancelled", logging.String("reason", finished.CancelReason))
	}
	s.events.Publish(jobEvent(terminalEventType(finished.Status), finished))
	s.events.Publish(events.Event{Type: events.TypeQueueSnapshot, Snapshot: &snapshot})
}

func (s *Scheduler) updateProgress(rec *record, p job.Progress) {
	s.mu.Lock()
	if err := rec.job.UpdateProgress(p); err != nil {
		s.mu.Unlock()
		return
	}
	current := rec.job.Clone()
	s.mu.Unlock()
	s.events.Publish(jobEvent(events.TypeJobProgress, current))
}
