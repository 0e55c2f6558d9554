// Package scheduler is the public surface of the transcode engine.
//
// A Scheduler owns the authoritative job records and composes the priority
// queue, the worker pool and the event broadcaster. Submissions are validated
// before queueing so a rejected request never appears in List. Workers claim
// the highest priority pending job, FIFO within a priority, through Claim.
//
// Cancel removes a pending job immediately. Cancelling a running job signals
// the transcode process and blocks until the worker has recorded the
// Cancelled state. StopWorkers cancels in-flight jobs and leaves pending jobs
// queued; Drain lets in-flight jobs finish first.
package scheduler
