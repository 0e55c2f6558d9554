// Package workers runs a fixed-size pool of goroutines that claim jobs from
// a Dispatcher and execute them.
//
// Idle workers sleep on a condition variable and wake when Notify is called
// or the pool is stopped. Stop cancels in-flight jobs; Drain lets them
// finish. A panic while executing a job is recovered, reported to the
// Dispatcher through Abort, and the worker keeps running.
package workers
