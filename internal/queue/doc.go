// Package queue orders pending transcode jobs.
//
// Entries are claimed highest priority first and, within a priority, in
// submission order. The queue holds only ids; job state lives with the
// scheduler. Queue has its own lock so workers can dequeue without holding
// the scheduler's registry lock.
package queue
