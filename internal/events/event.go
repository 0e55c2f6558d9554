package events

import (
	"time"

	"spool/internal/job"
)

// Type names a scheduler event.
type Type string

const (
	TypeJobStarted    Type = "job_started"
	TypeJobProgress   Type = "job_progress"
	TypeJobCompleted  Type = "job_completed"
	TypeJobFailed     Type = "job_failed"
	TypeJobCancelled  Type = "job_cancelled"
	TypeQueueSnapshot Type = "queue_snapshot"
)

// IsTerminal reports whether the event ends a job.
func (t Type) IsTerminal() bool {
	return t == TypeJobCompleted || t == TypeJobFailed || t == TypeJobCancelled
}

// QueueSnapshot summarizes scheduler counts at a point in time.
type QueueSnapshot struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Active    int `json:"active_workers"`
}

// Event is one notification delivered to subscribers.
type Event struct {
	Sequence   uint64         `json:"seq"`
	Type       Type           `json:"type"`
	Timestamp  time.Time      `json:"ts"`
	JobID      job.ID         `json:"job_id,omitempty"`
	InputPath  string         `json:"input_path,omitempty"`
	OutputPath string         `json:"output_path,omitempty"`
	WorkerID   int            `json:"worker_id,omitempty"`
	Percent    float64        `json:"percent,omitempty"`
	FPS        *float64       `json:"fps,omitempty"`
	ETA        *time.Duration `json:"eta,omitempty"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Snapshot   *QueueSnapshot `json:"snapshot,omitempty"`
}
