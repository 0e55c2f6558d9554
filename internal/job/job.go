package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spool/internal/preset"
)

// ErrInvalidTransition is returned when a lifecycle change is not permitted
// from the job's current status.
var ErrInvalidTransition = errors.New("invalid job transition")

// Cancellation reasons recorded on cancelled jobs.
const (
	CancelReasonRequested = "cancelled by request"
	CancelReasonPoolStop  = "worker pool stopped"
)

// ID identifies a job for its whole lifetime.
type ID string

// NewID returns a fresh random job id.
func NewID() ID {
	return ID(uuid.NewString())
}

// ParseID validates a job id string.
func ParseID(value string) (ID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid job id %q: %w", value, err)
	}
	return ID(parsed.String()), nil
}

func (id ID) String() string { return string(id) }

// Short returns the first eight characters, used in log lines and tables.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Request is what a caller submits.
type Request struct {
	InputPath  string           `json:"input_path"`
	OutputPath string           `json:"output_path"`
	Encode     preset.Selection `json:"encode"`
	Priority   Priority         `json:"priority"`
}

// Progress is one parsed progress sample.
type Progress struct {
	Percent float64
	FPS     *float64
	ETA     *time.Duration
}

// Job is a single transcode task. Mutating methods are not synchronized;
// the owning scheduler serializes access.
type Job struct {
	ID                    ID             `json:"id"`
	InputPath             string         `json:"input_path"`
	OutputPath            string         `json:"output_path"`
	Preset                string         `json:"preset"`
	Encode                preset.Config  `json:"encode"`
	Priority              Priority       `json:"priority"`
	Status                Status         `json:"status"`
	Progress              float64        `json:"progress"`
	FPS                   *float64       `json:"fps,omitempty"`
	ETA                   *time.Duration `json:"eta,omitempty"`
	SourceDurationSeconds float64        `json:"source_duration_seconds,omitempty"`
	InputBytes            int64          `json:"input_bytes,omitempty"`
	OutputBytes           int64          `json:"output_bytes,omitempty"`
	Error                 string         `json:"error,omitempty"`
	FailureKind           string         `json:"failure_kind,omitempty"`
	CancelReason          string         `json:"cancel_reason,omitempty"`
	WorkerID              int            `json:"worker_id,omitempty"`
	CreatedAt             time.Time      `json:"created_at"`
	StartedAt             *time.Time     `json:"started_at,omitempty"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty"`
}

// New creates a pending job from a request and its resolved encode config.
func New(id ID, req Request, presetName string, encode preset.Config, now time.Time) *Job {
	return &Job{
		ID:         id,
		InputPath:  req.InputPath,
		OutputPath: req.OutputPath,
		Preset:     presetName,
		Encode:     encode,
		Priority:   req.Priority,
		Status:     StatusPending,
		CreatedAt:  now,
	}
}

// IsTerminal reports whether the job has finished.
func (j *Job) IsTerminal() bool { return j.Status.IsTerminal() }

// IsActive reports whether the job is pending or running.
func (j *Job) IsActive() bool { return !j.Status.IsTerminal() }

// Start moves a pending job to running on the given worker.
func (j *Job) Start(workerID int, now time.Time) error {
	if j.Status != StatusPending {
		return j.invalid(StatusRunning)
	}
	j.Status = StatusRunning
	j.WorkerID = workerID
	j.StartedAt = &now
	return nil
}

// UpdateProgress records a sample on a running job. Percent never decreases.
func (j *Job) UpdateProgress(p Progress) error {
	if j.Status != StatusRunning {
		return j.invalid(StatusRunning)
	}
	percent := clampPercent(p.Percent)
	if percent > j.Progress {
		j.Progress = percent
	}
	if p.FPS != nil {
		fps := *p.FPS
		j.FPS = &fps
	}
	if p.ETA != nil {
		eta := *p.ETA
		j.ETA = &eta
	}
	return nil
}

// Complete marks a running job as successfully finished.
func (j *Job) Complete(now time.Time) error {
	if j.Status != StatusRunning {
		return j.invalid(StatusCompleted)
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.ETA = nil
	j.CompletedAt = &now
	return nil
}

// Fail marks a running job as failed with a human-readable reason.
func (j *Job) Fail(reason, kind string, now time.Time) error {
	if j.Status != StatusRunning {
		return j.invalid(StatusFailed)
	}
	if reason == "" {
		reason = "transcode failed"
	}
	j.Status = StatusFailed
	j.Error = reason
	j.FailureKind = kind
	j.ETA = nil
	j.CompletedAt = &now
	return nil
}

// Cancel marks a pending or running job as cancelled. Cancelled jobs carry
// no error message; the reason is kept separately.
func (j *Job) Cancel(reason string, now time.Time) error {
	if j.Status.IsTerminal() {
		return j.invalid(StatusCancelled)
	}
	if reason == "" {
		reason = CancelReasonRequested
	}
	j.Status = StatusCancelled
	j.CancelReason = reason
	j.Error = ""
	j.ETA = nil
	j.CompletedAt = &now
	return nil
}

// Elapsed returns the running time so far, or the total once finished.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	if end.Before(*j.StartedAt) {
		return 0
	}
	return end.Sub(*j.StartedAt)
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() Job {
	out := *j
	if j.FPS != nil {
		fps := *j.FPS
		out.FPS = &fps
	}
	if j.ETA != nil {
		eta := *j.ETA
		out.ETA = &eta
	}
	if j.StartedAt != nil {
		started := *j.StartedAt
		out.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

func (j *Job) invalid(target Status) error {
	return fmt.Errorf("%w: job %s %s -> %s", ErrInvalidTransition, j.ID.Short(), j.Status, target)
}

func clampPercent(value float64) float64 {
	switch {
	case value != value, value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
