package ipc

import (
	"spool/internal/api"
	"spool/internal/events"
	"spool/internal/preset"
)

// Job mirrors the HTTP API job DTO for IPC callers.
type Job = api.Job

// DaemonStatus mirrors the HTTP API status DTO.
type DaemonStatus = api.DaemonStatus

// Event is a scheduler event as delivered to subscribers.
type Event = events.Event

// JobRequest describes one job to submit. Priority accepts a level name or
// number; empty means normal.
type JobRequest struct {
	InputPath  string           `json:"input_path"`
	OutputPath string           `json:"output_path"`
	Preset     string           `json:"preset"`
	Priority   string           `json:"priority"`
	Overrides  preset.Overrides `json:"overrides"`
}

// SubmitRequest queues one or more jobs atomically.
type SubmitRequest struct {
	Requests []JobRequest `json:"requests"`
}

// SubmitResponse lists the queued jobs in request order.
type SubmitResponse struct {
	Jobs []Job `json:"jobs"`
}

// CancelRequest stops a job. ID may be a unique prefix. WaitSeconds bounds
// how long the call waits for a running job to stop; zero uses the default.
type CancelRequest struct {
	ID          string `json:"id"`
	WaitSeconds int    `json:"wait_seconds"`
}

// CancelResponse reports the cancel outcome and the job afterwards.
type CancelResponse struct {
	Outcome string `json:"outcome"`
	Job     Job    `json:"job"`
}

// GetRequest fetches one job by id or unique prefix.
type GetRequest struct {
	ID string `json:"id"`
}

// GetResponse wraps a single job.
type GetResponse struct {
	Job Job `json:"job"`
	// Archived is set when the job was found only in the history archive.
	Archived bool `json:"archived,omitempty"`
}

// ListRequest filters the live job set.
type ListRequest struct {
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit"`
}

// ListResponse contains live jobs in submission order.
type ListResponse struct {
	Jobs []Job `json:"jobs"`
}

// StatsRequest fetches counts by status.
type StatsRequest struct{}

// StatsResponse wraps scheduler counts.
type StatsResponse struct {
	Stats api.Stats `json:"stats"`
}

// ClearCompletedRequest removes terminal jobs from the live set.
type ClearCompletedRequest struct{}

// ClearCompletedResponse reports how many jobs were removed. ArchiveError is
// set when the jobs were removed but could not be written to history.
type ClearCompletedResponse struct {
	Removed      int    `json:"removed"`
	ArchiveError string `json:"archive_error,omitempty"`
}

// StartWorkersRequest starts the pool. Zero Count uses the configured size.
type StartWorkersRequest struct {
	Count int `json:"count"`
}

// StopWorkersRequest stops the pool. With Drain set, running jobs finish
// first, bounded by TimeoutSeconds (zero uses the configured drain timeout).
type StopWorkersRequest struct {
	Drain          bool `json:"drain"`
	TimeoutSeconds int  `json:"timeout_seconds"`
}

// WorkerStatusRequest fetches pool state.
type WorkerStatusRequest struct{}

// WorkerStatusResponse wraps pool state.
type WorkerStatusResponse struct {
	Workers api.WorkerStatus `json:"workers"`
}

// ResizeWorkersRequest changes the default pool size while stopped.
type ResizeWorkersRequest struct {
	Count int `json:"count"`
}

// PresetsRequest lists the preset catalog.
type PresetsRequest struct{}

// PresetsResponse contains catalog entries.
type PresetsResponse struct {
	Presets []api.Preset `json:"presets"`
}

// HistoryRequest queries archived jobs.
type HistoryRequest struct {
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit"`
}

// HistoryResponse contains archived jobs, newest first.
type HistoryResponse struct {
	Enabled bool               `json:"enabled"`
	Entries []api.HistoryEntry `json:"entries"`
}

// PruneHistoryRequest deletes archive entries recorded before a cutoff.
type PruneHistoryRequest struct {
	OlderThanSeconds int64 `json:"olderThanSeconds"`
}

// PruneHistoryResponse reports how many archive entries were deleted.
type PruneHistoryResponse struct {
	Enabled bool  `json:"enabled"`
	Removed int64 `json:"removed"`
}

// TestNotificationRequest asks the daemon to send a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether a test notification went out.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse wraps daemon status.
type StatusResponse struct {
	Status DaemonStatus `json:"status"`
}

// EventsRequest returns recent events with a sequence greater than After.
type EventsRequest struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}

// EventsResponse contains events in publish order.
type EventsResponse struct {
	Events []Event `json:"events"`
}
