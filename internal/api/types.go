package api

import "time"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a transcode job in a transport-friendly format.
type Job struct {
	ID             string   `json:"id"`
	InputPath      string   `json:"inputPath"`
	OutputPath     string   `json:"outputPath"`
	Preset         string   `json:"preset"`
	Engine         string   `json:"engine"`
	Priority       string   `json:"priority"`
	Status         string   `json:"status"`
	Progress       float64  `json:"progress"`
	FPS            *float64 `json:"fps,omitempty"`
	ETASeconds     *float64 `json:"etaSeconds,omitempty"`
	SourceDuration float64  `json:"sourceDurationSeconds,omitempty"`
	InputBytes     int64    `json:"inputBytes,omitempty"`
	OutputBytes    int64    `json:"outputBytes,omitempty"`
	ElapsedSeconds float64  `json:"elapsedSeconds"`
	QueuePosition  int      `json:"queuePosition,omitempty"`
	WorkerID       int      `json:"workerId,omitempty"`
	Error          string   `json:"error,omitempty"`
	FailureKind    string   `json:"failureKind,omitempty"`
	CancelReason   string   `json:"cancelReason,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	StartedAt      string   `json:"startedAt,omitempty"`
	CompletedAt    string   `json:"completedAt,omitempty"`
}

// Stats mirrors the scheduler's counts by status.
type Stats struct {
	Total          int  `json:"total"`
	Pending        int  `json:"pending"`
	Running        int  `json:"running"`
	Completed      int  `json:"completed"`
	Failed         int  `json:"failed"`
	Cancelled      int  `json:"cancelled"`
	ActiveWorkers  int  `json:"activeWorkers"`
	WorkersRunning bool `json:"workersRunning"`
}

// WorkerSlot reports one worker and the job it holds, if any.
type WorkerSlot struct {
	ID    int    `json:"id"`
	JobID string `json:"jobId,omitempty"`
}

// WorkerStatus summarizes the worker pool.
type WorkerStatus struct {
	Running   bool         `json:"running"`
	Draining  bool         `json:"draining"`
	Size      int          `json:"size"`
	Active    int          `json:"active"`
	StartedAt string       `json:"startedAt,omitempty"`
	Workers   []WorkerSlot `json:"workers,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"startedAt,omitempty"`
	LockFilePath string             `json:"lockFilePath"`
	SocketPath   string             `json:"socketPath"`
	HistoryPath  string             `json:"historyPath,omitempty"`
	APIAddress   string             `json:"apiAddress,omitempty"`
	Stats        Stats              `json:"stats"`
	Workers      WorkerStatus       `json:"workers"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// HistoryEntry is an archived job with derived throughput figures.
type HistoryEntry struct {
	Job           Job      `json:"job"`
	RecordedAt    string   `json:"recordedAt"`
	RealtimeRatio *float64 `json:"realtimeRatio,omitempty"`
	ReadMBps      *float64 `json:"readMBps,omitempty"`
	WriteMBps     *float64 `json:"writeMBps,omitempty"`
}

// Preset describes one catalog entry.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Engine      string `json:"engine"`
	VideoCodec  string `json:"videoCodec"`
	AudioCodec  string `json:"audioCodec"`
	Container   string `json:"container"`
	Extensions  string `json:"extensions"`
}

// ErrorResponse is the body of every non-2xx HTTP reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
