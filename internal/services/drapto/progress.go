package drapto

import "time"

// EventType identifies which Drapto callback produced an update.
type EventType string

const (
	EventTypeStageProgress    EventType = "stage_progress"
	EventTypeEncodingStarted  EventType = "encoding_started"
	EventTypeEncodingProgress EventType = "encoding_progress"
	EventTypeEncodingComplete EventType = "encoding_complete"
	EventTypeValidation       EventType = "validation"
	EventTypeWarning          EventType = "warning"
	EventTypeError            EventType = "error"
	EventTypeInfo             EventType = "info"
)

// ProgressUpdate is the flattened view of a Drapto reporter callback.
type ProgressUpdate struct {
	Type         EventType
	Timestamp    time.Time
	Percent      float64
	Stage        string
	Message      string
	Speed        float64
	FPS          float64
	ETA          time.Duration
	Bitrate      string
	TotalFrames  int64
	CurrentFrame int64
	OutputPath   string
	Passed       bool
}

// IsEncodingProgress reports whether the update carries encode percent/fps.
func (u ProgressUpdate) IsEncodingProgress() bool {
	return u.Type == EventTypeEncodingProgress
}
