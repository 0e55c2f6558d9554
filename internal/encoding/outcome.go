package encoding

import "time"

// OutcomeKind classifies how a transcode ended.
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeFailure   OutcomeKind = "failure"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the authoritative result of one Run.
type Outcome struct {
	Kind           OutcomeKind
	Duration       time.Duration
	Message        string
	FailureKind    string
	InputBytes     int64
	OutputBytes    int64
	SourceDuration time.Duration
}

// Succeeded reports whether the transcode produced its output.
func (o Outcome) Succeeded() bool { return o.Kind == OutcomeSuccess }
