package drapto

import (
	"fmt"
	"strings"
	"time"

	draptolib "github.com/five82/drapto"
)

// reporter adapts Drapto's Reporter callbacks to a single ProgressUpdate sink.
type reporter struct {
	callback func(ProgressUpdate)
	now      func() time.Time
}

func newReporter(callback func(ProgressUpdate)) *reporter {
	return &reporter{callback: callback, now: time.Now}
}

func (r *reporter) emit(update ProgressUpdate) {
	update.Timestamp = r.now()
	r.callback(update)
}

func (r *reporter) Hardware(s draptolib.HardwareSummary) {
	r.emit(ProgressUpdate{Type: EventTypeInfo, Stage: "hardware", Message: fmt.Sprint(s.Hostname)})
}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.emit(ProgressUpdate{
		Type:    EventTypeInfo,
		Stage:   "initialization",
		Message: strings.TrimSpace(fmt.Sprintf("%v %v %v", s.Resolution, s.DynamicRange, s.Duration)),
	})
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	var eta time.Duration
	if s.ETA != nil {
		eta = *s.ETA
	}
	r.emit(ProgressUpdate{
		Type:    EventTypeStageProgress,
		Percent: float64(s.Percent),
		Stage:   s.Stage,
		Message: s.Message,
		ETA:     eta,
	})
}

func (r *reporter) CropResult(s draptolib.CropSummary) {
	r.emit(ProgressUpdate{Type: EventTypeInfo, Stage: "crop", Message: s.Message})
}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.emit(ProgressUpdate{Type: EventTypeInfo, Stage: "config", Message: fmt.Sprintf("%v preset %v quality %v", s.Encoder, s.Preset, s.Quality)})
}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.emit(ProgressUpdate{Type: EventTypeEncodingStarted, Stage: "encoding", TotalFrames: int64(totalFrames)})
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.emit(ProgressUpdate{
		Type:         EventTypeEncodingProgress,
		Percent:      float64(s.Percent),
		Stage:        "encoding",
		Speed:        float64(s.Speed),
		FPS:          float64(s.FPS),
		ETA:          s.ETA,
		Bitrate:      s.Bitrate,
		TotalFrames:  int64(s.TotalFrames),
		CurrentFrame: int64(s.CurrentFrame),
	})
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	failed := make([]string, 0)
	for _, step := range s.Steps {
		if !step.Passed {
			failed = append(failed, step.Name)
		}
	}
	r.emit(ProgressUpdate{Type: EventTypeValidation, Stage: "validation", Passed: s.Passed, Message: strings.Join(failed, ", ")})
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.emit(ProgressUpdate{Type: EventTypeEncodingComplete, Stage: "complete", Percent: 100, OutputPath: s.OutputPath, Speed: float64(s.AverageSpeed)})
}

func (r *reporter) Warning(message string) {
	r.emit(ProgressUpdate{Type: EventTypeWarning, Message: message})
}

func (r *reporter) Error(e draptolib.ReporterError) {
	message := e.Title
	if e.Message != "" {
		message = e.Title + ": " + e.Message
	}
	r.emit(ProgressUpdate{Type: EventTypeError, Message: message})
}

func (r *reporter) OperationComplete(message string) {
	r.emit(ProgressUpdate{Type: EventTypeInfo, Stage: "complete", Message: message})
}

func (r *reporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *reporter) FileProgress(draptolib.FileProgressContext) {}

func (r *reporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*reporter)(nil)

// discardReporter drops every callback.
type discardReporter struct{}

func (discardReporter) Hardware(draptolib.HardwareSummary)             {}
func (discardReporter) Initialization(draptolib.InitializationSummary) {}
func (discardReporter) StageProgress(draptolib.StageProgress)          {}
func (discardReporter) CropResult(draptolib.CropSummary)               {}
func (discardReporter) EncodingConfig(draptolib.EncodingConfigSummary) {}
func (discardReporter) EncodingStarted(uint64)                         {}
func (discardReporter) EncodingProgress(draptolib.ProgressSnapshot)    {}
func (discardReporter) ValidationComplete(draptolib.ValidationSummary) {}
func (discardReporter) EncodingComplete(draptolib.EncodingOutcome)     {}
func (discardReporter) Warning(string)                                 {}
func (discardReporter) Error(draptolib.ReporterError)                  {}
func (discardReporter) OperationComplete(string)                       {}
func (discardReporter) BatchStarted(draptolib.BatchStartInfo)          {}
func (discardReporter) FileProgress(draptolib.FileProgressContext)     {}
func (discardReporter) BatchComplete(draptolib.BatchSummary)           {}

var _ draptolib.Reporter = discardReporter{}
