package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"spool/internal/config"
	"spool/internal/fileutil"
	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/media/ffprobe"
	"spool/internal/preset"
	"spool/internal/services"
	"spool/internal/services/drapto"
	"spool/internal/services/ffmpeg"
)

const (
	lowDiskWarningBytes = 2 << 30
	// progressHeartbeat forces a progress log line on long, slow encodes.
	progressHeartbeat = 2 * time.Minute
)

// DurationProber reports the playable length of a media file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithEngine registers or replaces the implementation for an engine name.
func WithEngine(name preset.Engine, engine Engine) Option {
	return func(r *Runner) { r.engines[name] = engine }
}

// WithProber replaces the duration prober.
func WithProber(prober DurationProber) Option {
	return func(r *Runner) { r.prober = prober }
}

// WithProgressInterval overrides the minimum spacing of progress callbacks.
func WithProgressInterval(interval time.Duration) Option {
	return func(r *Runner) { r.interval = interval }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes one job's transcode and classifies the result.
type Runner struct {
	engines  map[preset.Engine]Engine
	prober   DurationProber
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner wires the ffmpeg and drapto engines from cfg.
func NewRunner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	logger = logging.NewComponentLogger(logger, "encoding")
	r := &Runner{
		engines:  make(map[preset.Engine]Engine),
		prober:   ffprobe.NewProber(cfg.Tools.FFprobe, cfg.ProbeTimeout()),
		interval: cfg.ProgressInterval(),
		logger:   logger,
		now:      time.Now,
	}
	r.engines[preset.EngineFFmpeg] = FFmpegEngine{Runner: ffmpeg.NewRunner(
		ffmpeg.WithBinary(cfg.Tools.FFmpeg),
		ffmpeg.WithKillGrace(cfg.KillGrace()),
		ffmpeg.WithLogger(logger),
	)}
	r.engines[preset.EngineDrapto] = DraptoEngine{Engine: drapto.NewEngine()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run transcodes task and blocks until the engine exits. onProgress receives
// throttled samples; the first sample and any sample at 100% always pass.
// Failed or cancelled runs leave no output file behind.
func (r *Runner) Run(ctx context.Context, task Task, onProgress func(job.Progress)) Outcome {
	start := r.now()
	logger := r.logger.With(
		logging.String(logging.FieldJobID, string(task.JobID)),
		logging.String(logging.FieldPreset, task.Preset),
	)
	var inputBytes int64
	if info, err := os.Stat(task.InputPath); err == nil {
		inputBytes = info.Size()
	}
	outcome := func(kind OutcomeKind, message, failureKind string) Outcome {
		return Outcome{
			Kind:           kind,
			Duration:       r.now().Sub(start),
			Message:        message,
			FailureKind:    failureKind,
			InputBytes:     inputBytes,
			SourceDuration: task.SourceDuration,
		}
	}

	engine, ok := r.engines[task.Encode.Engine]
	if !ok || engine == nil {
		return outcome(OutcomeFailure, fmt.Sprintf("no engine registered for %q", task.Encode.Engine), services.FailureLaunch)
	}

	if task.SourceDuration <= 0 && r.prober != nil {
		duration, err := r.prober.Duration(ctx, task.InputPath)
		switch {
		case ctx.Err() != nil:
			return outcome(OutcomeCancelled, "", "")
		case err != nil:
			logging.WarnWithContext(logger, "source duration unavailable", "probe_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "progress percent stays at 0 until the encode finishes"),
				logging.String(logging.FieldErrorHint, "verify ffprobe can read the input"),
			)
		default:
			task.SourceDuration = duration
		}
	}
	r.warnLowDisk(logger, task.OutputPath)

	logger.Info("transcode started",
		logging.String("input", task.InputPath),
		logging.String("output", task.OutputPath),
		logging.Duration("source_duration", task.SourceDuration),
	)

	err := engine.Transcode(ctx, task, r.throttle(logger, onProgress))
	elapsed := r.now().Sub(start)

	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
		r.removePartial(logger, task.OutputPath)
		logger.Info("transcode cancelled", logging.Duration("elapsed", elapsed))
		return outcome(OutcomeCancelled, "", "")
	}
	if err != nil {
		r.removePartial(logger, task.OutputPath)
		message := failureMessage(err)
		logging.ErrorWithContext(logger, "transcode failed", "transcode_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job marked failed"),
			logging.String(logging.FieldErrorHint, "inspect the stderr tail in the job error"),
		)
		return outcome(OutcomeFailure, message, services.FailureKind(err))
	}

	size, err := fileutil.RequireNonEmpty(task.OutputPath)
	if err != nil {
		r.removePartial(logger, task.OutputPath)
		return outcome(OutcomeFailure, fmt.Sprintf("output missing after successful exit: %v", err), services.FailureExecution)
	}
	logger.Info("transcode completed", logging.Duration("elapsed", elapsed), logging.Int64("output_bytes", size))
	result := outcome(OutcomeSuccess, "", "")
	result.OutputBytes = size
	return result
}

func (r *Runner) throttle(logger *slog.Logger, onProgress func(job.Progress)) func(job.Progress) {
	sampler := logging.NewProgressSampler(10, progressHeartbeat)
	var last time.Time
	return func(p job.Progress) {
		if sampler.ShouldLog(p.Percent, r.now()) {
			attrs := []logging.Attr{logging.Float64("progress_percent", p.Percent)}
			if p.FPS != nil {
				attrs = append(attrs, logging.Float64("fps", *p.FPS))
			}
			if p.ETA != nil {
				attrs = append(attrs, logging.Duration("eta", *p.ETA))
			}
			logger.Info("transcode progress", logging.Args(attrs...)...)
		}
		if onProgress == nil {
			return
		}
		now := r.now()
		if !last.IsZero() && p.Percent < 100 && now.Sub(last) < r.interval {
			return
		}
		last = now
		onProgress(p)
	}
}

func (r *Runner) removePartial(logger *slog.Logger, path string) {
	if err := fileutil.RemoveIfExists(path); err != nil {
		logging.WarnWithContext(logger, "failed to remove partial output", "cleanup_failed",
			logging.Error(err),
			logging.String("output", path),
			logging.String(logging.FieldImpact, "a truncated file remains at the output path"),
			logging.String(logging.FieldErrorHint, "delete the file manually"),
		)
	}
}

func (r *Runner) warnLowDisk(logger *slog.Logger, output string) {
	free, err := fileutil.FreeBytes(filepath.Dir(output))
	if err != nil || free >= lowDiskWarningBytes {
		return
	}
	logging.WarnWithContext(logger, "low free space at output location", "low_disk",
		logging.Int64("free_bytes", int64(free)),
		logging.String(logging.FieldImpact, "the encode may fail when the disk fills"),
		logging.String(logging.FieldErrorHint, "free space on the output volume"),
	)
}

// failureMessage prefers the tool's own exit summary over the wrapped chain.
func failureMessage(err error) string {
	var exitErr *ffmpeg.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Error()
	}
	return err.Error()
}
