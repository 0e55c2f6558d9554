package encoding

import (
	"context"
	"time"

	"spool/internal/job"
	"spool/internal/preset"
	"spool/internal/services/drapto"
	"spool/internal/services/ffmpeg"
)

// Task is one transcode handed to an Engine.
type Task struct {
	JobID          job.ID
	InputPath      string
	OutputPath     string
	Preset         string
	Encode         preset.Config
	SourceDuration time.Duration
}

// Engine executes a Task and reports progress samples. Implementations must
// return an error wrapping ctx.Err() when interrupted.
type Engine interface {
	Transcode(ctx context.Context, task Task, onProgress func(job.Progress)) error
}

// FFmpegEngine runs presets through the ffmpeg CLI.
type FFmpegEngine struct {
	Runner *ffmpeg.Runner
}

func (e FFmpegEngine) Transcode(ctx context.Context, task Task, onProgress func(job.Progress)) error {
	req := ffmpeg.Request{
		Args:     task.Encode.Args(task.InputPath, task.OutputPath),
		Duration: task.SourceDuration,
	}
	return e.Runner.Run(ctx, req, func(p ffmpeg.Progress) {
		onProgress(job.Progress{Percent: p.Percent, FPS: p.FPS, ETA: p.ETA})
	})
}

// DraptoEngine runs AV1 presets through the Drapto library.
type DraptoEngine struct {
	Engine *drapto.Engine
}

func (e DraptoEngine) Transcode(ctx context.Context, task Task, onProgress func(job.Progress)) error {
	return e.Engine.Encode(ctx, task.InputPath, task.OutputPath, func(u drapto.ProgressUpdate) {
		if !u.IsEncodingProgress() {
			return
		}
		sample := job.Progress{Percent: u.Percent}
		if u.FPS > 0 {
			fps := u.FPS
			sample.FPS = &fps
		}
		if u.ETA > 0 {
			eta := u.ETA
			sample.ETA = &eta
		}
		onProgress(sample)
	})
}

var (
	_ Engine = FFmpegEngine{}
	_ Engine = DraptoEngine{}
)
