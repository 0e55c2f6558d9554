package encoding_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"spool/internal/encoding"
	"spool/internal/job"
	"spool/internal/logging"
	"spool/internal/preset"
	"spool/internal/services"
	"spool/internal/services/ffmpeg"
	"spool/internal/testsupport"
)

type fakeProber struct {
	duration time.Duration
	err      error
	calls    int
}

func (p *fakeProber) Duration(context.Context, string) (time.Duration, error) {
	p.calls++
	return p.duration, p.err
}

type fakeEngine func(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error

func (f fakeEngine) Transcode(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error {
	return f(ctx, task, onProgress)
}

func newTask(t *testing.T) encoding.Task {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mov")
	testsupport.WriteFile(t, input, 128)
	p, _ := preset.Lookup(preset.DefaultPreset)
	return encoding.Task{
		JobID:      job.NewID(),
		InputPath:  input,
		OutputPath: filepath.Join(dir, "clip-out.mov"),
		Preset:     p.Name,
		Encode:     p.Config,
	}
}

func newRunner(t *testing.T, engine encoding.Engine, prober encoding.DurationProber, opts ...encoding.Option) *encoding.Runner {
	cfg := testsupport.NewConfig(t)
	opts = append([]encoding.Option{
		encoding.WithEngine(preset.EngineFFmpeg, engine),
		encoding.WithProber(prober),
	}, opts...)
	return encoding.NewRunner(cfg, logging.NewNop(), opts...)
}

func TestRunSuccess(t *testing.T) {
	task := newTask(t)
	prober := &fakeProber{duration: 2 * time.Minute}
	var sawDuration time.Duration
	engine := fakeEngine(func(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error {
		sawDuration = task.SourceDuration
		onProgress(job.Progress{Percent: 50})
		onProgress(job.Progress{Percent: 100})
		return os.WriteFile(task.OutputPath, []byte("prores"), 0o644)
	})

	var samples []job.Progress
	outcome := newRunner(t, engine, prober).Run(context.Background(), task, func(p job.Progress) {
		samples = append(samples, p)
	})
	if outcome.Kind != encoding.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.OutputBytes != 6 || outcome.SourceDuration != 2*time.Minute {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if sawDuration != 2*time.Minute || prober.calls != 1 {
		t.Fatalf("expected probed duration handed to engine, got %v (%d calls)", sawDuration, prober.calls)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
}

func TestRunThrottlesProgress(t *testing.T) {
	task := newTask(t)
	engine := fakeEngine(func(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error {
		for _, pct := range []float64{1, 2, 3, 4, 100} {
			onProgress(job.Progress{Percent: pct})
		}
		return os.WriteFile(task.OutputPath, []byte("x"), 0o644)
	})
	fixed := time.Unix(1000, 0)
	var samples []float64
	outcome := newRunner(t, engine, &fakeProber{duration: time.Minute},
		encoding.WithProgressInterval(time.Hour),
		encoding.WithClock(func() time.Time { return fixed }),
	).Run(context.Background(), task, func(p job.Progress) {
		samples = append(samples, p.Percent)
	})
	if !outcome.Succeeded() {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if len(samples) != 2 || samples[0] != 1 || samples[1] != 100 {
		t.Fatalf("expected first and final samples only, got %v", samples)
	}
}

func TestRunFailureRemovesPartialOutput(t *testing.T) {
	task := newTask(t)
	engine := fakeEngine(func(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error {
		_ = os.WriteFile(task.OutputPath, []byte("partial"), 0o644)
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "", &ffmpeg.ExitError{Code: 1, Tail: []string{"Invalid data found when processing input"}})
	})
	outcome := newRunner(t, engine, &fakeProber{duration: time.Minute}).Run(context.Background(), task, nil)
	if outcome.Kind != encoding.OutcomeFailure {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if outcome.Message != "exit status 1: Invalid data found when processing input" {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if outcome.FailureKind != services.FailureExecution {
		t.Fatalf("expected execution failure kind, got %q", outcome.FailureKind)
	}
	if _, err := os.Stat(task.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, got %v", err)
	}
}

func TestRunLaunchFailureKind(t *testing.T) {
	task := newTask(t)
	engine := fakeEngine(func(context.Context, encoding.Task, func(job.Progress)) error {
		return services.Wrap(services.ErrLaunch, "ffmpeg", "start", "ffmpeg", errors.New("executable file not found in $PATH"))
	})
	outcome := newRunner(t, engine, &fakeProber{duration: time.Minute}).Run(context.Background(), task, nil)
	if outcome.Kind != encoding.OutcomeFailure || outcome.FailureKind != services.FailureLaunch {
		t.Fatalf("expected launch failure, got %+v", outcome)
	}
}

func TestRunCancelled(t *testing.T) {
	task := newTask(t)
	ctx, cancel := context.WithCancel(context.Background())
	engine := fakeEngine(func(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error {
		_ = os.WriteFile(task.OutputPath, []byte("partial"), 0o644)
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	outcome := newRunner(t, engine, &fakeProber{duration: time.Minute}).Run(ctx, task, nil)
	if outcome.Kind != encoding.OutcomeCancelled {
		t.Fatalf("expected cancelled, got %+v", outcome)
	}
	if outcome.Message != "" {
		t.Fatalf("cancelled outcome should carry no message, got %q", outcome.Message)
	}
	if _, err := os.Stat(task.OutputPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial output removed, got %v", err)
	}
}

func TestRunEmptyOutputFails(t *testing.T) {
	task := newTask(t)
	engine := fakeEngine(func(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error {
		return os.WriteFile(task.OutputPath, nil, 0o644)
	})
	outcome := newRunner(t, engine, &fakeProber{duration: time.Minute}).Run(context.Background(), task, nil)
	if outcome.Kind != encoding.OutcomeFailure || !strings.Contains(outcome.Message, "output missing") {
		t.Fatalf("expected failure for empty output, got %+v", outcome)
	}
}

func TestRunContinuesWithoutDuration(t *testing.T) {
	task := newTask(t)
	var sawDuration time.Duration = -1
	engine := fakeEngine(func(ctx context.Context, task encoding.Task, onProgress func(job.Progress)) error {
		sawDuration = task.SourceDuration
		return os.WriteFile(task.OutputPath, []byte("x"), 0o644)
	})
	outcome := newRunner(t, engine, &fakeProber{err: errors.New("no duration")}).Run(context.Background(), task, nil)
	if !outcome.Succeeded() || sawDuration != 0 {
		t.Fatalf("expected success with unknown duration, got %+v (duration %v)", outcome, sawDuration)
	}
}

func TestRunUnknownEngine(t *testing.T) {
	task := newTask(t)
	task.Encode.Engine = "vapoursynth"
	outcome := newRunner(t, nil, &fakeProber{}).Run(context.Background(), task, nil)
	if outcome.Kind != encoding.OutcomeFailure || outcome.FailureKind != services.FailureLaunch {
		t.Fatalf("expected launch failure, got %+v", outcome)
	}
}
