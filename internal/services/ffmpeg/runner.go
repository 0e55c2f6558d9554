package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"spool/internal/logging"
	"spool/internal/services"
)

var commandContext = exec.CommandContext

const (
	defaultKillGrace = 10 * time.Second
	stderrTailLines  = 20
	maxStatsLine     = 1 << 20
)

// ExitError reports a non-zero ffmpeg exit with the tail of its stderr.
type ExitError struct {
	Code int
	Tail []string
}

func (e *ExitError) Error() string {
	summary := e.Summary()
	if summary == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, summary)
}

// Summary returns the last few non-empty stderr lines joined for display.
func (e *ExitError) Summary() string {
	const keep = 3
	lines := make([]string, 0, keep)
	for i := len(e.Tail) - 1; i >= 0 && len(lines) < keep; i-- {
		if line := strings.TrimSpace(e.Tail[i]); line != "" && !timePattern.MatchString(line) {
			lines = append([]string{line}, lines...)
		}
	}
	return strings.Join(lines, "; ")
}

// Request describes one ffmpeg invocation.
type Request struct {
	Args     []string
	Duration time.Duration
}

// Option configures the Runner.
type Option func(*Runner)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(r *Runner) {
		if binary = strings.TrimSpace(binary); binary != "" {
			r.binary = binary
		}
	}
}

// WithKillGrace sets how long a cancelled process may take to exit after
// SIGTERM before it is killed.
func WithKillGrace(grace time.Duration) Option {
	return func(r *Runner) {
		if grace > 0 {
			r.killGrace = grace
		}
	}
}

// WithLogger attaches a logger for stderr diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner launches ffmpeg and streams parsed progress.
type Runner struct {
	binary    string
	killGrace time.Duration
	logger    *slog.Logger
}

// NewRunner constructs a Runner using defaults.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{binary: "ffmpeg", killGrace: defaultKillGrace, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes ffmpeg and blocks until it exits. Cancelling ctx sends SIGTERM
// to the process group and escalates to SIGKILL after the kill grace. The
// returned error wraps ctx.Err() when the run was cancelled, services.ErrLaunch
// when the process never started, and *ExitError on a non-zero exit.
func (r *Runner) Run(ctx context.Context, req Request, onProgress func(Progress)) error {
	if len(req.Args) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "run", "no arguments", nil)
	}

	cmd := commandContext(ctx, r.binary, req.Args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			return cmd.Process.Signal(syscall.SIGTERM)
		}
		return nil
	}
	cmd.WaitDelay = r.killGrace

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(services.ErrLaunch, "ffmpeg", "stderr pipe", "", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrLaunch, "ffmpeg", "start", r.binary, err)
	}

	reaped := false
	defer func() {
		if reaped {
			return
		}
		// A panic in onProgress must not leave ffmpeg running.
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		_ = cmd.Wait()
	}()

	tail := newLineRing(stderrTailLines)
	readErr := r.consume(stderr, req.Duration, tail, onProgress)
	waitErr := cmd.Wait()
	reaped = true

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return services.Wrap(services.ErrExternalTool, "ffmpeg", "encode", "", &ExitError{Code: exitErr.ExitCode(), Tail: tail.Lines()})
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "wait", "", waitErr)
	}
	if readErr != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "read stderr", "", readErr)
	}
	return nil
}

func (r *Runner) consume(stderr io.Reader, total time.Duration, tail *lineRing, onProgress func(Progress)) error {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStatsLine)
	scanner.Split(ScanStatsLines)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		tail.Add(line)
		progress, ok := ParseLine(line, total)
		if !ok {
			r.logger.Debug("ffmpeg output", logging.String("line", line))
			continue
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}
	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		// Keep draining so ffmpeg never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, stderr)
	}
	return err
}

type lineRing struct {
	lines []string
	limit int
}

func newLineRing(limit int) *lineRing {
	return &lineRing{limit: limit}
}

func (r *lineRing) Add(line string) {
	if len(r.lines) == r.limit {
		copy(r.lines, r.lines[1:])
		r.lines = r.lines[:r.limit-1]
	}
	r.lines = append(r.lines, line)
}

func (r *lineRing) Lines() []string {
	return append([]string(nil), r.lines...)
}
