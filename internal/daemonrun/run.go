package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"spool/internal/config"
	"spool/internal/daemon"
	"spool/internal/deps"
	"spool/internal/encoding"
	"spool/internal/ipc"
	"spool/internal/joblog"
	"spool/internal/logging"
	"spool/internal/scheduler"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Quiet keeps log output out of stdout and stderr.
	Quiet bool
}

// Run starts the spool daemon and blocks until ctx ends or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := LogPath(cfg)
	outputs := []string{logPath}
	errorOutputs := []string{logPath}
	if !opts.Quiet {
		outputs = append([]string{"stdout"}, outputs...)
		errorOutputs = append([]string{"stderr"}, errorOutputs...)
	}
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      outputs,
		ErrorOutputPaths: errorOutputs,
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)

	var history *joblog.Store
	var schedOpts []scheduler.Option
	if cfg.History.Enabled {
		history, err = joblog.Open(cfg)
		if err != nil {
			logger.Error("open job history", logging.Error(err))
			return err
		}
		schedOpts = append(schedOpts, scheduler.WithArchiver(history))
	}

	runner := encoding.NewRunner(cfg, logger)
	sched := scheduler.New(cfg, runner, logger, schedOpts...)
	d, err := daemon.New(cfg, sched, history, logger)
	if err != nil {
		_ = history.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// The lock must be held before the socket is replaced.
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("spool daemon ready",
		logging.String("socket", cfg.SocketPath()),
		logging.String("api", d.APIAddress()),
		logging.Int("workers", cfg.WorkerCount()),
	)

	<-signalCtx.Done()
	logger.Info("spool daemon shutting down")
	d.Stop()
	return nil
}

// LogPath returns the daemon log file location.
func LogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "spoold.log")
}

// PIDPath returns the daemon pid file location.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "spoold.pid")
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	statuses := deps.Check(ctx, cfg)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logging.WarnWithContext(logger, "required encoder tools are missing", "dependency_missing",
			logging.String("missing", strings.Join(missing, ", ")),
			logging.String(logging.FieldImpact, "jobs will fail to launch"),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set tools.ffmpeg in the config"),
		)
	}
}
