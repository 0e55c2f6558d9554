package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"spool/internal/api"
	"spool/internal/config"
	"spool/internal/deps"
	"spool/internal/joblog"
	"spool/internal/logging"
	"spool/internal/notifications"
	"spool/internal/scheduler"
	"spool/internal/workers"
)

// ErrNotRunning is returned by operations that need a started daemon.
var ErrNotRunning = errors.New("daemon not running")

// Daemon owns the scheduler for the lifetime of the process and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	scheduler *scheduler.Scheduler
	history   *joblog.Store

	lockPath string
	lock     *flock.Flock
	api      *apiServer
	notifier notifications.Notifier
	watcher  *notifications.Watcher

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	LockFilePath string
	SocketPath   string
	HistoryPath  string
	APIAddress   string
	Stats        scheduler.Stats
	Workers      workers.Status
	Dependencies []deps.Status
}

// New constructs a daemon. history may be nil when the archive is disabled.
func New(cfg *config.Config, sched *scheduler.Scheduler, history *joblog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || sched == nil {
		return nil, errors.New("daemon requires config and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		scheduler: sched,
		history:   history,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	d.notifier = notifications.New(cfg)
	d.watcher = notifications.NewWatcher(cfg, d.notifier, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the HTTP API and, when configured,
// the worker pool. Cancelling ctx does not stop the daemon; call Stop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another spool daemon instance is already running")
	}

	// Workers outlive ctx: a signal must not cancel running jobs before Stop
	// has applied the stop policy.
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if err := d.api.start(d.ctx); err != nil {
		d.cancel()
		_ = d.lock.Unlock()
		return err
	}
	if d.cfg.Workers.Autostart {
		if err := d.scheduler.StartWorkers(d.ctx, 0); err != nil {
			d.api.stop()
			d.cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start workers: %w", err)
		}
	}

	if d.notifier.Enabled() {
		go d.watcher.Run(d.ctx, d.scheduler.Subscribe())
	}

	d.running = true
	d.startedAt = time.Now()
	d.logger.Info("spool daemon started",
		logging.String("lock", d.lockPath),
		logging.Bool("workers_autostart", d.cfg.Workers.Autostart),
		logging.String("stop_policy", d.cfg.Workers.StopPolicy),
		logging.Bool("notifications", d.notifier.Enabled()),
	)
	return nil
}

// TestNotification sends a test message. It reports false without error
// when notifications are not configured.
func (d *Daemon) TestNotification(ctx context.Context) (bool, error) {
	if !d.notifier.Enabled() {
		return false, nil
	}
	if err := d.notifier.Send(ctx, notifications.TestMessage()); err != nil {
		return false, err
	}
	return true, nil
}

// Stop applies the stop policy to running jobs, stops the API and releases
// the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	if err := d.scheduler.Shutdown(context.Background()); err != nil {
		logging.WarnWithContext(d.logger, "worker drain timed out", "drain_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "remaining jobs were cancelled"),
			logging.String(logging.FieldErrorHint, "raise workers.drain_timeout_seconds to let long encodes finish"),
		)
	}
	d.api.stop()
	cancel()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("spool daemon stopped")
}

// Close stops the daemon and releases the history archive.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Config returns the daemon configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}

// Scheduler returns the scheduler owned by the daemon.
func (d *Daemon) Scheduler() *scheduler.Scheduler {
	return d.scheduler
}

// History returns the job archive, or nil when disabled.
func (d *Daemon) History() *joblog.Store {
	return d.history
}

// StartWorkers starts the pool bound to the daemon lifetime.
func (d *Daemon) StartWorkers(n int) error {
	d.mu.Lock()
	ctx := d.ctx
	running := d.running
	d.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	return d.scheduler.StartWorkers(ctx, n)
}

// APIAddress returns the bound HTTP address, or "" when the API is disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	running := d.running
	startedAt := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:      running,
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		APIAddress:   d.api.address(),
		Stats:        d.scheduler.Stats(),
		Workers:      d.scheduler.WorkerStatus(),
		Dependencies: deps.Check(ctx, d.cfg),
	}
	if running {
		status.StartedAt = startedAt
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
	}
	return status
}

// Payload converts the status to its wire format.
func (s Status) Payload() api.DaemonStatus {
	payload := api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		LockFilePath: s.LockFilePath,
		SocketPath:   s.SocketPath,
		HistoryPath:  s.HistoryPath,
		APIAddress:   s.APIAddress,
		Stats:        api.FromStats(s.Stats),
		Workers:      api.FromWorkerStatus(s.Workers),
		Dependencies: api.FromDependencies(s.Dependencies),
	}
	if !s.StartedAt.IsZero() {
		payload.StartedAt = s.StartedAt.UTC().Format(time.RFC3339)
	}
	return payload
}
