package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spool/internal/api"
	"spool/internal/daemon"
	"spool/internal/job"
	"spool/internal/joblog"
	"spool/internal/logging"
	"spool/internal/preset"
	"spool/internal/scheduler"
	"spool/internal/services"
	"spool/internal/workers"
)

// ServiceName is the RPC receiver name clients address.
const ServiceName = "Spool"

const (
	defaultCancelWait = 30 * time.Second
	defaultEventLimit = 100
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	events    *eventLog

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer listens on path, replacing any stale socket left behind.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	recent := newEventLog(d.Scheduler().Subscribe(), eventLogLimit)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &service{daemon: d, logger: logger, ctx: ctx, events: recent}); err != nil {
		recent.close()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		events:    recent,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve accepts connections in the background until Close.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrack(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Close stops accepting, drops open connections, and removes the socket.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
	s.events.close()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may confuse clients"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	events *eventLog
}

// request tags a state-changing call with a correlation id that follows it
// into scheduler logs.
func (s *service) request(method string) (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("ipc request", logging.String("method", method))
	return ctx, logger
}

func (s *service) scheduler() *scheduler.Scheduler {
	return s.daemon.Scheduler()
}

// resolveID accepts a full job id or a prefix matching exactly one live job.
func (s *service) resolveID(raw string) (job.ID, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", errors.New("job id is required")
	}
	if id, err := job.ParseID(raw); err == nil {
		return id, nil
	}
	var match job.ID
	for _, j := range s.scheduler().List(scheduler.Filter{}) {
		if !strings.HasPrefix(string(j.ID), raw) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("job id prefix %q is ambiguous", raw)
		}
		match = j.ID
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", scheduler.ErrJobNotFound, raw)
	}
	return match, nil
}

func (s *service) jobDTO(j job.Job) Job {
	out := api.FromJob(j, time.Now())
	out.QueuePosition = s.scheduler().QueuePosition(j.ID)
	return out
}

func parseStatuses(values []string) ([]job.Status, error) {
	statuses := make([]job.Status, 0, len(values))
	for _, value := range values {
		status, ok := job.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	reqs := make([]job.Request, 0, len(req.Requests))
	for i, r := range req.Requests {
		priority, err := job.ParsePriority(r.Priority)
		if err != nil {
			return fmt.Errorf("request %d: %w", i+1, err)
		}
		reqs = append(reqs, job.Request{
			InputPath:  r.InputPath,
			OutputPath: r.OutputPath,
			Priority:   priority,
			Encode:     preset.Selection{Preset: r.Preset, Overrides: r.Overrides},
		})
	}
	ctx, logger := s.request("Submit")
	created, err := s.scheduler().SubmitBatch(ctx, reqs)
	if err != nil {
		logger.Info("submit rejected", logging.Error(err))
		return err
	}
	resp.Jobs = make([]Job, 0, len(created))
	for _, j := range created {
		resp.Jobs = append(resp.Jobs, s.jobDTO(j))
	}
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	id, err := s.resolveID(req.ID)
	if err != nil {
		return err
	}
	wait := defaultCancelWait
	if req.WaitSeconds > 0 {
		wait = time.Duration(req.WaitSeconds) * time.Second
	}
	reqCtx, _ := s.request("Cancel")
	ctx, cancel := context.WithTimeout(reqCtx, wait)
	defer cancel()

	outcome, err := s.scheduler().Cancel(ctx, id)
	if err != nil {
		return err
	}
	j, err := s.scheduler().Get(id)
	if err != nil {
		return err
	}
	resp.Outcome = string(outcome)
	resp.Job = s.jobDTO(j)
	return nil
}

// Get looks in the live set first and then in the history archive, which
// only matches full ids.
func (s *service) Get(req GetRequest, resp *GetResponse) error {
	id, err := s.resolveID(req.ID)
	if err == nil {
		var j job.Job
		if j, err = s.scheduler().Get(id); err == nil {
			resp.Job = s.jobDTO(j)
			return nil
		}
	}
	if !errors.Is(err, scheduler.ErrJobNotFound) {
		return err
	}
	archived, ok, lookupErr := s.archivedJob(req.ID)
	if lookupErr != nil {
		return lookupErr
	}
	if !ok {
		return err
	}
	resp.Job = archived
	resp.Archived = true
	return nil
}

func (s *service) archivedJob(raw string) (Job, bool, error) {
	store := s.daemon.History()
	if store == nil {
		return Job{}, false, nil
	}
	id, err := job.ParseID(strings.TrimSpace(raw))
	if err != nil {
		return Job{}, false, nil
	}
	entry, err := store.Get(s.ctx, id)
	if err != nil || entry == nil {
		return Job{}, false, err
	}
	return api.FromJob(entry.Job, time.Now()), true, nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	jobs := s.scheduler().List(scheduler.Filter{Statuses: statuses, Limit: req.Limit})
	resp.Jobs = make([]Job, 0, len(jobs))
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, s.jobDTO(j))
	}
	return nil
}

func (s *service) Stats(_ StatsRequest, resp *StatsResponse) error {
	resp.Stats = api.FromStats(s.scheduler().Stats())
	return nil
}

func (s *service) ClearCompleted(_ ClearCompletedRequest, resp *ClearCompletedResponse) error {
	ctx, _ := s.request("ClearCompleted")
	removed, err := s.scheduler().ClearCompleted(ctx)
	resp.Removed = removed
	if err != nil {
		resp.ArchiveError = err.Error()
	}
	return nil
}

func (s *service) StartWorkers(req StartWorkersRequest, resp *WorkerStatusResponse) error {
	_, logger := s.request("StartWorkers")
	logger.Info("starting workers", logging.Int("requested", req.Count))
	if err := s.daemon.StartWorkers(req.Count); err != nil {
		return err
	}
	resp.Workers = api.FromWorkerStatus(s.scheduler().WorkerStatus())
	return nil
}

func (s *service) StopWorkers(req StopWorkersRequest, resp *WorkerStatusResponse) error {
	sched := s.scheduler()
	reqCtx, logger := s.request("StopWorkers")
	logger.Info("stopping workers", logging.Bool("drain", req.Drain))
	if !req.Drain {
		sched.StopWorkers()
		resp.Workers = api.FromWorkerStatus(sched.WorkerStatus())
		return nil
	}
	timeout := s.daemon.Config().DrainTimeout()
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(reqCtx, timeout)
	defer cancel()
	err := sched.Drain(ctx)
	resp.Workers = api.FromWorkerStatus(sched.WorkerStatus())
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("drain timed out after %s; running jobs were cancelled", timeout)
	}
	return err
}

func (s *service) WorkerStatus(_ WorkerStatusRequest, resp *WorkerStatusResponse) error {
	resp.Workers = api.FromWorkerStatus(s.scheduler().WorkerStatus())
	return nil
}

func (s *service) ResizeWorkers(req ResizeWorkersRequest, resp *WorkerStatusResponse) error {
	if err := s.scheduler().ResizeWorkers(req.Count); err != nil {
		if errors.Is(err, workers.ErrAlreadyRunning) {
			return errors.New("stop the workers before resizing the pool")
		}
		return err
	}
	resp.Workers = api.FromWorkerStatus(s.scheduler().WorkerStatus())
	return nil
}

func (s *service) Presets(_ PresetsRequest, resp *PresetsResponse) error {
	catalog := preset.Catalog()
	resp.Presets = make([]api.Preset, 0, len(catalog))
	for _, p := range catalog {
		resp.Presets = append(resp.Presets, api.FromPreset(p))
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	store := s.daemon.History()
	if store == nil {
		return nil
	}
	statuses, err := parseStatuses(req.Statuses)
	if err != nil {
		return err
	}
	entries, err := store.History(s.ctx, joblog.Filter{Statuses: statuses, Limit: req.Limit})
	if err != nil {
		return err
	}
	resp.Enabled = true
	resp.Entries = make([]api.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		resp.Entries = append(resp.Entries, api.FromHistoryEntry(e))
	}
	return nil
}

func (s *service) PruneHistory(req PruneHistoryRequest, resp *PruneHistoryResponse) error {
	store := s.daemon.History()
	if store == nil {
		return nil
	}
	if req.OlderThanSeconds <= 0 {
		return errors.New("prune age must be positive")
	}
	ctx, logger := s.request("PruneHistory")
	cutoff := time.Now().Add(-time.Duration(req.OlderThanSeconds) * time.Second)
	removed, err := store.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	logger.Info("pruned job history", logging.Int64("removed", removed), logging.Time("cutoff", cutoff))
	resp.Enabled = true
	resp.Removed = removed
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	sent, err := s.daemon.TestNotification(ctx)
	if err != nil {
		return err
	}
	resp.Sent = sent
	if !sent {
		resp.Message = "Notifications are disabled (set notifications.ntfy_topic)"
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Status = s.daemon.Status(s.ctx).Payload()
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	resp.Events = s.events.after(req.After, limit)
	return nil
}
