package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladzaharia/dangerprep-sub010/pkg/api"
	"github.com/vladzaharia/dangerprep-sub010/pkg/config"
	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/executor"
	"github.com/vladzaharia/dangerprep-sub010/pkg/health"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
	"github.com/vladzaharia/dangerprep-sub010/pkg/planner"
	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/retry"
	"github.com/vladzaharia/dangerprep-sub010/pkg/scheduler"
	"github.com/vladzaharia/dangerprep-sub010/pkg/transfer"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// Service hosts the sync runtime: one executor, one scheduler, one
// notification hub, one health aggregator, and the observable HTTP
// surface. Lifecycle runs created → initializing → running → stopping
// → stopped; any startup failure lands in failed.
type Service struct {
	config  *config.Config
	version string
	logger  zerolog.Logger

	mu        sync.RWMutex
	state     types.ServiceState
	startedAt time.Time

	hub       *events.Hub
	exec      *executor.Executor
	sched     *scheduler.Scheduler
	aggr      *health.Aggregator
	collector *metrics.Collector
	api       *api.Server
	planner   *planner.Planner

	src        transfer.SourceProvider
	transferor transfer.Transferor

	agents       []Agent
	contentTypes []types.ContentType
	defaultRetry retry.Policy
}

// NewService creates a host in the created state. Nothing starts
// until Start.
func NewService(cfg *config.Config, version string) *Service {
	if version == "" {
		version = "dev"
	}
	return &Service{
		config:  cfg,
		version: version,
		logger:  log.WithService(cfg.Service.Name),
		state:   types.ServiceStateCreated,
	}
}

// AddAgent registers an agent before Start. Agents initialize in
// registration order.
func (s *Service) AddAgent(a Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != types.ServiceStateCreated {
		return errdefs.Newf(errdefs.ClassPrecondition,
			"cannot add agent in state %s", s.state)
	}
	s.agents = append(s.agents, a)
	return nil
}

// Start validates configuration, builds every subsystem, initializes
// agents, and brings the runtime to running. A failure tears down
// whatever was built and leaves the service failed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != types.ServiceStateCreated {
		state := s.state
		s.mu.Unlock()
		return errdefs.Newf(errdefs.ClassPrecondition, "cannot start from state %s", state)
	}
	s.state = types.ServiceStateInitializing
	s.mu.Unlock()

	s.logger.Info().Str("version", s.version).Msg("Service starting")

	if err := s.config.Validate(); err != nil {
		return s.failStart(ctx, err, nil)
	}

	s.build()

	if err := s.registerChannels(); err != nil {
		return s.failStart(ctx, err, nil)
	}

	var inited []Agent
	for _, a := range s.agents {
		if err := a.Init(ctx, &Runtime{svc: s}); err != nil {
			return s.failStart(ctx,
				fmt.Errorf("failed to initialize agent %s: %w", a.Name(), err), inited)
		}
		inited = append(inited, a)
		s.logger.Info().Str("agent", a.Name()).Msg("Agent initialized")
	}

	if err := s.registerSyncTasks(); err != nil {
		return s.failStart(ctx, err, inited)
	}

	s.sched.StartAll()
	s.aggr.Start(ctx)
	s.collector.Start()

	if s.api != nil {
		if err := s.api.Start(); err != nil {
			return s.failStart(ctx, err, inited)
		}
	}

	s.mu.Lock()
	s.state = types.ServiceStateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	if _, err := s.hub.ServiceStarted(ctx, s.config.Service.Name, s.version); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to emit start event")
	}
	s.logger.Info().Msg("Service running")
	return nil
}

// build constructs the subsystems from configuration. Assignments run
// under the lock so observable accessors never race a starting host.
func (s *Service) build() {
	cfg := s.config

	hub := events.NewHub(&events.Config{
		HistorySize:   cfg.Notifications.RingCapacity,
		SendTimeout:   time.Duration(cfg.Notifications.ChannelSendTimeout),
		RetryAttempts: cfg.Notifications.ChannelRetryAttempts,
		Source:        cfg.Service.Name,
	})

	s.defaultRetry = cfg.Retry.Policy()
	exec := executor.New(&executor.Config{
		Workers:        cfg.Executor.MaxConcurrentOperations,
		QueueSize:      cfg.Executor.QueueSize,
		RejectWhenFull: cfg.Executor.RejectWhenFull,
		DefaultTimeout: time.Duration(cfg.Executor.OperationTimeout),
		DefaultRetry:   &s.defaultRetry,
	}, hub)

	aggr := health.NewAggregator(hub, &health.Config{
		CheckInterval: time.Duration(cfg.Health.CheckInterval),
		ProbeTimeout:  time.Duration(cfg.Health.ProbeTimeout),
	})

	s.mu.Lock()
	s.hub = hub
	s.exec = exec
	s.sched = scheduler.NewScheduler()
	s.aggr = aggr
	s.collector = metrics.NewCollector(s, 15*time.Second)
	s.planner = planner.New()
	s.contentTypes = cfg.DomainContentTypes()
	if cfg.API.Enabled {
		s.api = api.NewServer(s, cfg.API.Listen)
	}
	s.mu.Unlock()
}

// registerChannels wires the configured notification channels
func (s *Service) registerChannels() error {
	if s.config.Notifications.LogChannel {
		if err := s.hub.AddChannel(events.NewLogChannel()); err != nil {
			return err
		}
	}
	for _, wh := range s.config.Notifications.Webhooks {
		ch, err := events.NewWebhookChannel(wh.Name, events.WebhookConfig{
			URL:      wh.URL,
			Method:   wh.Method,
			Headers:  wh.Headers,
			Timeout:  time.Duration(wh.Timeout),
			MinLevel: events.Level(wh.MinLevel),
		})
		if err != nil {
			return err
		}
		if err := s.hub.AddChannel(ch); err != nil {
			return err
		}
	}
	return nil
}

// failStart tears down a partially started runtime and parks the
// service in failed
func (s *Service) failStart(ctx context.Context, cause error, inited []Agent) error {
	s.logger.Error().Err(cause).Msg("Service start failed")

	if s.hub != nil {
		if _, err := s.hub.ServiceError(ctx, s.config.Service.Name, cause); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to emit error event")
		}
	}

	for i := len(inited) - 1; i >= 0; i-- {
		if err := inited[i].Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Str("agent", inited[i].Name()).Msg("Agent shutdown failed")
		}
	}
	s.teardown(ctx)

	s.mu.Lock()
	s.state = types.ServiceStateFailed
	s.mu.Unlock()
	return cause
}

// teardown stops whatever build managed to construct
func (s *Service) teardown(ctx context.Context) {
	if s.sched != nil {
		s.sched.DestroyAll()
	}
	if s.exec != nil {
		drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = s.exec.Shutdown(drainCtx)
		cancel()
	}
	if s.aggr != nil {
		s.aggr.Stop()
	}
	if s.collector != nil {
		s.collector.Stop()
	}
	if s.api != nil {
		_ = s.api.Shutdown(ctx)
	}
	if s.hub != nil {
		s.hub.Close()
	}
}

// Stop drains the runtime: scheduler destroyed, in-flight operations
// bounded by the shutdown grace period, health and metrics loops
// stopped, agents shut down, the stop event emitted, channels closed.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case types.ServiceStateRunning:
	case types.ServiceStateStopped:
		s.mu.Unlock()
		return nil
	default:
		state := s.state
		s.mu.Unlock()
		return errdefs.Newf(errdefs.ClassPrecondition, "cannot stop from state %s", state)
	}
	s.state = types.ServiceStateStopping
	started := s.startedAt
	s.mu.Unlock()

	s.logger.Info().Msg("Service stopping")

	s.sched.DestroyAll()

	drainCtx := ctx
	if grace := time.Duration(s.config.Service.ShutdownGracePeriod); grace > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, grace)
		defer cancel()
	}
	drainErr := s.exec.Shutdown(drainCtx)
	if drainErr != nil {
		s.logger.Warn().Err(drainErr).Msg("Operations still in flight past grace period")
	}

	s.aggr.Stop()
	s.collector.Stop()

	if s.api != nil {
		if err := s.api.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("API shutdown failed")
		}
	}

	for i := len(s.agents) - 1; i >= 0; i-- {
		if err := s.agents[i].Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Str("agent", s.agents[i].Name()).Msg("Agent shutdown failed")
		}
	}

	if _, err := s.hub.ServiceStopped(ctx, s.config.Service.Name, time.Since(started)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to emit stop event")
	}
	s.hub.Close()

	s.mu.Lock()
	s.state = types.ServiceStateStopped
	s.mu.Unlock()

	s.logger.Info().Dur("uptime", time.Since(started)).Msg("Service stopped")
	return drainErr
}

// Submit runs an operation through the host's executor. Rejected with
// a precondition error unless the service is running.
func (s *Service) Submit(ctx context.Context, op *types.Operation, runner executor.Runner, opts *executor.SubmitOptions) (*executor.Handle, error) {
	s.mu.RLock()
	state := s.state
	exec := s.exec
	s.mu.RUnlock()

	if state != types.ServiceStateRunning {
		return nil, errdefs.Newf(errdefs.ClassPrecondition,
			"service %s is not accepting operations (state %s)", s.config.Service.Name, state)
	}
	return exec.Submit(ctx, op, runner, opts)
}

// State returns the current lifecycle state
func (s *Service) State() types.ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// HealthReport returns the latest aggregated report, running a fresh
// check when none exists yet
func (s *Service) HealthReport(ctx context.Context) *health.Report {
	s.mu.RLock()
	aggr := s.aggr
	s.mu.RUnlock()

	if aggr == nil {
		return &health.Report{Overall: health.OverallUnknown, GeneratedAt: time.Now()}
	}
	if last := aggr.LastReport(); last != nil {
		return last
	}
	return aggr.Check(ctx)
}

// RecentEvents returns buffered events matching the filter
func (s *Service) RecentEvents(filter events.Filter) []*events.Event {
	s.mu.RLock()
	hub := s.hub
	s.mu.RUnlock()

	if hub == nil {
		return nil
	}
	return hub.RecentFiltered(filter)
}

// TaskStatuses returns the scheduled task table
func (s *Service) TaskStatuses() []scheduler.TaskStatus {
	s.mu.RLock()
	sched := s.sched
	s.mu.RUnlock()

	if sched == nil {
		return nil
	}
	return sched.Status()
}

// ExecutorStats returns executor activity counters
func (s *Service) ExecutorStats() executor.Stats {
	s.mu.RLock()
	exec := s.exec
	s.mu.RUnlock()

	if exec == nil {
		return executor.Stats{}
	}
	return exec.Stats()
}

// OperationProgress returns the live snapshot of one active operation
func (s *Service) OperationProgress(id string) (progress.Snapshot, error) {
	s.mu.RLock()
	exec := s.exec
	s.mu.RUnlock()

	if exec == nil {
		return progress.Snapshot{}, fmt.Errorf("failed to find operation %q: %w", id, errdefs.ErrUnknownOperation)
	}
	return exec.Progress(id)
}

// APIAddr returns the bound observable-surface address, empty when
// the API is disabled or not started
func (s *Service) APIAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.api == nil {
		return ""
	}
	return s.api.Addr()
}

// OperationCounts implements metrics.Source
func (s *Service) OperationCounts() map[string]int {
	s.mu.RLock()
	exec := s.exec
	s.mu.RUnlock()
	if exec == nil {
		return nil
	}
	return exec.OperationCounts()
}

// QueueDepth implements metrics.Source
func (s *Service) QueueDepth() int {
	s.mu.RLock()
	exec := s.exec
	s.mu.RUnlock()
	if exec == nil {
		return 0
	}
	return exec.QueueDepth()
}

// BusyWorkers implements metrics.Source
func (s *Service) BusyWorkers() int {
	s.mu.RLock()
	exec := s.exec
	s.mu.RUnlock()
	if exec == nil {
		return 0
	}
	return exec.BusyWorkers()
}

// AvailableChannels implements metrics.Source
func (s *Service) AvailableChannels() int {
	s.mu.RLock()
	hub := s.hub
	s.mu.RUnlock()
	if hub == nil {
		return 0
	}
	return hub.AvailableChannels()
}
