package executor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/retry"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

const (
	// DefaultWorkers is the pool size when none is configured
	DefaultWorkers = 5

	// MinWorkers and MaxWorkers bound the configurable pool size
	MinWorkers = 1
	MaxWorkers = 20

	// DefaultOperationTimeout caps a single operation's execution time
	DefaultOperationTimeout = 30 * time.Minute

	notifyBuffer = 256
)

// Runner is the unit of work an operation executes. Implementations
// must honor ctx at their suspension points and may drive the tracker
// as work advances.
type Runner func(ctx context.Context, tracker *progress.Tracker) (interface{}, error)

// Config holds executor configuration
type Config struct {
	// Workers is the number of concurrent runners, clamped to
	// [MinWorkers, MaxWorkers]. Zero means DefaultWorkers.
	Workers int

	// QueueSize bounds the number of waiting operations. Zero means
	// unbounded.
	QueueSize int

	// RejectWhenFull makes Submit fail with ErrQueueFull when the
	// bounded queue is at capacity instead of blocking the caller.
	RejectWhenFull bool

	// DefaultTimeout is the per-operation execution ceiling applied
	// when the operation carries none. Zero means
	// DefaultOperationTimeout.
	DefaultTimeout time.Duration

	// DefaultRetry is the retry policy applied when submit options
	// carry none. Nil means retry.DefaultPolicy.
	DefaultRetry *retry.Policy
}

// SubmitOptions customizes a single submission
type SubmitOptions struct {
	// Retry overrides the executor's default retry policy
	Retry *retry.Policy

	// Progress configures the operation's tracker (totals, phases,
	// periodic emission)
	Progress *progress.Config
}

// notice is one event queued for the notifier goroutine
type notice struct {
	typ   events.EventType
	level events.Level
	msg   string
	err   error
	data  map[string]interface{}
}

// Executor runs operations on a bounded worker pool. Submissions past
// pool capacity queue FIFO. Each operation is wrapped with a progress
// tracker, the retry engine, and lifecycle notifications.
type Executor struct {
	config Config
	hub    *events.Hub
	logger zerolog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Handle
	handles map[string]*Handle
	running int
	closed  bool

	// slots is the admission semaphore for bounded queues, nil when
	// unbounded. Every queued handle holds exactly one token.
	slots    chan struct{}
	closedCh chan struct{}

	wg       sync.WaitGroup
	batchWg  sync.WaitGroup
	notifyCh chan notice
	notifyWg sync.WaitGroup

	stats statsState
}

// New creates an executor and starts its worker pool. A nil config
// gets defaults. The hub may be nil, in which case no notifications
// are emitted.
func New(cfg *Config, hub *events.Hub) *Executor {
	if cfg == nil {
		cfg = &Config{}
	}
	config := *cfg
	if config.Workers == 0 {
		config.Workers = DefaultWorkers
	}
	if config.Workers < MinWorkers {
		config.Workers = MinWorkers
	}
	if config.Workers > MaxWorkers {
		config.Workers = MaxWorkers
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultOperationTimeout
	}
	if config.DefaultRetry == nil {
		p := retry.DefaultPolicy()
		config.DefaultRetry = &p
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	e := &Executor{
		config:     config,
		hub:        hub,
		logger:     log.WithComponent("executor"),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		handles:    make(map[string]*Handle),
		closedCh:   make(chan struct{}),
		notifyCh:   make(chan notice, notifyBuffer),
	}
	e.cond = sync.NewCond(&e.mu)
	if config.QueueSize > 0 {
		e.slots = make(chan struct{}, config.QueueSize)
	}

	e.notifyWg.Add(1)
	go e.notifierLoop()

	for i := 0; i < config.Workers; i++ {
		e.wg.Add(1)
		go e.workerLoop(i)
	}

	e.logger.Info().
		Int("workers", config.Workers).
		Int("queue_size", config.QueueSize).
		Dur("default_timeout", config.DefaultTimeout).
		Msg("Executor started")

	return e
}

// Submit enqueues an operation for execution and returns its handle.
// ctx gates queue admission only: when the queue is bounded and full,
// Submit blocks until space frees, ctx is done, or the executor
// closes. It does not become the operation's context.
func (e *Executor) Submit(ctx context.Context, op *types.Operation, runner Runner, opts *SubmitOptions) (*Handle, error) {
	if runner == nil {
		return nil, errdefs.New(errdefs.ClassConfiguration, "executor: runner is required")
	}
	if op == nil {
		op = &types.Operation{}
	}

	frozen := *op
	if frozen.ID == "" {
		frozen.ID = uuid.New().String()
	}
	if frozen.Kind == "" {
		frozen.Kind = types.OperationKindCustom
	}
	if frozen.Name == "" {
		frozen.Name = string(frozen.Kind)
	}
	if frozen.CreatedAt.IsZero() {
		frozen.CreatedAt = time.Now()
	}

	timeout := frozen.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	if opts == nil {
		opts = &SubmitOptions{}
	}
	policy := *e.config.DefaultRetry
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("failed to submit operation %q: %w", frozen.ID, err)
	}

	if e.slots != nil {
		if e.config.RejectWhenFull {
			select {
			case e.slots <- struct{}{}:
			default:
				return nil, fmt.Errorf("failed to queue operation %q: %w", frozen.ID, errdefs.ErrQueueFull)
			}
		} else {
			select {
			case e.slots <- struct{}{}:
			case <-ctx.Done():
				return nil, fmt.Errorf("failed to queue operation %q: %w", frozen.ID, ctx.Err())
			case <-e.closedCh:
				return nil, fmt.Errorf("failed to queue operation %q: %w", frozen.ID, errdefs.ErrClosed)
			}
		}
	}

	opCtx, cancel := context.WithCancel(e.baseCtx)
	h := &Handle{
		op:       frozen,
		tracker:  progress.New(frozen.ID, opts.Progress),
		runner:   runner,
		policy:   policy,
		timeout:  timeout,
		ctx:      opCtx,
		cancelFn: cancel,
		done:     make(chan struct{}),
		state:    types.OperationStateQueued,
		queuedAt: time.Now(),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		e.releaseSlot()
		return nil, fmt.Errorf("failed to submit operation %q: %w", frozen.ID, errdefs.ErrClosed)
	}
	if _, exists := e.handles[frozen.ID]; exists {
		e.mu.Unlock()
		cancel()
		e.releaseSlot()
		return nil, errdefs.Newf(errdefs.ClassPrecondition, "executor: operation id %q is already active", frozen.ID)
	}
	e.queue = append(e.queue, h)
	e.handles[frozen.ID] = h
	depth := len(e.queue)
	e.stats.recordSubmit()
	e.cond.Signal()
	e.mu.Unlock()

	e.logger.Debug().
		Str("operation_id", frozen.ID).
		Str("kind", string(frozen.Kind)).
		Int("queue_depth", depth).
		Msg("Operation queued")

	return h, nil
}

// Shutdown closes the executor: new submissions are rejected, queued
// and in-flight operations receive a cancellation signal, and the
// call waits for workers to drain until ctx expires. A second call
// returns immediately.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.closedCh)
	e.cond.Broadcast()
	e.mu.Unlock()

	e.logger.Info().Msg("Executor shutting down")
	e.baseCancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		e.batchWg.Wait()
		close(e.notifyCh)
		e.notifyWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info().Msg("Executor drained")
		return nil
	case <-ctx.Done():
		e.logger.Warn().Msg("Shutdown grace expired with operations still in flight")
		return fmt.Errorf("failed to drain executor: %w", errdefs.ErrTimeout)
	}
}

// QueueDepth returns the number of operations waiting for a worker
func (e *Executor) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// BusyWorkers returns the number of workers currently running an
// operation
func (e *Executor) BusyWorkers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// OperationCounts returns current queued and running counts plus
// lifetime terminal counts, keyed by state name
func (e *Executor) OperationCounts() map[string]int {
	e.mu.Lock()
	queued := len(e.queue)
	running := e.running
	e.mu.Unlock()

	counts := e.stats.terminalCounts()
	counts[string(types.OperationStateQueued)] = queued
	counts[string(types.OperationStateRunning)] = running
	return counts
}

// Progress returns the current progress snapshot for an active
// operation. Finished operations are not retained.
func (e *Executor) Progress(id string) (progress.Snapshot, error) {
	e.mu.Lock()
	h, ok := e.handles[id]
	e.mu.Unlock()
	if !ok {
		return progress.Snapshot{}, fmt.Errorf("failed to find operation %q: %w", id, errdefs.ErrUnknownOperation)
	}
	return h.Progress(), nil
}

// Stats returns a snapshot of executor activity
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	queued := len(e.queue)
	running := e.running
	e.mu.Unlock()
	return e.stats.snapshot(queued, running)
}

func (e *Executor) releaseSlot() {
	if e.slots != nil {
		<-e.slots
	}
}

func (e *Executor) workerLoop(id int) {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		h := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.running++
		e.mu.Unlock()
		e.releaseSlot()

		e.run(h)

		e.mu.Lock()
		e.running--
		delete(e.handles, h.op.ID)
		e.mu.Unlock()
	}
}

// run drives one operation through its full lifecycle: tracker start,
// start notification, retried runner execution, terminal tracker
// transition, terminal notification.
func (e *Executor) run(h *Handle) {
	runCtx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	h.markRunning()
	h.tracker.Start()
	e.notify(notice{
		typ:   events.EventOperationStarted,
		level: events.LevelInfo,
		msg:   fmt.Sprintf("operation %s started", h.op.Name),
		data:  h.noticeData(0, 0),
	})

	policy := h.policy
	onExhausted := policy.OnExhausted
	policy.OnExhausted = func(attempts int, err error) {
		metrics.RetriesExhaustedTotal.Inc()
		if onExhausted != nil {
			onExhausted(attempts, err)
		}
	}

	timer := metrics.NewTimer()
	res, err := retry.Do(runCtx, policy, func(ctx context.Context) (v interface{}, rerr error) {
		defer func() {
			if r := recover(); r != nil {
				rerr = fmt.Errorf("runner panic: %v", r)
				e.logger.Error().
					Str("operation_id", h.op.ID).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("Runner panicked")
			}
		}()
		return h.runner(ctx, h.tracker)
	})
	duration := timer.Duration()

	attempts := 0
	var value interface{}
	if res != nil {
		attempts = res.Attempts
		value = res.Value
	}
	if attempts > 1 {
		metrics.RetryAttemptsTotal.Add(float64(attempts - 1))
	}

	state, finalErr := classify(runCtx, h.timeout, err)
	switch state {
	case types.OperationStateCompleted:
		h.tracker.Complete()
	case types.OperationStateCancelled:
		h.tracker.Cancel()
	default:
		h.tracker.Fail(finalErr)
	}

	metrics.OperationsTotal.WithLabelValues(string(h.op.Kind), string(state)).Inc()
	timer.ObserveDurationVec(metrics.OperationDuration, string(h.op.Kind))
	e.stats.recordTerminal(state, duration)

	h.finish(state, value, finalErr, attempts)
	e.finishNotice(h, state, finalErr, attempts, duration)
}

// classify maps a retry outcome onto a terminal operation state. The
// timeout check runs first so an expired execution ceiling reads as a
// failure, not a cancellation.
func classify(runCtx context.Context, timeout time.Duration, err error) (types.OperationState, error) {
	if err == nil {
		return types.OperationStateCompleted, nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return types.OperationStateFailed, fmt.Errorf("operation timed out after %s: %w", timeout, errdefs.ErrTimeout)
	}
	if errdefs.IsCanceled(err) || runCtx.Err() != nil {
		return types.OperationStateCancelled, err
	}
	return types.OperationStateFailed, err
}

func (e *Executor) finishNotice(h *Handle, state types.OperationState, err error, attempts int, duration time.Duration) {
	data := h.noticeData(attempts, duration)

	switch state {
	case types.OperationStateCompleted:
		e.logger.Debug().
			Str("operation_id", h.op.ID).
			Int("attempts", attempts).
			Dur("duration", duration).
			Msg("Operation completed")
		e.notify(notice{
			typ:   events.EventOperationCompleted,
			level: events.LevelInfo,
			msg:   fmt.Sprintf("operation %s completed", h.op.Name),
			data:  data,
		})
	case types.OperationStateCancelled:
		e.logger.Info().
			Str("operation_id", h.op.ID).
			Dur("duration", duration).
			Msg("Operation cancelled")
		e.notify(notice{
			typ:   events.EventOperationCancelled,
			level: events.LevelWarn,
			msg:   fmt.Sprintf("operation %s cancelled", h.op.Name),
			err:   err,
			data:  data,
		})
	default:
		e.logger.Error().
			Str("operation_id", h.op.ID).
			Int("attempts", attempts).
			Dur("duration", duration).
			Err(err).
			Msg("Operation failed")
		e.notify(notice{
			typ:   events.EventOperationFailed,
			level: events.LevelError,
			msg:   fmt.Sprintf("operation %s failed", h.op.Name),
			err:   err,
			data:  data,
		})
	}
}

// notify hands an event to the notifier goroutine. Workers never call
// the hub directly so channel latency cannot stall the pool.
func (e *Executor) notify(n notice) {
	if e.hub == nil {
		return
	}
	e.notifyCh <- n
}

func (e *Executor) notifierLoop() {
	defer e.notifyWg.Done()

	for n := range e.notifyCh {
		// Deliveries get a fresh context: the base context is already
		// canceled while shutdown notices drain.
		_, err := e.hub.Emit(context.Background(), n.typ, n.msg, &events.EmitOptions{
			Level:  n.level,
			Source: "executor",
			Error:  n.err,
			Data:   n.data,
		})
		if err != nil {
			e.logger.Warn().Err(err).Str("type", string(n.typ)).Msg("Failed to emit operation event")
		}
	}
}
