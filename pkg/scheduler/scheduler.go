package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
)

// TaskFunc is a task body. The context is canceled when the scheduler
// is destroyed; long bodies should watch it.
type TaskFunc func(ctx context.Context)

// Options customizes a scheduled task
type Options struct {
	// Name is a human-readable label; defaults to the task id
	Name string

	// Timezone evaluates the cron expression in a specific location.
	// Defaults to the local timezone.
	Timezone *time.Location

	// StartNow fires the task once immediately after scheduling,
	// subject to the same overlap rule as cron fires
	StartNow bool
}

// TaskStatus describes one task for the observable surface
type TaskStatus struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Cron      string     `json:"cron"`
	Active    bool       `json:"active"`
	Running   bool       `json:"running"`
	NextFire  *time.Time `json:"next_fire_time,omitempty"`
	LastFire  *time.Time `json:"last_fire_time,omitempty"`
	RunCount  uint64     `json:"run_count"`
	DropCount uint64     `json:"drop_count"`
}

// task is one registry entry. All mutable fields are guarded by the
// scheduler mutex.
type task struct {
	id       string
	name     string
	expr     string
	schedule cron.Schedule
	fn       TaskFunc
	tz       *time.Location
	startNow bool

	active    bool
	running   bool
	runCount  uint64
	dropCount uint64
	lastFire  time.Time
	stopCh    chan struct{}
}

// Scheduler is a named cron task registry. Tasks fire asynchronously;
// a fire that overlaps a still-running body is dropped and counted.
type Scheduler struct {
	parser cron.Parser

	mu        sync.Mutex
	tasks     map[string]*task
	destroyed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates an empty scheduler. Cron expressions accept
// standard 5-field syntax, an optional leading seconds field, and
// @-descriptors such as @hourly and @every 90s.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		parser: cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule registers a task under a unique id and activates it.
// Invalid expressions and duplicate ids are rejected.
func (s *Scheduler) Schedule(id, expr string, fn TaskFunc, opts *Options) error {
	if id == "" {
		return errdefs.New(errdefs.ClassConfiguration, "scheduler: task id is required")
	}
	if fn == nil {
		return errdefs.Newf(errdefs.ClassConfiguration, "scheduler: task %q has no body", id)
	}

	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return errdefs.Wrapf(errdefs.ClassConfiguration, err, "scheduler: invalid cron %q for task %q", expr, id)
	}

	if opts == nil {
		opts = &Options{}
	}
	name := opts.Name
	if name == "" {
		name = id
	}
	tz := opts.Timezone
	if tz == nil {
		tz = time.Local
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return errdefs.Wrapf(errdefs.ClassPrecondition, errdefs.ErrClosed, "scheduler: cannot schedule %q", id)
	}
	if _, exists := s.tasks[id]; exists {
		return errdefs.Wrapf(errdefs.ClassPrecondition, errdefs.ErrDuplicateTask, "scheduler: %q", id)
	}

	t := &task{
		id:       id,
		name:     name,
		expr:     expr,
		schedule: schedule,
		fn:       fn,
		tz:       tz,
		startNow: opts.StartNow,
	}
	s.tasks[id] = t
	s.activateLocked(t)

	lg := log.WithComponent("scheduler")
	lg.Info().
		Str("task", id).
		Str("cron", expr).
		Msg("Task scheduled")
	return nil
}

// Start activates a stopped task. Active tasks are left alone.
func (s *Scheduler) Start(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[id]
	if !exists {
		return errdefs.Wrapf(errdefs.ClassPrecondition, errdefs.ErrUnknownTask, "scheduler: %q", id)
	}
	if !t.active {
		s.activateLocked(t)
	}
	return nil
}

// Stop deactivates a task. A running body is not interrupted; future
// fires stop.
func (s *Scheduler) Stop(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[id]
	if !exists {
		return errdefs.Wrapf(errdefs.ClassPrecondition, errdefs.ErrUnknownTask, "scheduler: %q", id)
	}
	s.deactivateLocked(t)
	return nil
}

// Remove stops and deletes a task
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[id]
	if !exists {
		return errdefs.Wrapf(errdefs.ClassPrecondition, errdefs.ErrUnknownTask, "scheduler: %q", id)
	}
	s.deactivateLocked(t)
	delete(s.tasks, id)

	lg := log.WithComponent("scheduler")
	lg.Info().Str("task", id).Msg("Task removed")
	return nil
}

// StartAll activates every registered task
func (s *Scheduler) StartAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if !t.active {
			s.activateLocked(t)
		}
	}
}

// StopAll deactivates every registered task
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		s.deactivateLocked(t)
	}
}

// DestroyAll stops and removes every task and poisons the scheduler:
// subsequent Schedule calls fail. The destruction context is canceled
// so cooperative bodies exit; bodies are otherwise not waited for.
func (s *Scheduler) DestroyAll() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	for _, t := range s.tasks {
		s.deactivateLocked(t)
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	s.cancel()
	lg := log.WithComponent("scheduler")
	lg.Info().Msg("Scheduler destroyed")
}

// Status returns every task's status sorted by id
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, s.statusLocked(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TaskStatus returns one task's status
func (s *Scheduler) TaskStatus(id string) (TaskStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tasks[id]
	if !exists {
		return TaskStatus{}, errdefs.Wrapf(errdefs.ClassPrecondition, errdefs.ErrUnknownTask, "scheduler: %q", id)
	}
	return s.statusLocked(t), nil
}

func (s *Scheduler) statusLocked(t *task) TaskStatus {
	status := TaskStatus{
		ID:        t.id,
		Name:      t.name,
		Cron:      t.expr,
		Active:    t.active,
		Running:   t.running,
		RunCount:  t.runCount,
		DropCount: t.dropCount,
	}
	if !t.lastFire.IsZero() {
		last := t.lastFire
		status.LastFire = &last
	}
	if t.active {
		next := t.schedule.Next(time.Now().In(t.tz))
		if !next.IsZero() {
			status.NextFire = &next
		}
	}
	return status
}

// activateLocked arms the task's timer loop. Caller holds s.mu.
func (s *Scheduler) activateLocked(t *task) {
	t.active = true
	t.stopCh = make(chan struct{})
	go s.runTask(t, t.stopCh)
}

// deactivateLocked disarms the timer loop. Caller holds s.mu.
func (s *Scheduler) deactivateLocked(t *task) {
	if !t.active {
		return
	}
	t.active = false
	close(t.stopCh)
	t.stopCh = nil
}

// runTask waits for fire times and dispatches the body until stopped
func (s *Scheduler) runTask(t *task, stopCh chan struct{}) {
	if t.startNow {
		s.fire(t)
	}

	for {
		next := t.schedule.Next(time.Now().In(t.tz))
		if next.IsZero() {
			lg := log.WithComponent("scheduler")
			lg.Warn().
				Str("task", t.id).
				Str("cron", t.expr).
				Msg("No future fire time, deactivating task")
			s.mu.Lock()
			if t.stopCh == stopCh {
				t.active = false
				t.stopCh = nil
			}
			s.mu.Unlock()
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.fire(t)
		case <-stopCh:
			timer.Stop()
			return
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// fire dispatches one invocation unless the previous body is still
// running, in which case the fire is dropped and counted
func (s *Scheduler) fire(t *task) {
	s.mu.Lock()
	if t.running {
		t.dropCount++
		s.mu.Unlock()
		metrics.ScheduledDropsTotal.WithLabelValues(t.id).Inc()
		lg := log.WithComponent("scheduler")
		lg.Debug().
			Str("task", t.id).
			Msg("Fire dropped, previous invocation still running")
		return
	}
	t.running = true
	t.runCount++
	t.lastFire = time.Now()
	s.mu.Unlock()

	metrics.ScheduledRunsTotal.WithLabelValues(t.id).Inc()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				lg := log.WithComponent("scheduler")
				lg.Error().
					Str("task", t.id).
					Interface("panic", r).
					Msg("Task body panicked")
			}
			s.mu.Lock()
			t.running = false
			s.mu.Unlock()
		}()
		t.fn(s.ctx)
	}()
}
