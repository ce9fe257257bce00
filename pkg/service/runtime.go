package service

import (
	"context"
	"time"

	"github.com/vladzaharia/dangerprep-sub010/pkg/config"
	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/executor"
	"github.com/vladzaharia/dangerprep-sub010/pkg/health"
	"github.com/vladzaharia/dangerprep-sub010/pkg/scheduler"
	"github.com/vladzaharia/dangerprep-sub010/pkg/transfer"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// Agent plugs domain behavior into the host. Init runs during service
// startup with a Runtime view to register probes, channels, tasks, and
// the sync pipeline; Shutdown runs during service stop after in-flight
// operations drain.
type Agent interface {
	Name() string
	Init(ctx context.Context, rt *Runtime) error
	Shutdown(ctx context.Context) error
}

// Runtime is the registration surface an agent sees during Init. It
// wraps the host's subsystems without exposing their lifecycles;
// starting and stopping stays with the host.
type Runtime struct {
	svc *Service
}

// Config returns the read-only service configuration
func (r *Runtime) Config() *config.Config {
	return r.svc.config
}

// Hub returns the notification hub for emitting domain events
func (r *Runtime) Hub() *events.Hub {
	return r.svc.hub
}

// RegisterProbe adds a health probe. A zero timeout uses the
// configured default.
func (r *Runtime) RegisterProbe(name string, critical bool, probe health.Probe, timeout time.Duration) error {
	return r.svc.aggr.Register(name, critical, probe, timeout)
}

// AddChannel registers a notification delivery channel
func (r *Runtime) AddChannel(ch events.Channel) error {
	return r.svc.hub.AddChannel(ch)
}

// Schedule registers a cron task beyond the per-content-type sync
// tasks the host creates itself
func (r *Runtime) Schedule(id, expr string, fn scheduler.TaskFunc, opts *scheduler.Options) error {
	return r.svc.sched.Schedule(id, expr, fn, opts)
}

// UseSyncPipeline wires the source and transferor the host plans
// against and executes with. Exactly one pipeline per host.
func (r *Runtime) UseSyncPipeline(src transfer.SourceProvider, tr transfer.Transferor) error {
	if src == nil || tr == nil {
		return errdefs.New(errdefs.ClassConfiguration, "sync pipeline needs a source and a transferor")
	}

	r.svc.mu.Lock()
	defer r.svc.mu.Unlock()
	if r.svc.src != nil {
		return errdefs.New(errdefs.ClassConfiguration, "sync pipeline already registered")
	}
	r.svc.src = src
	r.svc.transferor = tr
	return nil
}

// TriggerSync submits an out-of-schedule sync for one content type,
// e.g. when a watched directory settles
func (r *Runtime) TriggerSync(ctx context.Context, contentType string) (*executor.Handle, error) {
	return r.svc.SyncContentType(ctx, contentType)
}

// Submit runs an arbitrary operation through the host's executor
func (r *Runtime) Submit(ctx context.Context, op *types.Operation, runner executor.Runner, opts *executor.SubmitOptions) (*executor.Handle, error) {
	return r.svc.Submit(ctx, op, runner, opts)
}
