/*
Package service hosts the sync runtime and owns its lifecycle.

A Service wires exactly one executor, one scheduler, one notification
hub, and one health aggregator, plus the metrics collector and the
observable HTTP surface. Agents plug domain behavior into these
subsystems through a Runtime view during startup; they never create
their own.

# Lifecycle

	created ──Start──▶ initializing ──▶ running ──Stop──▶ stopping ──▶ stopped
	                        │
	                        └── any startup failure ──▶ failed

Start validates configuration, builds the subsystems, registers the
configured notification channels, initializes agents in registration
order, registers one scheduled sync task per content type carrying a
cron schedule, and starts the scheduler, health loop, collector, and
API. A failure emits service_error, shuts down initialized agents in
reverse order, tears down what was built, and parks the host in
failed.

Stop destroys the scheduler, drains the executor bounded by the
shutdown grace period (in-flight operations are cancelled and given
that long to unwind), stops the health and metrics loops, shuts the
API down, shuts agents down in reverse order, emits service_stopped,
and closes the hub. Submit is rejected with a precondition error in
every state but running.

# Sync orchestration

Each scheduled task fire plans its content type against the
registered pipeline and executes the plan as one sync operation on
the executor: transfers run in order, failures are recorded and the
rest continue, and a partially failed sync returns a transient error
so the retry engine can re-run it with completion markers skipping
what already landed. Task bodies wait for the operation, so the
scheduler's drop-if-running rule serializes syncs per content type.

# Integration Points

This package integrates with:

  - pkg/executor, pkg/scheduler, pkg/events, pkg/health: owned subsystems
  - pkg/planner + pkg/transfer: the sync pipeline
  - pkg/api: the host implements api.Source
  - pkg/metrics: the host implements metrics.Source
  - pkg/config: read-only configuration
*/
package service
