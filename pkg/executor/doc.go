/*
Package executor provides a bounded-concurrency pool for sync operations.

The executor is the single funnel through which all operation execution
flows. It wraps each submitted runner with a progress tracker, the
retry engine, per-operation timeouts, and lifecycle notifications, so
callers get uniform observability and failure handling without wiring
those concerns themselves.

# Architecture

A fixed worker pool drains a FIFO queue. Submissions past pool capacity
wait in the queue rather than being rejected:

	Submit ──► ┌───────────────────────────┐
	           │        FIFO queue         │
	           │  (mutex-guarded, bounded  │
	           │   or unbounded)           │
	           └──────┬──────┬──────┬──────┘
	                  │      │      │
	                  ▼      ▼      ▼
	            ┌────────┐ ┌────────┐ ┌────────┐
	            │worker 0│ │worker 1│ │worker N│
	            └───┬────┘ └───┬────┘ └───┬────┘
	                │          │          │
	                ▼          ▼          ▼
	        tracker.Start ► retry.Do(runner) ► terminal state
	                │
	                ▼
	         notifier goroutine ──► events hub

Every operation runs the same pipeline: the progress tracker starts, an
operation_started notification is queued, the retry engine drives the
runner to success or exhaustion, the tracker transitions to its
terminal state, and a terminal notification follows. Workers hand
notifications to a dedicated notifier goroutine so slow notification
channels never stall the pool.

# Operation Lifecycle

Operations move queued -> running -> {completed, failed, cancelled}.
Terminal states are absorbing. The executor decides the terminal state
from the retry outcome:

  - runner success: completed
  - execution ceiling expired: failed, with a timeout error
  - handle cancelled or executor shutting down: cancelled
  - anything else: failed, with the last runner error

Cancellation is cooperative. Handle.Cancel cancels the operation's
context; runners must observe it at their suspension points. A queued
operation that is cancelled terminates without its runner ever being
invoked.

# Usage

Submitting a single operation:

	e := executor.New(&executor.Config{Workers: 5}, hub)

	h, err := e.Submit(ctx, &types.Operation{
		Name: "sync documents",
		Kind: types.OperationKindSync,
	}, func(ctx context.Context, tracker *progress.Tracker) (interface{}, error) {
		return runSync(ctx, tracker)
	}, nil)
	if err != nil {
		return err
	}

	value, err := h.Await(ctx)

Custom retry and progress configuration per submission:

	h, err := e.Submit(ctx, op, runner, &executor.SubmitOptions{
		Retry: &retry.Policy{
			MaxAttempts: 5,
			BaseDelay:   2 * time.Second,
			Strategy:    retry.StrategyExponential,
			Multiplier:  2,
			Jitter:      retry.JitterFull,
		},
		Progress: &progress.Config{TotalItems: 120, TrackRates: true},
	})

Running a batch with its own concurrency bound:

	results, err := e.ExecuteBatch(ctx, items, func(ctx context.Context, item interface{}) (interface{}, error) {
		return transferOne(ctx, item)
	}, &executor.BatchOptions{Concurrency: 3, OperationName: "initial import"})

Batches run on their own goroutines so a large batch cannot starve
individually submitted operations, and item failures never abort the
rest of the batch.

# Queue Policy

The queue is unbounded by default. With QueueSize set, Submit blocks
until space frees, or fails immediately with ErrQueueFull when
RejectWhenFull is enabled. The admission context passed to Submit only
gates this wait; it does not become the operation's context.

# Statistics

Stats returns lifetime counters plus duration figures (min, avg, max,
p95, p99) over a rolling window of the most recent thousand completed
and failed operations. Statistics are scoped to the executor instance.
Counters for finished operations, retry attempts, and durations are
also exported as Prometheus metrics.

# Shutdown

Shutdown rejects new work, cancels queued and in-flight operations,
and waits for workers to drain until the caller's context expires.
Queued operations terminate as cancelled without running. The service
host calls Shutdown with its grace period during stop.
*/
package executor
