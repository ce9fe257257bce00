package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/retry"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"

	"golang.org/x/sync/errgroup"
)

// BatchRunner processes one batch item
type BatchRunner func(ctx context.Context, item interface{}) (interface{}, error)

// BatchOptions customizes a batch execution
type BatchOptions struct {
	// Concurrency bounds how many items run at once. Zero means the
	// executor's worker count.
	Concurrency int

	// OperationName labels the batch in logs and notifications.
	// Empty means "batch".
	OperationName string

	// OnProgress receives tracker snapshots as items finish
	OnProgress progress.Listener

	// Retry overrides the executor's default per-item retry policy
	Retry *retry.Policy
}

// BatchResult is the outcome of one batch item
type BatchResult struct {
	Success  bool          `json:"success"`
	Value    interface{}   `json:"value,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// ExecuteBatch runs one operation per item, bounded by the configured
// concurrency, and returns per-item results in input order. Item
// failures are recorded in their slot and never abort the rest of the
// batch; the returned error is non-nil only when the batch itself
// could not run. The call blocks until every item finishes.
//
// The batch runs on its own goroutines rather than the worker pool,
// so a large batch cannot starve individually submitted operations.
func (e *Executor) ExecuteBatch(ctx context.Context, items []interface{}, runner BatchRunner, opts *BatchOptions) ([]BatchResult, error) {
	if runner == nil {
		return nil, errdefs.New(errdefs.ClassConfiguration, "executor: batch runner is required")
	}
	if opts == nil {
		opts = &BatchOptions{}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = e.config.Workers
	}
	name := opts.OperationName
	if name == "" {
		name = "batch"
	}
	policy := *e.config.DefaultRetry
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("failed to run batch %q: %w", name, err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("failed to run batch %q: %w", name, errdefs.ErrClosed)
	}
	e.batchWg.Add(1)
	e.stats.recordSubmit()
	e.mu.Unlock()
	defer e.batchWg.Done()

	batchID := uuid.New().String()
	tracker := progress.New(batchID, &progress.Config{TotalItems: int64(len(items))})
	if opts.OnProgress != nil {
		tracker.AddListener(opts.OnProgress)
	}

	// Executor shutdown cancels the batch alongside pool operations
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.baseCtx.Done():
			cancel()
		case <-batchCtx.Done():
		}
	}()

	// Notices are read by the notifier goroutine, so each gets its own
	// payload map
	batchData := func() map[string]interface{} {
		return map[string]interface{}{
			"operation_id": batchID,
			"name":         name,
			"kind":         string(types.OperationKindCustom),
			"items":        len(items),
		}
	}

	tracker.Start()
	e.notify(notice{
		typ:   events.EventOperationStarted,
		level: events.LevelInfo,
		msg:   fmt.Sprintf("batch %s started with %d items", name, len(items)),
		data:  batchData(),
	})

	timer := metrics.NewTimer()
	results := make([]BatchResult, len(items))
	var finished atomic.Int64

	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(concurrency)
	for i := range items {
		i := i
		item := items[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = BatchResult{Err: fmt.Errorf("batch item skipped: %w", errdefs.ErrCanceled)}
				results[i].Error = results[i].Err.Error()
				return nil
			}

			itemCtx, itemCancel := context.WithTimeout(gctx, e.config.DefaultTimeout)
			defer itemCancel()

			itemStart := time.Now()
			res, err := retry.Do(itemCtx, policy, func(c context.Context) (interface{}, error) {
				return runner(c, item)
			})

			r := BatchResult{
				Success:  err == nil,
				Err:      err,
				Duration: time.Since(itemStart),
			}
			if res != nil {
				r.Attempts = res.Attempts
				if err == nil {
					r.Value = res.Value
				}
			}
			if err != nil {
				r.Error = err.Error()
			}
			results[i] = r

			tracker.Update(finished.Add(1), 0, "")
			return nil
		})
	}
	// Goroutines never return errors, so this cannot fail
	_ = g.Wait()
	duration := timer.Duration()

	failures := 0
	for _, r := range results {
		if !r.Success {
			failures++
		}
	}
	data := batchData()
	data["duration_ms"] = duration.Milliseconds()
	data["failures"] = failures

	var state types.OperationState
	switch {
	case batchCtx.Err() != nil:
		state = types.OperationStateCancelled
		tracker.Cancel()
		e.notify(notice{
			typ:   events.EventOperationCancelled,
			level: events.LevelWarn,
			msg:   fmt.Sprintf("batch %s cancelled after %d of %d items", name, finished.Load(), len(items)),
			data:  data,
		})
	case failures > 0:
		state = types.OperationStateFailed
		err := fmt.Errorf("%d of %d batch items failed", failures, len(items))
		tracker.Fail(err)
		e.notify(notice{
			typ:   events.EventOperationFailed,
			level: events.LevelError,
			msg:   fmt.Sprintf("batch %s failed: %v", name, err),
			err:   err,
			data:  data,
		})
	default:
		state = types.OperationStateCompleted
		tracker.Complete()
		e.notify(notice{
			typ:   events.EventOperationCompleted,
			level: events.LevelInfo,
			msg:   fmt.Sprintf("batch %s completed %d items", name, len(items)),
			data:  data,
		})
	}

	metrics.OperationsTotal.WithLabelValues(string(types.OperationKindCustom), string(state)).Inc()
	timer.ObserveDurationVec(metrics.OperationDuration, string(types.OperationKindCustom))
	e.stats.recordTerminal(state, duration)

	e.logger.Debug().
		Str("operation_id", batchID).
		Str("name", name).
		Int("items", len(items)).
		Int("failures", failures).
		Dur("duration", duration).
		Msg("Batch finished")

	return results, nil
}
