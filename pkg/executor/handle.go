package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/retry"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// Handle follows one submitted operation to its terminal state
type Handle struct {
	op      types.Operation
	tracker *progress.Tracker
	runner  Runner
	policy  retry.Policy
	timeout time.Duration

	ctx      context.Context
	cancelFn context.CancelFunc

	done chan struct{}

	mu         sync.Mutex
	state      types.OperationState
	value      interface{}
	err        error
	attempts   int
	queuedAt   time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// ID returns the operation id
func (h *Handle) ID() string {
	return h.op.ID
}

// Operation returns a copy of the frozen operation descriptor
func (h *Handle) Operation() types.Operation {
	return h.op
}

// State returns the operation's current lifecycle state
func (h *Handle) State() types.OperationState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Attempts returns how many times the runner was invoked. Zero until
// the operation reaches a terminal state.
func (h *Handle) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// Progress returns the operation's current progress snapshot
func (h *Handle) Progress() progress.Snapshot {
	return h.tracker.Snapshot()
}

// Cancel signals the operation to stop. Queued operations terminate
// as cancelled without running; in-flight runners see their context
// canceled at the next suspension point. Safe to call repeatedly.
func (h *Handle) Cancel() {
	h.cancelFn()
}

// Done returns a channel closed when the operation reaches a terminal
// state
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Await blocks until the operation reaches a terminal state and
// returns its value and error. ctx only abandons the wait; it does
// not cancel the operation.
func (h *Handle) Await(ctx context.Context) (interface{}, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.value, h.err
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to await operation %q: %w", h.op.ID, ctx.Err())
	}
}

func (h *Handle) markRunning() {
	h.mu.Lock()
	h.state = types.OperationStateRunning
	h.startedAt = time.Now()
	h.mu.Unlock()
}

func (h *Handle) finish(state types.OperationState, value interface{}, err error, attempts int) {
	h.mu.Lock()
	h.state = state
	h.value = value
	h.err = err
	h.attempts = attempts
	h.finishedAt = time.Now()
	h.mu.Unlock()
	h.cancelFn()
	close(h.done)
}

// noticeData builds the notification payload for lifecycle events.
// Zero attempts and duration are omitted, so start notices stay lean.
func (h *Handle) noticeData(attempts int, duration time.Duration) map[string]interface{} {
	data := map[string]interface{}{
		"operation_id": h.op.ID,
		"name":         h.op.Name,
		"kind":         string(h.op.Kind),
	}
	if attempts > 0 {
		data["attempts"] = attempts
	}
	if duration > 0 {
		data["duration_ms"] = duration.Milliseconds()
	}
	return data
}
