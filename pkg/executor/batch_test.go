package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
)

func intItems(n int) []interface{} {
	items := make([]interface{}, n)
	for i := range items {
		items[i] = i + 1
	}
	return items
}

// TestExecuteBatch tests ordered results, the concurrency bound, and
// progress reporting
func TestExecuteBatch(t *testing.T) {
	e := newTestExecutor(t, &Config{Workers: 4}, nil)

	var cur, peak atomic.Int32
	runner := func(_ context.Context, item interface{}) (interface{}, error) {
		c := cur.Add(1)
		for {
			p := peak.Load()
			if c <= p || peak.CompareAndSwap(p, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		cur.Add(-1)
		return item.(int) * 2, nil
	}

	var mu sync.Mutex
	var snaps []progress.Snapshot
	onProgress := progress.ListenerFunc(func(s progress.Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	results, err := e.ExecuteBatch(context.Background(), intItems(10), runner, &BatchOptions{
		Concurrency:   3,
		OperationName: "double",
		OnProgress:    onProgress,
	})
	require.NoError(t, err)
	require.Len(t, results, 10)

	for i, r := range results {
		assert.True(t, r.Success, "item %d", i)
		assert.Equal(t, (i+1)*2, r.Value, "item %d", i)
		assert.Equal(t, 1, r.Attempts, "item %d", i)
		assert.Empty(t, r.Error, "item %d", i)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snaps)
	final := snaps[len(snaps)-1]
	assert.Equal(t, progress.StatusCompleted, final.Status)
	assert.EqualValues(t, 10, final.Metrics.CompletedItems)
	assert.InDelta(t, 100.0, final.ProgressPercent, 0.001)

	st := e.Stats()
	assert.EqualValues(t, 1, st.Submitted)
	assert.EqualValues(t, 1, st.Completed)
}

// TestExecuteBatchValidation tests rejected batch calls
func TestExecuteBatchValidation(t *testing.T) {
	e := newTestExecutor(t, nil, nil)

	_, err := e.ExecuteBatch(context.Background(), intItems(3), nil, nil)
	require.Error(t, err)
	assert.True(t, errdefs.IsConfiguration(err))
}

// TestExecuteBatchPartialFailure tests that item failures stay in
// their slot and never abort the rest
func TestExecuteBatchPartialFailure(t *testing.T) {
	e := newTestExecutor(t, nil, nil)

	runner := func(_ context.Context, item interface{}) (interface{}, error) {
		if item.(int)%2 == 1 {
			return nil, errdefs.Newf(errdefs.ClassPrecondition, "odd item %d", item)
		}
		return item, nil
	}

	results, err := e.ExecuteBatch(context.Background(), intItems(6), runner, &BatchOptions{
		OperationName: "evens-only",
	})
	require.NoError(t, err)
	require.Len(t, results, 6)

	for i, r := range results {
		if (i+1)%2 == 1 {
			assert.False(t, r.Success, "item %d", i)
			assert.Contains(t, r.Error, "odd item")
			assert.Equal(t, 1, r.Attempts, "preconditions must not retry")
		} else {
			assert.True(t, r.Success, "item %d", i)
			assert.Equal(t, i+1, r.Value)
		}
	}

	st := e.Stats()
	assert.EqualValues(t, 1, st.Failed)
}

// TestExecuteBatchItemRetries tests the per-item retry policy
func TestExecuteBatchItemRetries(t *testing.T) {
	e := newTestExecutor(t, nil, nil)

	var calls atomic.Int32
	runner := func(_ context.Context, item interface{}) (interface{}, error) {
		if calls.Add(1) == 1 {
			return nil, errdefs.New(errdefs.ClassTransient, "first call fails")
		}
		return item, nil
	}

	results, err := e.ExecuteBatch(context.Background(), intItems(1), runner, &BatchOptions{
		Retry: fastRetry(3),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 2, results[0].Attempts)
}

// TestExecuteBatchCancellation tests that cancelling the caller
// context stops in-flight items and skips the rest
func TestExecuteBatchCancellation(t *testing.T) {
	e := newTestExecutor(t, &Config{Workers: 2}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var entered atomic.Bool
	gate := make(chan struct{})
	runner := func(c context.Context, _ interface{}) (interface{}, error) {
		if entered.CompareAndSwap(false, true) {
			close(gate)
		}
		<-c.Done()
		return nil, c.Err()
	}

	type outcome struct {
		results []BatchResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := e.ExecuteBatch(ctx, intItems(6), runner, &BatchOptions{Concurrency: 2})
		done <- outcome{results, err}
	}()

	<-gate
	cancel()

	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.Len(t, out.results, 6)
		for i, r := range out.results {
			assert.False(t, r.Success, "item %d", i)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not return after cancellation")
	}
}

// TestExecuteBatchClosedExecutor tests rejection after shutdown
func TestExecuteBatchClosedExecutor(t *testing.T) {
	e := New(nil, nil)
	ctx, cancelSh := context.WithTimeout(context.Background(), time.Second)
	defer cancelSh()
	require.NoError(t, e.Shutdown(ctx))

	_, err := e.ExecuteBatch(context.Background(), intItems(2),
		func(_ context.Context, item interface{}) (interface{}, error) { return item, nil }, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrClosed)
}
