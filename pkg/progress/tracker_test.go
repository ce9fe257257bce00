package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records every snapshot it receives
type collector struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (c *collector) OnProgress(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

func (c *collector) all() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Snapshot, len(c.snaps))
	copy(out, c.snaps)
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

// TestTrackerLifecycle tests the basic start to complete flow
func TestTrackerLifecycle(t *testing.T) {
	tr := New("op-1", &Config{TotalItems: 10})
	assert.Equal(t, StatusNotStarted, tr.Status())

	tr.Start()
	assert.Equal(t, StatusInProgress, tr.Status())

	tr.Update(5, 0, "item-5")
	snap := tr.Snapshot()
	assert.Equal(t, "op-1", snap.OperationID)
	assert.Equal(t, int64(5), snap.Metrics.CompletedItems)
	assert.Equal(t, float64(50), snap.ProgressPercent)
	assert.Equal(t, "item-5", snap.CurrentItem)

	tr.Complete()
	snap = tr.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, float64(100), snap.ProgressPercent)
}

// TestTrackerMonotonePercent tests that the reported percent never rewinds
func TestTrackerMonotonePercent(t *testing.T) {
	tr := New("op-mono", &Config{TotalItems: 10})
	tr.Start()

	tr.Update(3, 0, "")
	assert.Equal(t, float64(30), tr.Snapshot().ProgressPercent)

	// A lower count must not pull the percent back
	tr.Update(2, 0, "")
	snap := tr.Snapshot()
	assert.Equal(t, int64(2), snap.Metrics.CompletedItems)
	assert.Equal(t, float64(30), snap.ProgressPercent)

	tr.Update(7, 0, "")
	assert.Equal(t, float64(70), tr.Snapshot().ProgressPercent)
}

// TestTrackerClamping tests input clamping against totals
func TestTrackerClamping(t *testing.T) {
	tr := New("op-clamp", &Config{TotalItems: 10, TotalBytes: 1000})
	tr.Start()

	tr.Update(25, 5000, "")
	snap := tr.Snapshot()
	assert.Equal(t, int64(10), snap.Metrics.CompletedItems)
	assert.Equal(t, int64(1000), snap.Metrics.ProcessedBytes)
	assert.Equal(t, float64(100), snap.ProgressPercent)

	tr2 := New("op-neg", &Config{TotalItems: 10})
	tr2.Start()
	tr2.Update(-5, -100, "")
	snap2 := tr2.Snapshot()
	assert.Equal(t, int64(0), snap2.Metrics.CompletedItems)
	assert.Equal(t, int64(0), snap2.Metrics.ProcessedBytes)
}

// TestTrackerPauseIgnoresUpdates tests that paused trackers drop updates
// without emitting
func TestTrackerPauseIgnoresUpdates(t *testing.T) {
	c := &collector{}
	tr := New("op-pause", &Config{TotalItems: 10})
	tr.AddListener(c)

	tr.Start()
	tr.Update(3, 0, "")
	before := c.count()

	tr.Pause()
	assert.Equal(t, StatusPaused, tr.Status())
	pauseEmits := c.count() - before // the pause transition itself emits

	tr.Update(9, 0, "")
	tr.Update(10, 0, "")
	assert.Equal(t, before+pauseEmits, c.count())
	assert.Equal(t, int64(3), tr.Snapshot().Metrics.CompletedItems)

	tr.Resume()
	tr.Update(5, 0, "")
	assert.Equal(t, int64(5), tr.Snapshot().Metrics.CompletedItems)
}

// TestTrackerPauseResumeContinuity tests that pause then resume yields
// the same future snapshots as an uninterrupted run
func TestTrackerPauseResumeContinuity(t *testing.T) {
	run := func(interrupt bool) []float64 {
		tr := New("op-cont", &Config{TotalItems: 10})
		tr.Start()
		tr.Update(2, 0, "")
		if interrupt {
			tr.Pause()
			tr.Resume()
		}
		tr.Update(4, 0, "")
		tr.Update(8, 0, "")
		var out []float64
		out = append(out, tr.Snapshot().ProgressPercent)
		tr.Complete()
		out = append(out, tr.Snapshot().ProgressPercent)
		return out
	}

	assert.Equal(t, run(false), run(true))
}

// TestTrackerTerminalAbsorbing tests that terminal states reject all
// further transitions and updates
func TestTrackerTerminalAbsorbing(t *testing.T) {
	tests := []struct {
		name     string
		finish   func(*Tracker)
		expected Status
	}{
		{name: "completed stays completed", finish: func(tr *Tracker) { tr.Complete() }, expected: StatusCompleted},
		{name: "failed stays failed", finish: func(tr *Tracker) { tr.Fail(errors.New("boom")) }, expected: StatusFailed},
		{name: "cancelled stays cancelled", finish: func(tr *Tracker) { tr.Cancel() }, expected: StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New("op-term", &Config{TotalItems: 4})
			tr.Start()
			tr.Update(1, 0, "")
			tt.finish(tr)

			tr.Update(4, 0, "")
			tr.Complete()
			tr.Cancel()
			tr.Fail(errors.New("later"))

			snap := tr.Snapshot()
			assert.Equal(t, tt.expected, snap.Status)
			assert.Equal(t, int64(1), snap.Metrics.CompletedItems)
		})
	}
}

// TestTrackerFailMessage tests that failure captures the error text
func TestTrackerFailMessage(t *testing.T) {
	tr := New("op-fail", nil)
	tr.Start()
	tr.Fail(errors.New("checksum mismatch on item 7"))

	snap := tr.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "checksum mismatch on item 7", snap.Message)
}

// TestTrackerPhaseAggregation tests weighted phase percent derivation
func TestTrackerPhaseAggregation(t *testing.T) {
	tr := New("op-phase", &Config{
		Phases: []Phase{
			{ID: "scan", Name: "Scanning", Weight: 1},
			{ID: "copy", Name: "Copying", Weight: 3},
		},
	})
	tr.Start()

	tr.SetPhase("scan")
	tr.UpdatePhaseProgress("scan", 100)
	// scan done: (100*1 + 0*3) / 4 = 25
	assert.Equal(t, float64(25), tr.Snapshot().ProgressPercent)

	tr.SetPhase("copy")
	tr.UpdatePhaseProgress("copy", 50)
	// (100*1 + 50*3) / 4 = 62.5
	assert.Equal(t, 62.5, tr.Snapshot().ProgressPercent)

	snap := tr.Snapshot()
	require.Len(t, snap.Phases, 2)
	assert.Equal(t, StatusCompleted, snap.Phases[0].Status)
	assert.Equal(t, StatusInProgress, snap.Phases[1].Status)
	assert.Equal(t, "copy", snap.CurrentPhase)
}

// TestTrackerItemsWinOverPhases tests precedence when both are configured
func TestTrackerItemsWinOverPhases(t *testing.T) {
	tr := New("op-both", &Config{
		TotalItems: 10,
		Phases:     []Phase{{ID: "only", Name: "Only", Weight: 1}},
	})
	tr.Start()
	tr.SetPhase("only")
	tr.UpdatePhaseProgress("only", 90)

	// Item totals are configured, so the phase percent never drives
	// the overall number
	assert.Equal(t, float64(0), tr.Snapshot().ProgressPercent)

	tr.Update(2, 0, "")
	assert.Equal(t, float64(20), tr.Snapshot().ProgressPercent)
}

// TestTrackerPhaseClamping tests phase percent clamping
func TestTrackerPhaseClamping(t *testing.T) {
	tr := New("op-phase-clamp", &Config{
		Phases: []Phase{{ID: "p", Name: "P", Weight: 2}},
	})
	tr.Start()

	tr.UpdatePhaseProgress("p", 150)
	snap := tr.Snapshot()
	assert.Equal(t, float64(100), snap.Phases[0].Progress)
	assert.Equal(t, StatusCompleted, snap.Phases[0].Status)

	tr.UpdatePhaseProgress("missing", 50) // logged, dropped
	assert.Equal(t, float64(100), tr.Snapshot().ProgressPercent)
}

// TestTrackerZeroTotalsCompletes tests the indeterminate operation boundary
func TestTrackerZeroTotalsCompletes(t *testing.T) {
	tr := New("op-zero", nil)
	tr.Start()
	assert.Equal(t, float64(0), tr.Snapshot().ProgressPercent)

	tr.Complete()
	snap := tr.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, float64(100), snap.ProgressPercent)
}

// TestTrackerBytesOnlyPercent tests byte-based percent when items are unknown
func TestTrackerBytesOnlyPercent(t *testing.T) {
	tr := New("op-bytes", &Config{TotalBytes: 1000})
	tr.Start()
	tr.Update(0, 250, "")
	assert.Equal(t, float64(25), tr.Snapshot().ProgressPercent)
	tr.Update(0, 750, "")
	assert.Equal(t, float64(75), tr.Snapshot().ProgressPercent)
}

// TestTrackerListenerOrder tests sequential delivery in registration order
func TestTrackerListenerOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	mk := func(name string) Listener {
		return ListenerFunc(func(s Snapshot) {
			mu.Lock()
			seen = append(seen, name)
			mu.Unlock()
		})
	}

	tr := New("op-order", &Config{TotalItems: 2})
	tr.AddListener(mk("a"))
	tr.AddListener(mk("b"))
	tr.AddListener(mk("c"))

	tr.Start()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

// TestTrackerListenerPanicIsolated tests that a panicking listener does
// not abort delivery to the others
func TestTrackerListenerPanicIsolated(t *testing.T) {
	c := &collector{}
	tr := New("op-panic", &Config{TotalItems: 2})
	tr.AddListener(ListenerFunc(func(s Snapshot) {
		panic("listener bug")
	}))
	tr.AddListener(c)

	tr.Start()
	tr.Update(1, 0, "")

	assert.Equal(t, 2, c.count())
}

// TestTrackerRemoveListener tests that removed listeners stop receiving
func TestTrackerRemoveListener(t *testing.T) {
	c := &collector{}
	tr := New("op-remove", &Config{TotalItems: 5})
	id := tr.AddListener(c)

	tr.Start()
	assert.Equal(t, 1, c.count())

	tr.RemoveListener(id)
	tr.Update(1, 0, "")
	tr.Complete()
	assert.Equal(t, 1, c.count())
}

// TestTrackerPeriodicEmission tests interval-driven listener invocation
func TestTrackerPeriodicEmission(t *testing.T) {
	c := &collector{}
	tr := New("op-tick", &Config{
		TotalItems:     100,
		UpdateInterval: 10 * time.Millisecond,
	})
	tr.AddListener(c)

	tr.Start()
	time.Sleep(60 * time.Millisecond)
	tr.Complete()

	// Start + at least a few ticks + complete
	assert.GreaterOrEqual(t, c.count(), 4)

	// No further ticks after the terminal transition
	settled := c.count()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, settled, c.count())
}

// TestTrackerRates tests average rate and ETA derivation
func TestTrackerRates(t *testing.T) {
	tr := New("op-rates", &Config{
		TotalItems: 100,
		TrackRates: true,
		TrackETA:   true,
	})
	tr.Start()

	time.Sleep(50 * time.Millisecond)
	tr.Update(50, 0, "")

	m := tr.Snapshot().Metrics
	assert.Greater(t, m.AverageRate, float64(0))
	assert.Greater(t, m.ETASeconds, float64(0))
	assert.Greater(t, m.ElapsedSeconds, float64(0))

	// average_rate * eta covers the remaining items
	assert.InDelta(t, float64(50), m.AverageRate*m.ETASeconds, 1)
}

// TestTrackerSnapshotIsolation tests that snapshots are value copies
func TestTrackerSnapshotIsolation(t *testing.T) {
	tr := New("op-iso", &Config{
		TotalItems: 10,
		Phases:     []Phase{{ID: "p", Name: "P", Weight: 1}},
	})
	tr.Start()
	tr.Update(5, 0, "item")

	snap := tr.Snapshot()
	snap.Metrics.CompletedItems = 999
	snap.Phases[0].Progress = 77

	fresh := tr.Snapshot()
	assert.Equal(t, int64(5), fresh.Metrics.CompletedItems)
	assert.Equal(t, float64(0), fresh.Phases[0].Progress)
}

// TestTrackerUpdateBeforeStart tests that early updates are dropped
func TestTrackerUpdateBeforeStart(t *testing.T) {
	c := &collector{}
	tr := New("op-early", &Config{TotalItems: 5})
	tr.AddListener(c)

	tr.Update(3, 0, "")
	assert.Equal(t, 0, c.count())
	assert.Equal(t, int64(0), tr.Snapshot().Metrics.CompletedItems)
}
