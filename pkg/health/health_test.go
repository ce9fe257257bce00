package health

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
)

// fixedProbe returns the same status on every check
func fixedProbe(status Status) Probe {
	return ProbeFunc(func(context.Context) Result {
		return Result{Status: status}
	})
}

// scriptedProbe walks a status sequence, repeating the last entry
type scriptedProbe struct {
	mu     sync.Mutex
	script []Status
	calls  int
}

func (p *scriptedProbe) Check(context.Context) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	p.calls++
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	return Result{Status: p.script[idx]}
}

// TestAggregatorZeroComponents tests that an empty registry is healthy
func TestAggregatorZeroComponents(t *testing.T) {
	agg := NewAggregator(nil, nil)

	report := agg.Check(context.Background())

	assert.Equal(t, OverallHealthy, report.Overall)
	assert.Empty(t, report.Components)
	assert.Equal(t, 1, agg.Metrics().TotalChecks)
}

// TestAggregatorOverallRule tests the ordered aggregation rule
func TestAggregatorOverallRule(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]struct {
			critical bool
			status   Status
		}
		want Overall
	}{
		{
			name: "all up is healthy",
			components: map[string]struct {
				critical bool
				status   Status
			}{
				"storage": {true, StatusUp},
				"network": {false, StatusUp},
			},
			want: OverallHealthy,
		},
		{
			name: "critical down is unhealthy",
			components: map[string]struct {
				critical bool
				status   Status
			}{
				"storage": {true, StatusDown},
				"network": {false, StatusUp},
			},
			want: OverallUnhealthy,
		},
		{
			name: "non-critical down is degraded",
			components: map[string]struct {
				critical bool
				status   Status
			}{
				"storage": {true, StatusUp},
				"network": {false, StatusDown},
			},
			want: OverallDegraded,
		},
		{
			name: "any degraded is degraded",
			components: map[string]struct {
				critical bool
				status   Status
			}{
				"storage": {true, StatusUp},
				"network": {false, StatusDegraded},
			},
			want: OverallDegraded,
		},
		{
			name: "critical down wins over degraded",
			components: map[string]struct {
				critical bool
				status   Status
			}{
				"storage": {true, StatusDown},
				"network": {false, StatusDegraded},
			},
			want: OverallUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(nil, nil)
			for name, c := range tt.components {
				require.NoError(t, agg.Register(name, c.critical, fixedProbe(c.status), 0))
			}

			report := agg.Check(context.Background())
			assert.Equal(t, tt.want, report.Overall)
		})
	}
}

// TestAggregatorReportContents tests errors and warnings aggregation
func TestAggregatorReportContents(t *testing.T) {
	agg := NewAggregator(nil, nil)
	require.NoError(t, agg.Register("storage", true, ProbeFunc(func(context.Context) Result {
		return Result{Status: StatusDown, Message: "mount lost"}
	}), 0))
	require.NoError(t, agg.Register("bandwidth", false, ProbeFunc(func(context.Context) Result {
		return Result{Status: StatusDegraded, Message: "saturated"}
	}), 0))

	report := agg.Check(context.Background())

	require.Len(t, report.Components, 2)
	assert.Equal(t, "storage", report.Components[0].Name)
	assert.True(t, report.Components[0].Critical)
	assert.False(t, report.Components[0].LastChecked.IsZero())

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "storage")
	assert.Contains(t, report.Errors[0], "mount lost")

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "bandwidth")

	assert.Greater(t, report.Uptime, time.Duration(0))
	assert.False(t, report.GeneratedAt.IsZero())
}

// TestAggregatorProbeTimeout tests that a slow probe yields down without
// stalling the round
func TestAggregatorProbeTimeout(t *testing.T) {
	agg := NewAggregator(nil, nil)
	require.NoError(t, agg.Register("slow", false, ProbeFunc(func(context.Context) Result {
		time.Sleep(500 * time.Millisecond)
		return Result{Status: StatusUp}
	}), 30*time.Millisecond))
	require.NoError(t, agg.Register("fast", false, fixedProbe(StatusUp), 0))

	start := time.Now()
	report := agg.Check(context.Background())

	assert.Less(t, time.Since(start), 300*time.Millisecond)
	require.Len(t, report.Components, 2)
	assert.Equal(t, StatusDown, report.Components[0].Status)
	assert.Equal(t, "timeout", report.Components[0].Error)
	assert.Equal(t, StatusUp, report.Components[1].Status)
	assert.Equal(t, OverallDegraded, report.Overall)
}

// TestAggregatorProbePanic tests panic isolation
func TestAggregatorProbePanic(t *testing.T) {
	agg := NewAggregator(nil, nil)
	require.NoError(t, agg.Register("flaky", false, ProbeFunc(func(context.Context) Result {
		panic("boom")
	}), 0))
	require.NoError(t, agg.Register("steady", false, fixedProbe(StatusUp), 0))

	report := agg.Check(context.Background())

	assert.Equal(t, StatusDown, report.Components[0].Status)
	assert.Contains(t, report.Components[0].Error, "boom")
	assert.Equal(t, StatusUp, report.Components[1].Status)
}

// TestAggregatorProbesRunConcurrently tests that a round is bounded by
// the slowest probe, not the sum
func TestAggregatorProbesRunConcurrently(t *testing.T) {
	agg := NewAggregator(nil, nil)
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, agg.Register(name, false, ProbeFunc(func(context.Context) Result {
			time.Sleep(80 * time.Millisecond)
			return Result{Status: StatusUp}
		}), 0))
	}

	start := time.Now()
	report := agg.Check(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, OverallHealthy, report.Overall)
	assert.Less(t, elapsed, 200*time.Millisecond, "probes should run concurrently")
}

// TestAggregatorStatusChangeNotification tests the notification emitted
// when a critical component goes down
func TestAggregatorStatusChangeNotification(t *testing.T) {
	hub := events.NewHub(nil)
	defer hub.Close()

	agg := NewAggregator(hub, nil)
	probe := &scriptedProbe{script: []Status{StatusUp, StatusUp, StatusDown}}
	require.NoError(t, agg.Register("storage", true, probe, 0))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		agg.Check(ctx)
	}

	changes := hub.RecentFiltered(events.Filter{Types: []events.EventType{events.EventHealthStatusChanged}})
	require.Len(t, changes, 1, "expected exactly one status change event")

	change := changes[0]
	assert.Equal(t, events.LevelError, change.Level)
	assert.Equal(t, "health", change.Source)
	assert.Contains(t, change.Message, "storage")
	assert.Equal(t, []string{"storage"}, change.Data["components"])
	assert.Equal(t, "healthy", change.Data["previous"])
	assert.Equal(t, "unhealthy", change.Data["current"])
}

// TestAggregatorRecoveryNotification tests the info-level event on
// recovery and warn-level on degradation
func TestAggregatorRecoveryNotification(t *testing.T) {
	hub := events.NewHub(nil)
	defer hub.Close()

	agg := NewAggregator(hub, nil)
	probe := &scriptedProbe{script: []Status{StatusUp, StatusDegraded, StatusUp}}
	require.NoError(t, agg.Register("network", false, probe, 0))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		agg.Check(ctx)
	}

	changes := hub.RecentFiltered(events.Filter{Types: []events.EventType{events.EventHealthStatusChanged}})
	require.Len(t, changes, 2)

	// Newest first: recovery then degradation
	assert.Equal(t, events.LevelInfo, changes[0].Level)
	assert.Equal(t, "healthy", changes[0].Data["current"])
	assert.Equal(t, events.LevelWarn, changes[1].Level)
	assert.Equal(t, "degraded", changes[1].Data["current"])
}

// TestAggregatorFirstCheckDoesNotNotify tests that the initial round
// sets the baseline silently
func TestAggregatorFirstCheckDoesNotNotify(t *testing.T) {
	hub := events.NewHub(nil)
	defer hub.Close()

	agg := NewAggregator(hub, nil)
	require.NoError(t, agg.Register("storage", true, fixedProbe(StatusUp), 0))

	agg.Check(context.Background())

	changes := hub.RecentFiltered(events.Filter{Types: []events.EventType{events.EventHealthStatusChanged}})
	assert.Empty(t, changes)
	assert.Equal(t, OverallHealthy, agg.CurrentStatus())
}

// TestAggregatorMetrics tests activity counters
func TestAggregatorMetrics(t *testing.T) {
	agg := NewAggregator(nil, nil)
	probe := &scriptedProbe{script: []Status{StatusUp, StatusUp, StatusDown}}
	require.NoError(t, agg.Register("storage", true, probe, 0))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		agg.Check(ctx)
	}

	m := agg.Metrics()
	assert.Equal(t, 3, m.TotalChecks)
	assert.Equal(t, 2, m.Healthy)
	assert.Equal(t, 1, m.Unhealthy)
	assert.Equal(t, 0, m.Degraded)
	assert.Equal(t, 1, m.ConsecutiveSameStatus)
	assert.False(t, m.LastStatusChange.IsZero())
}

// TestAggregatorUnregister tests probe removal
func TestAggregatorUnregister(t *testing.T) {
	agg := NewAggregator(nil, nil)
	require.NoError(t, agg.Register("temp", false, fixedProbe(StatusDown), 0))

	assert.True(t, agg.Unregister("temp"))
	assert.False(t, agg.Unregister("temp"))

	report := agg.Check(context.Background())
	assert.Equal(t, OverallHealthy, report.Overall)
	assert.Empty(t, agg.Components())
}

// TestAggregatorDuplicateRegister tests duplicate rejection
func TestAggregatorDuplicateRegister(t *testing.T) {
	agg := NewAggregator(nil, nil)
	require.NoError(t, agg.Register("storage", true, fixedProbe(StatusUp), 0))

	err := agg.Register("storage", false, fixedProbe(StatusUp), 0)
	require.Error(t, err)
	assert.True(t, errdefs.IsConfiguration(err))
}

// TestAggregatorLastReport tests report caching
func TestAggregatorLastReport(t *testing.T) {
	agg := NewAggregator(nil, nil)
	assert.Nil(t, agg.LastReport())
	assert.Equal(t, OverallUnknown, agg.CurrentStatus())

	agg.Check(context.Background())
	require.NotNil(t, agg.LastReport())
}

// TestAggregatorPeriodicChecks tests the Start/Stop loop
func TestAggregatorPeriodicChecks(t *testing.T) {
	var calls atomic.Int32
	agg := NewAggregator(nil, &Config{CheckInterval: 20 * time.Millisecond})
	require.NoError(t, agg.Register("counter", false, ProbeFunc(func(context.Context) Result {
		calls.Add(1)
		return Result{Status: StatusUp}
	}), 0))

	agg.Start(context.Background())
	time.Sleep(90 * time.Millisecond)
	agg.Stop()

	// Let an in-flight round drain before sampling
	time.Sleep(30 * time.Millisecond)
	settled := calls.Load()
	assert.GreaterOrEqual(t, settled, int32(3), "expected immediate check plus ticker rounds")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, calls.Load(), "no rounds after Stop")
}
