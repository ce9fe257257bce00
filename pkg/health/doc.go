/*
Package health provides component health aggregation for syncd.

Components register probes; the aggregator runs them concurrently on a
schedule, derives an overall status from the per-component results, and
emits a notification whenever the overall status changes. Built-in
probes cover HTTP endpoints, TCP reachability, and disk space.

# Architecture

	┌────────────────── HEALTH AGGREGATION ────────────────────┐
	│                                                          │
	│  Register(name, critical, probe, timeout?)               │
	│        │                                                 │
	│        ▼                                                 │
	│  ┌──────────────────────────────────────┐                │
	│  │            Aggregator                │                │
	│  │  - Component registry (ordered)      │                │
	│  │  - Periodic Check loop (default 5m)  │                │
	│  └───────┬──────────┬──────────┬────────┘                │
	│          │          │          │   concurrent, each      │
	│          ▼          ▼          ▼   bounded by timeout    │
	│      ┌───────┐  ┌───────┐  ┌───────┐                     │
	│      │ probe │  │ probe │  │ probe │  (default 5s)       │
	│      └───┬───┘  └───┬───┘  └───┬───┘                     │
	│          │          │          │                         │
	│          ▼          ▼          ▼                         │
	│      up/degraded/down per component                      │
	│          │                                               │
	│          ▼                                               │
	│  Overall rule (first match wins):                        │
	│    1. any critical down  → unhealthy                     │
	│    2. any down           → degraded                      │
	│    3. any degraded       → degraded                      │
	│    4. otherwise          → healthy                       │
	│          │                                               │
	│          ▼                                               │
	│  status changed? → health_status_changed notification    │
	│    healthy→info, degraded→warn, unhealthy→error          │
	└──────────────────────────────────────────────────────────┘

# Core Components

Aggregator:
  - Ordered component registry guarded by one mutex
  - Check runs every probe concurrently; a round is bounded by the
    slowest timeout, never the sum
  - Timed-out probes yield down with error "timeout"; panicking
    probes yield down with the panic message; neither aborts the round
  - Zero registered components aggregate to healthy
  - First check sets the baseline silently; later changes notify

Probes:
  - HTTPProbe: status-range check with optional latency threshold
  - TCPProbe: connection check for file stores and peers
  - DiskProbe: statfs-based free space check with warn/min thresholds
  - ProbeFunc adapts any function

Report:
  - Overall status plus per-component name, status, critical flag,
    last checked time, duration, message, error
  - Aggregated errors (down components) and warnings (degraded)
  - Uptime and generation timestamp

Metrics:
  - Total check rounds and per-status round counts
  - Mean round duration
  - Consecutive rounds at the current status, last change time

# Usage

Registering components:

	agg := health.NewAggregator(hub, &health.Config{
		CheckInterval: time.Minute,
	})

	_ = agg.Register("file-store", true, health.NewTCPProbe("nas.local:445"), 0)
	_ = agg.Register("content-disk", true, health.NewDiskProbe("/data", 1<<30, 10<<30), 0)
	_ = agg.Register("catalog-api", false,
		health.NewHTTPProbe("http://127.0.0.1:9000/health").WithDegradedAfter(time.Second), 0)

	_ = agg.Register("queue", false, health.ProbeFunc(func(ctx context.Context) health.Result {
		if executor.QueueDepth() > 100 {
			return health.Result{Status: health.StatusDegraded, Message: "queue backlog"}
		}
		return health.Result{Status: health.StatusUp}
	}), 0)

Running:

	agg.Start(ctx)
	defer agg.Stop()

	report := agg.Check(ctx) // on-demand round
	if report.Overall != health.OverallHealthy {
		for _, e := range report.Errors {
			fmt.Println(e)
		}
	}

# Integration Points

This package integrates with:

  - pkg/events: Emits health_status_changed on overall transitions
  - pkg/metrics: Component gauges, round counters, round duration
  - pkg/api: Serves the last report on the health endpoint
  - pkg/service: Host registers runtime probes and owns the lifecycle
  - golang.org/x/sys: statfs for the disk probe
*/
package health
