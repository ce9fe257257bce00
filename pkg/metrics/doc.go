/*
Package metrics provides Prometheus metrics collection and exposition for syncd.

The metrics package defines and registers all syncd metrics using the Prometheus
client library, providing observability into operation throughput, retry
behavior, notification delivery, component health, and transfer volume. Metrics
are exposed via HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │          Prometheus Registry               │           │
	│  │  - Global DefaultRegistry                  │           │
	│  │  - MustRegister at package init            │           │
	│  │  - Automatic Go runtime metrics            │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Metric Categories                │           │
	│  │                                            │           │
	│  │  Operations: Counts, durations, queue      │           │
	│  │  Retry: Attempts, exhausted budgets        │           │
	│  │  Notifications: Emits, deliveries, drops   │           │
	│  │  Health: Component status, check rounds    │           │
	│  │  Scheduler: Runs, dropped invocations      │           │
	│  │  Transfers: Bytes, files per content type  │           │
	│  │  Planner: Plans built, warnings            │           │
	│  │  API: Request count, duration              │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Collector                     │           │
	│  │  - Samples gauge state from a Source       │           │
	│  │  - 15s default interval                    │           │
	│  │  - Queue depth, busy workers, channels     │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          HTTP Metrics Endpoint             │           │
	│  │  - Path: /metrics                          │           │
	│  │  - Format: Prometheus text exposition      │           │
	│  │  - Handler: promhttp.Handler()             │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Automatic collection of Go runtime metrics
  - Thread-safe for concurrent updates

Collector:
  - Polls a Source for gauge-type runtime state
  - Samples immediately on Start, then on a ticker
  - Stop halts sampling without flushing
  - The service host implements Source

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Operation Metrics:

syncd_operations_total{kind, state}:
  - Type: Counter
  - Description: Finished operations by kind (sync/transfer/scan/...) and
    terminal state (completed/failed/cancelled/timed_out)

syncd_operations_by_state{state}:
  - Type: Gauge
  - Description: Current operations by lifecycle state

syncd_operation_queue_depth:
  - Type: Gauge
  - Description: Operations waiting for a worker

syncd_operation_duration_seconds{kind}:
  - Type: Histogram
  - Description: Wall-clock execution duration per operation kind
  - Buckets: 100ms to 30m, tuned for long-running transfers

syncd_workers_busy:
  - Type: Gauge
  - Description: Workers currently executing an operation

Retry Metrics:

syncd_retry_attempts_total:
  - Type: Counter
  - Description: Retry attempts across all operations

syncd_retries_exhausted_total:
  - Type: Counter
  - Description: Operations that used their full retry budget and failed

Notification Metrics:

syncd_events_emitted_total{type, level}:
  - Type: Counter
  - Description: Events emitted by event type and severity level

syncd_events_dropped_total:
  - Type: Counter
  - Description: Events evicted from the bounded history buffer

syncd_deliveries_total{channel, state}:
  - Type: Counter
  - Description: Channel delivery outcomes (delivered/failed)

syncd_channels_available:
  - Type: Gauge
  - Description: Notification channels reporting available

Health Metrics:

syncd_component_health{component}:
  - Type: Gauge
  - Description: 1 = up, 0.5 = degraded, 0 = down

syncd_health_checks_total{status}:
  - Type: Counter
  - Description: Full check rounds by resulting overall status

syncd_health_check_duration_seconds:
  - Type: Histogram
  - Description: Duration of a full concurrent check round

Scheduler Metrics:

syncd_scheduled_runs_total{task}:
  - Type: Counter
  - Description: Scheduled task invocations

syncd_scheduled_drops_total{task}:
  - Type: Counter
  - Description: Invocations skipped because the previous run was active

Transfer Metrics:

syncd_transfer_bytes_total{content_type, direction}:
  - Type: Counter
  - Description: Payload bytes moved per content type and direction

syncd_transfer_files_total{content_type, result}:
  - Type: Counter
  - Description: Files transferred by result (ok/failed/skipped)

Planner Metrics:

syncd_plans_built_total:
  - Type: Counter
  - Description: Transfer plans built

syncd_plan_warnings_total{reason}:
  - Type: Counter
  - Description: Plan warnings by reason (budget_exceeded/...)

API Metrics:

syncd_api_requests_total{method, status}:
  - Type: Counter
  - Description: API requests by method and HTTP status

syncd_api_request_duration_seconds{method}:
  - Type: Histogram
  - Description: API request duration

# Usage

Updating Counter and Gauge Metrics:

	import "github.com/vladzaharia/dangerprep-sub010/pkg/metrics"

	metrics.OperationsTotal.WithLabelValues("sync", "completed").Inc()
	metrics.OperationQueueDepth.Set(4)
	metrics.TransferBytesTotal.WithLabelValues("movies", "bisync").Add(1 << 20)

Recording Histogram Observations:

	// Direct observation
	metrics.HealthCheckDuration.Observe(0.125) // 125ms

	// Using Timer helper
	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDurationVec(metrics.OperationDuration, "transfer")

Running the Collector:

	collector := metrics.NewCollector(host, 15*time.Second)
	collector.Start()
	defer collector.Stop()

Exposing the Endpoint:

	http.Handle("/metrics", metrics.Handler())

# Integration Points

This package integrates with:

  - pkg/executor: Operation counts, durations, queue depth, worker gauges
  - pkg/retry: Attempt and exhaustion counters
  - pkg/events: Emission, delivery, and drop counters
  - pkg/health: Component status gauges and check round counters
  - pkg/scheduler: Run and drop counters
  - pkg/transfer: Byte and file counters
  - pkg/planner: Plan and warning counters
  - pkg/api: Request instrumentation and the /metrics mount
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration
  - Ensures metrics available before main()

Label Discipline:
  - Cardinality-bounded labels only (kind, state, channel, reason)
  - Content type names are operator-configured and small in number
  - Operation IDs and file names never appear as labels

Sampling Split:
  - Counters and histograms update at the call site as events happen
  - Gauges describing current state are sampled by the Collector
  - Keeps hot paths free of state aggregation

# Monitoring

Prometheus Queries (PromQL):

Operation Throughput:
  - Completion rate: rate(syncd_operations_total{state="completed"}[5m])
  - Failure rate: rate(syncd_operations_total{state="failed"}[5m])
  - p95 duration: histogram_quantile(0.95, syncd_operation_duration_seconds_bucket)

Delivery Health:
  - Failed deliveries: rate(syncd_deliveries_total{state="failed"}[5m])
  - Event drop rate: rate(syncd_events_dropped_total[5m])

Component Health:
  - Down components: syncd_component_health == 0
  - Degraded components: syncd_component_health == 0.5

Scheduler Pressure:
  - Drop ratio: rate(syncd_scheduled_drops_total[15m]) / rate(syncd_scheduled_runs_total[15m])

# See Also

  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
