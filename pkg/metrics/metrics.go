package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Operation metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_operations_total",
			Help: "Total number of finished operations by kind and state",
		},
		[]string{"kind", "state"},
	)

	OperationsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncd_operations_by_state",
			Help: "Current number of operations by state",
		},
		[]string{"state"},
	)

	OperationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncd_operation_queue_depth",
			Help: "Number of operations waiting for a worker",
		},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_operation_duration_seconds",
			Help:    "Operation execution duration in seconds by kind",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900, 1800},
		},
		[]string{"kind"},
	)

	WorkersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncd_workers_busy",
			Help: "Number of workers currently executing an operation",
		},
	)

	// Retry metrics
	RetryAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_retry_attempts_total",
			Help: "Total number of retry attempts across all operations",
		},
	)

	RetriesExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_retries_exhausted_total",
			Help: "Total number of operations that exhausted their retry budget",
		},
	)

	// Notification metrics
	EventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_events_emitted_total",
			Help: "Total number of events emitted by type and level",
		},
		[]string{"type", "level"},
	)

	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_events_dropped_total",
			Help: "Total number of events evicted from the history buffer",
		},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_deliveries_total",
			Help: "Total number of channel deliveries by channel and state",
		},
		[]string{"channel", "state"},
	)

	ChannelsAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncd_channels_available",
			Help: "Number of notification channels currently available",
		},
	)

	// Health metrics
	ComponentHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncd_component_health",
			Help: "Component health (1 = up, 0.5 = degraded, 0 = down)",
		},
		[]string{"component"},
	)

	HealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_health_checks_total",
			Help: "Total number of health check rounds by overall status",
		},
		[]string{"status"},
	)

	HealthCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "syncd_health_check_duration_seconds",
			Help:    "Duration of a full health check round in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Scheduler metrics
	ScheduledRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_scheduled_runs_total",
			Help: "Total number of scheduled task invocations by task",
		},
		[]string{"task"},
	)

	ScheduledDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_scheduled_drops_total",
			Help: "Total number of scheduled invocations dropped because the previous run was still active",
		},
		[]string{"task"},
	)

	// Transfer metrics
	TransferBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_transfer_bytes_total",
			Help: "Total bytes transferred by content type and direction",
		},
		[]string{"content_type", "direction"},
	)

	TransferFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_transfer_files_total",
			Help: "Total files transferred by content type and result",
		},
		[]string{"content_type", "result"},
	)

	// Planner metrics
	PlansBuiltTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syncd_plans_built_total",
			Help: "Total number of transfer plans built",
		},
	)

	PlanWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_plan_warnings_total",
			Help: "Total number of plan warnings by reason",
		},
		[]string{"reason"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationsByState)
	prometheus.MustRegister(OperationQueueDepth)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(WorkersBusy)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(RetriesExhaustedTotal)
	prometheus.MustRegister(EventsEmittedTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(ChannelsAvailable)
	prometheus.MustRegister(ComponentHealth)
	prometheus.MustRegister(HealthChecksTotal)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(ScheduledRunsTotal)
	prometheus.MustRegister(ScheduledDropsTotal)
	prometheus.MustRegister(TransferBytesTotal)
	prometheus.MustRegister(TransferFilesTotal)
	prometheus.MustRegister(PlansBuiltTotal)
	prometheus.MustRegister(PlanWarningsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures a duration and reports it to a histogram
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in seconds on the given histogram
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time on a histogram vec with labels
func (t *Timer) ObserveDurationVec(vec *prometheus.HistogramVec, labels ...string) {
	vec.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
