package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
)

// Status is the health of a single component
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Overall is the aggregated health of the whole runtime
type Overall string

const (
	OverallHealthy   Overall = "healthy"
	OverallDegraded  Overall = "degraded"
	OverallUnhealthy Overall = "unhealthy"
	OverallUnknown   Overall = "unknown"
)

// Result is what a probe reports for its component
type Result struct {
	Status  Status
	Message string
	Details map[string]interface{}
}

// Probe checks one component. Probes must be side-effect free apart
// from the measurement itself and should honor ctx cancellation.
type Probe interface {
	Check(ctx context.Context) Result
}

// ProbeFunc adapts a plain function to the Probe interface
type ProbeFunc func(ctx context.Context) Result

// Check implements Probe
func (f ProbeFunc) Check(ctx context.Context) Result { return f(ctx) }

// ComponentReport is the outcome of one probe within one check round
type ComponentReport struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Critical    bool                   `json:"critical"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// Report is a full health snapshot
type Report struct {
	Overall     Overall           `json:"overall"`
	Components  []ComponentReport `json:"components"`
	Uptime      time.Duration     `json:"uptime"`
	GeneratedAt time.Time         `json:"generated_at"`
	Errors      []string          `json:"errors,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Metrics summarizes aggregator activity since construction
type Metrics struct {
	TotalChecks           int           `json:"total_checks"`
	Healthy               int           `json:"healthy"`
	Degraded              int           `json:"degraded"`
	Unhealthy             int           `json:"unhealthy"`
	MeanDuration          time.Duration `json:"mean_duration"`
	ConsecutiveSameStatus int           `json:"consecutive_same_status"`
	LastStatusChange      time.Time     `json:"last_status_change"`
}

// Config holds aggregator settings
type Config struct {
	// CheckInterval is the periodic check cadence. Default 5 minutes.
	CheckInterval time.Duration

	// ProbeTimeout bounds each probe unless the registration overrides
	// it. Default 5 seconds.
	ProbeTimeout time.Duration
}

// registration pairs a probe with its settings
type registration struct {
	name     string
	critical bool
	probe    Probe
	timeout  time.Duration
}

// Aggregator runs registered probes concurrently and derives an
// overall status, emitting a notification whenever it changes
type Aggregator struct {
	config *Config
	hub    *events.Hub

	mu         sync.RWMutex
	components map[string]*registration
	order      []string
	lastReport *Report
	overall    Overall

	totalChecks     int
	healthyRounds   int
	degradedRounds  int
	unhealthyRounds int
	durationSum     time.Duration
	consecutiveSame int
	lastChange      time.Time

	startedAt time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	running   bool
}

// NewAggregator creates a health aggregator. A nil config uses
// defaults. The hub may be nil, which disables status-change
// notifications.
func NewAggregator(hub *events.Hub, config *Config) *Aggregator {
	if config == nil {
		config = &Config{}
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Minute
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}

	return &Aggregator{
		config:     config,
		hub:        hub,
		components: make(map[string]*registration),
		overall:    OverallUnknown,
		startedAt:  time.Now(),
		stopCh:     make(chan struct{}),
	}
}

// Register adds a component probe. Name must be unique. A zero
// timeout inherits the aggregator default.
func (a *Aggregator) Register(name string, critical bool, probe Probe, timeout time.Duration) error {
	if name == "" {
		return errdefs.New(errdefs.ClassConfiguration, "health: component name is required")
	}
	if probe == nil {
		return errdefs.Newf(errdefs.ClassConfiguration, "health: probe for %q is nil", name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.components[name]; exists {
		return errdefs.Newf(errdefs.ClassConfiguration, "health: component %q already registered", name)
	}
	if timeout <= 0 {
		timeout = a.config.ProbeTimeout
	}

	a.components[name] = &registration{name: name, critical: critical, probe: probe, timeout: timeout}
	a.order = append(a.order, name)

	lg := log.WithComponent("health")
	lg.Debug().Str("component", name).Bool("critical", critical).Msg("Component registered")
	return nil
}

// Unregister removes a component probe by name
func (a *Aggregator) Unregister(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.components[name]; !exists {
		return false
	}
	delete(a.components, name)
	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	metrics.ComponentHealth.DeleteLabelValues(name)
	return true
}

// Components returns registered component names in registration order
func (a *Aggregator) Components() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Check runs every registered probe concurrently and returns the
// aggregated report. Probe failures and timeouts are recorded on
// their component and never abort the round.
func (a *Aggregator) Check(ctx context.Context) *Report {
	a.mu.RLock()
	regs := make([]*registration, 0, len(a.order))
	for _, name := range a.order {
		regs = append(regs, a.components[name])
	}
	a.mu.RUnlock()

	timer := metrics.NewTimer()
	reports := make([]ComponentReport, len(regs))

	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg *registration) {
			defer wg.Done()
			reports[i] = a.runProbe(ctx, reg)
		}(i, reg)
	}
	wg.Wait()

	report := a.aggregate(reports)

	elapsed := timer.Duration()
	metrics.HealthCheckDuration.Observe(elapsed.Seconds())
	metrics.HealthChecksTotal.WithLabelValues(string(report.Overall)).Inc()
	for _, c := range report.Components {
		metrics.ComponentHealth.WithLabelValues(c.Name).Set(statusGaugeValue(c.Status))
	}

	previous := a.record(report, elapsed)

	if previous != OverallUnknown && previous != report.Overall {
		a.notifyChange(ctx, previous, report)
	}

	return report
}

// runProbe executes one probe bounded by its timeout, converting
// panics and timeouts into down results
func (a *Aggregator) runProbe(ctx context.Context, reg *registration) ComponentReport {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	resultCh := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- Result{Status: StatusDown, Message: fmt.Sprintf("probe panic: %v", r)}
			}
		}()
		resultCh <- reg.probe.Check(probeCtx)
	}()

	report := ComponentReport{
		Name:        reg.name,
		Critical:    reg.critical,
		LastChecked: start,
	}

	select {
	case res := <-resultCh:
		report.Duration = time.Since(start)
		report.Status = res.Status
		report.Message = res.Message
		report.Details = res.Details
		if res.Status == "" {
			report.Status = StatusDown
			report.Error = "probe returned no status"
		}
		if res.Status == StatusDown && res.Message != "" {
			report.Error = res.Message
		}
	case <-probeCtx.Done():
		report.Duration = time.Since(start)
		report.Status = StatusDown
		if ctx.Err() != nil {
			report.Error = "canceled"
		} else {
			report.Error = "timeout"
		}
	}
	return report
}

// aggregate applies the overall status rule over component reports
func (a *Aggregator) aggregate(components []ComponentReport) *Report {
	overall := OverallHealthy
	var errs, warnings []string

	for _, c := range components {
		switch c.Status {
		case StatusDown:
			if c.Critical {
				overall = OverallUnhealthy
			} else if overall != OverallUnhealthy {
				overall = OverallDegraded
			}
			detail := c.Error
			if detail == "" {
				detail = c.Message
			}
			errs = append(errs, fmt.Sprintf("%s: %s", c.Name, detail))
		case StatusDegraded:
			if overall == OverallHealthy {
				overall = OverallDegraded
			}
			if c.Message != "" {
				warnings = append(warnings, fmt.Sprintf("%s: %s", c.Name, c.Message))
			} else {
				warnings = append(warnings, c.Name)
			}
		}
	}

	return &Report{
		Overall:     overall,
		Components:  components,
		Uptime:      time.Since(a.startedAt),
		GeneratedAt: time.Now(),
		Errors:      errs,
		Warnings:    warnings,
	}
}

// record stores the round outcome and returns the previous overall
func (a *Aggregator) record(report *Report, elapsed time.Duration) Overall {
	a.mu.Lock()
	defer a.mu.Unlock()

	previous := a.overall
	a.lastReport = report
	a.totalChecks++
	a.durationSum += elapsed

	switch report.Overall {
	case OverallHealthy:
		a.healthyRounds++
	case OverallDegraded:
		a.degradedRounds++
	case OverallUnhealthy:
		a.unhealthyRounds++
	}

	if report.Overall == previous {
		a.consecutiveSame++
	} else {
		a.consecutiveSame = 1
		if previous != OverallUnknown {
			a.lastChange = report.GeneratedAt
		}
	}
	a.overall = report.Overall
	return previous
}

// notifyChange emits the health_status_changed notification
func (a *Aggregator) notifyChange(ctx context.Context, previous Overall, report *Report) {
	level := events.LevelInfo
	switch report.Overall {
	case OverallDegraded:
		level = events.LevelWarn
	case OverallUnhealthy:
		level = events.LevelError
	}

	var failing []string
	for _, c := range report.Components {
		if c.Status != StatusUp {
			failing = append(failing, c.Name)
		}
	}
	sort.Strings(failing)

	message := fmt.Sprintf("health status changed from %s to %s", previous, report.Overall)
	if len(failing) > 0 {
		message = fmt.Sprintf("%s (affected: %s)", message, strings.Join(failing, ", "))
	}

	lg := log.WithComponent("health")
	lg.Info().
		Str("previous", string(previous)).
		Str("current", string(report.Overall)).
		Strs("affected", failing).
		Msg("Health status changed")

	if a.hub == nil {
		return
	}
	_, err := a.hub.Emit(ctx, events.EventHealthStatusChanged, message, &events.EmitOptions{
		Level:  level,
		Source: "health",
		Data: map[string]interface{}{
			"previous":   string(previous),
			"current":    string(report.Overall),
			"components": failing,
		},
	})
	if err != nil {
		lg := log.WithComponent("health")
		lg.Warn().Err(err).Msg("Failed to emit health change event")
	}
}

// LastReport returns the most recent report, or nil before the first
// check
func (a *Aggregator) LastReport() *Report {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastReport
}

// CurrentStatus returns the current overall status, unknown before
// the first check
func (a *Aggregator) CurrentStatus() Overall {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.overall
}

// Metrics returns aggregator activity counters
func (a *Aggregator) Metrics() Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	m := Metrics{
		TotalChecks:           a.totalChecks,
		Healthy:               a.healthyRounds,
		Degraded:              a.degradedRounds,
		Unhealthy:             a.unhealthyRounds,
		ConsecutiveSameStatus: a.consecutiveSame,
		LastStatusChange:      a.lastChange,
	}
	if a.totalChecks > 0 {
		m.MeanDuration = a.durationSum / time.Duration(a.totalChecks)
	}
	return m
}

// Start begins periodic checks. The first check runs immediately.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	go func() {
		a.Check(ctx)

		ticker := time.NewTicker(a.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Check(ctx)
			case <-a.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	lg := log.WithComponent("health")
	lg.Info().
		Dur("interval", a.config.CheckInterval).
		Msg("Health aggregator started")
}

// Stop halts periodic checks. Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// statusGaugeValue maps a component status onto the health gauge
func statusGaugeValue(s Status) float64 {
	switch s {
	case StatusUp:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}
