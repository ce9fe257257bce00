package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/executor"
	"github.com/vladzaharia/dangerprep-sub010/pkg/health"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/scheduler"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// Source is the read-only view of the runtime the server exposes.
// The service host implements it; nothing here mutates state.
type Source interface {
	State() types.ServiceState
	HealthReport(ctx context.Context) *health.Report
	RecentEvents(filter events.Filter) []*events.Event
	TaskStatuses() []scheduler.TaskStatus
	ExecutorStats() executor.Stats
	OperationProgress(id string) (progress.Snapshot, error)
}

// Server exposes runtime observability over HTTP. Every endpoint is
// GET; nothing mutates state through this surface.
type Server struct {
	source Source
	server *http.Server
	logger zerolog.Logger
	addr   string
}

// NewServer creates an API server bound to addr once started
func NewServer(source Source, addr string) *Server {
	s := &Server{
		source: source,
		logger: log.WithComponent("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/tasks", s.handleTasks)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/progress/", s.handleProgress)
	mux.Handle("/metrics", metrics.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.instrument(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background. A failed
// bind reports immediately; serve errors after that are logged.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.addr = lis.Addr().String()

	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server stopped")
		}
	}()

	s.logger.Info().Str("addr", s.addr).Msg("API listening")
	return nil
}

// Addr returns the bound address after Start
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown drains in-flight requests within ctx
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the instrumented handler for embedding in tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// statusRecorder captures the response code for instrumentation
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts and times every request
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireGet rejects anything but GET
func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// handleHealth serves the aggregated health report. Unhealthy maps to
// 503 so load balancers and probes act on the body-free status alone.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	report := s.source.HealthReport(r.Context())
	status := http.StatusOK
	if report.Overall == health.OverallUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// ReadyResponse reports whether the host accepts work
type ReadyResponse struct {
	Status    string             `json:"status"`
	State     types.ServiceState `json:"state"`
	Timestamp time.Time          `json:"timestamp"`
}

// handleReady is the readiness check: 200 only while the host runs
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	state := s.source.State()
	resp := ReadyResponse{
		Status:    "ready",
		State:     state,
		Timestamp: time.Now(),
	}
	status := http.StatusOK
	if state != types.ServiceStateRunning {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleEvents serves recent events. Query parameters: type (repeat),
// level (repeat), min_level, source (repeat), since (RFC3339), limit.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	filter, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recent := s.source.RecentEvents(filter)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": recent,
		"count":  len(recent),
	})
}

func filterFromQuery(r *http.Request) (events.Filter, error) {
	q := r.URL.Query()
	filter := events.Filter{
		MinLevel: events.Level(q.Get("min_level")),
	}

	for _, t := range q["type"] {
		filter.Types = append(filter.Types, events.EventType(t))
	}
	for _, l := range q["level"] {
		filter.Levels = append(filter.Levels, events.Level(l))
	}
	filter.Sources = q["source"]

	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return events.Filter{}, fmt.Errorf("invalid since timestamp %q", since)
		}
		filter.Since = ts
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return events.Filter{}, fmt.Errorf("invalid limit %q", limit)
		}
		filter.Limit = n
	}
	return filter, nil
}

// handleTasks serves scheduled task statuses
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	tasks := s.source.TaskStatuses()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// handleStats serves executor statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.source.ExecutorStats())
}

// handleProgress serves the live snapshot of one active operation
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "operation id required")
		return
	}

	snap, err := s.source.OperationProgress(id)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("operation %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
