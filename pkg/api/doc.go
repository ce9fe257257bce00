/*
Package api serves the read-only HTTP observable surface of the sync
runtime.

Every endpoint is a GET returning JSON; nothing mutates state through
this surface. The server reads from a narrow Source view that the
service host implements, so this package never imports the host.

# Endpoints

	GET /health          aggregated health report; 503 when unhealthy
	GET /ready           readiness; 200 only while the host is running
	GET /events          recent events, filterable by query parameters
	GET /tasks           scheduled task statuses
	GET /stats           executor activity statistics
	GET /progress/{id}   live progress snapshot of one operation
	GET /metrics         Prometheus exposition

The /events endpoint accepts type, level, source (each repeatable),
min_level, since (RFC3339), and limit query parameters.

# Architecture

	┌───────────────────── HTTP CLIENT ──────────────────────┐
	│  curl / probe / scrape                                 │
	└───────────────────────┬────────────────────────────────┘
	                        │ GET (JSON)
	┌───────────────────────▼────────────────────────────────┐
	│  Server                                                │
	│  - instrument: request counts and latency              │
	│  - handlers: marshal Source snapshots                  │
	└───────────────────────┬────────────────────────────────┘
	                        │ Source (read-only)
	┌───────────────────────▼────────────────────────────────┐
	│  service.Service                                       │
	└────────────────────────────────────────────────────────┘

# Integration Points

This package integrates with:

  - pkg/service: implements Source
  - pkg/health, pkg/events, pkg/executor, pkg/scheduler,
    pkg/progress: snapshot types served as JSON
  - pkg/metrics: /metrics handler and request instrumentation
*/
package api
