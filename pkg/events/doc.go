/*
Package events provides the notification hub for syncd.

The hub accepts events from runtime components, keeps a bounded in-memory
history for inspection, and fans each event out to registered delivery
channels concurrently. Channels are pluggable; the package ships a
structured-log channel and a webhook channel.

# Architecture

	┌────────────────── NOTIFICATION FLOW ─────────────────────┐
	│                                                          │
	│   Emitters (executor, health, service, scheduler)        │
	│        │                                                 │
	│        ▼                                                 │
	│   ┌─────────────────────────────────────┐                │
	│   │               Hub                   │                │
	│   │  - Builds immutable event (UUID)    │                │
	│   │  - Appends to history ring          │                │
	│   │  - Resolves target channels         │                │
	│   └──────┬──────────────┬───────────────┘                │
	│          │              │                                │
	│          ▼              ▼                                │
	│   ┌────────────┐  ┌────────────┐                         │
	│   │  Channel A │  │  Channel B │   (concurrent fan-out)  │
	│   │  log       │  │  webhook   │                         │
	│   └──────┬─────┘  └──────┬─────┘                         │
	│          │               │                               │
	│          ▼               ▼                               │
	│    per-attempt timeout, exponential backoff retries,     │
	│    per-channel Delivery records on the event             │
	│                                                          │
	│   History ring (default 1000, drop-oldest)               │
	│     Recent / RecentFiltered queries, newest first        │
	└──────────────────────────────────────────────────────────┘

# Core Components

Hub:
  - Central emission point with bounded history
  - Synchronous Emit: returns once every delivery settles
  - Thread-safe for concurrent emitters
  - Close stops emission but keeps history readable

Event:
  - Immutable record: ID, type, level, source, message, timestamp
  - Optional tags, error string, and structured data
  - Delivery outcomes attached per channel after fan-out

Channel:
  - Name, Available, Send(ctx, event)
  - Optional Close() error picked up by Hub.Close
  - Send must honor ctx; the hub bounds each attempt with a timeout

Delivery:
  - States: pending, retrying, delivered, failed
  - Records attempts, final error, and total duration
  - Visible mid-flight through the history buffer

# Event Types

Service lifecycle:
  - service_started, service_stopped, service_error

Operations:
  - operation_started, operation_completed, operation_failed,
    operation_cancelled

Health:
  - health_status_changed

Sync runs:
  - sync_started, sync_completed, sync_failed

Generic:
  - notification (severity helpers Info/Warn/Error/Critical)

# Delivery Semantics

Each channel delivery is independent:

  - Unavailable channels are recorded failed without an attempt
  - Each send attempt is bounded by SendTimeout (default 10s)
  - Failed attempts retry with exponential backoff, base 1s capped at
    32s, RetryAttempts re-sends (default 3, so 4 attempts total)
  - Cancellation of the emit context stops retries
  - A failed delivery never fails the emission; the event is already
    recorded in history

Emission with zero registered channels succeeds and only records the
event. HasAvailableChannel lets callers detect a channel-less hub.

# Usage

Creating a hub with channels:

	hub := events.NewHub(&events.Config{Source: "syncd"})
	_ = hub.AddChannel(events.NewLogChannel())

	webhook, err := events.NewWebhookChannel("ops", events.WebhookConfig{
		URL:      "https://hooks.example.com/syncd",
		MinLevel: events.LevelWarn,
	})
	if err != nil {
		return err
	}
	_ = hub.AddChannel(webhook)

Emitting events:

	event, err := hub.Emit(ctx, events.EventOperationFailed, "transfer failed", &events.EmitOptions{
		Level:  events.LevelError,
		Source: "executor",
		Error:  opErr,
		Data:   map[string]interface{}{"operation_id": op.ID},
	})

	// Severity helpers
	hub.Warn(ctx, "disk space below 10%")
	hub.ServiceStarted(ctx, "syncd", version)

Inspecting history:

	recent := hub.Recent(50)
	failures := hub.RecentFiltered(events.Filter{
		Types:    []events.EventType{events.EventOperationFailed},
		MinLevel: events.LevelError,
		Since:    time.Now().Add(-time.Hour),
	})

Shutting down:

	_ = hub.Close() // idempotent; closes owned channels

# Integration Points

This package integrates with:

  - pkg/executor: Operation lifecycle events
  - pkg/health: Status change events
  - pkg/service: Service lifecycle events
  - pkg/retry: Backoff between delivery attempts
  - pkg/metrics: Emission, delivery, and drop counters
  - pkg/api: Serves history through the events endpoint
  - pkg/log: Structured log channel output

# Concurrency Model

The hub uses one mutex for channels, history, and delivery records.
Fan-out runs outside the lock; each channel goroutine re-acquires it
only to publish its delivery outcome. Sequential emissions from one
goroutine reach a channel in emission order because Emit blocks until
deliveries settle. Emissions from different goroutines interleave
without a defined order.
*/
package events
