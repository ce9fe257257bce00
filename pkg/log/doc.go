/*
Package log provides structured logging for the sync runtime using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level for production debugging on constrained appliances.

# Architecture

The logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("scheduler")               │          │
	│  │  - WithService("media-sync")                │          │
	│  │  - WithOperationID("op-abc123")             │          │
	│  │  - WithContentType("movies")                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                             │          │
	│  │  JSON Format:                               │          │
	│  │  {                                          │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "executor",                 │          │
	│  │    "time": "2026-03-02T10:30:00Z",          │          │
	│  │    "message": "operation completed"         │          │
	│  │  }                                          │          │
	│  │                                             │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF operation completed component=executor │  │
	│  └────────────────────────────────────────────┘          │
	└──────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all runtime packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithService: Add service name context
  - WithOperationID: Add operation ID context
  - WithContentType: Add content type context

# Usage

Initializing the Logger:

	import "github.com/vladzaharia/dangerprep-sub010/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("Sync service initialized")
	log.Debug("Checking source availability")
	log.Warn("Transfer rate below threshold")
	log.Error("Failed to enumerate source")
	log.Fatal("Cannot start without configuration") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("content_type", "movies").
		Int("planned", 12).
		Msg("Transfer plan built")

	log.Logger.Error().
		Err(err).
		Str("operation_id", "op-abc").
		Msg("Operation failed")

Component Loggers:

	// Create component-specific logger
	execLog := log.WithComponent("executor")
	execLog.Info().Msg("Starting worker pool")
	execLog.Debug().Str("operation_id", "op-123").Msg("Dequeued operation")

	// Multiple context fields
	opLog := log.WithComponent("transfer").
		With().Str("content_type", "movies").
		Str("operation_id", "op-123").Logger()
	opLog.Info().Msg("Transfer started")
	opLog.Error().Err(err).Msg("Transfer failed")

# Integration Points

This package integrates with:

  - pkg/service: Logs lifecycle transitions and agent wiring
  - pkg/scheduler: Logs task firing and drop decisions
  - pkg/executor: Logs operation execution and retries
  - pkg/events: Logs channel delivery failures
  - pkg/health: Logs probe results and status changes
  - pkg/transfer: Logs byte movement and checksum results

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to components
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Include context (operation ID, content type)

Don't:
  - Log sensitive data (credentials, API keys)
  - Use Debug level in production
  - Log in tight transfer loops (use sampling)
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
