package events

import (
	"context"
	"time"
)

// EventType identifies what happened
type EventType string

const (
	// EventNotification is the type of plain severity notifications
	// emitted through the convenience helpers
	EventNotification EventType = "notification"

	EventServiceStarted      EventType = "service_started"
	EventServiceStopped      EventType = "service_stopped"
	EventServiceError        EventType = "service_error"
	EventOperationStarted    EventType = "operation_started"
	EventOperationCompleted  EventType = "operation_completed"
	EventOperationFailed     EventType = "operation_failed"
	EventOperationCancelled  EventType = "operation_cancelled"
	EventHealthStatusChanged EventType = "health_status_changed"
	EventSyncStarted         EventType = "sync_started"
	EventSyncCompleted       EventType = "sync_completed"
	EventSyncFailed          EventType = "sync_failed"
)

// Level is the severity of an event
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// rank orders levels for comparisons; unknown levels rank lowest
func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	case LevelCritical:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether l is at or above min severity
func (l Level) AtLeast(min Level) bool {
	return l.rank() >= min.rank()
}

// DeliveryState tracks the progress of one event on one channel
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryRetrying  DeliveryState = "retrying"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// Delivery is the outcome of sending one event to one channel
type Delivery struct {
	Channel  string        `json:"channel"`
	State    DeliveryState `json:"state"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Event is an immutable notification record. Deliveries are attached
// once fan-out settles; the rest never changes after emission.
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	Level      Level                  `json:"level"`
	Source     string                 `json:"source"`
	Message    string                 `json:"message"`
	Timestamp  time.Time              `json:"timestamp"`
	Tags       []string               `json:"tags,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Deliveries []Delivery             `json:"deliveries,omitempty"`
}

// Channel delivers events to some destination (log, webhook, ...).
// Send must respect ctx cancellation; the hub bounds each attempt
// with a timeout.
type Channel interface {
	Name() string
	Available() bool
	Send(ctx context.Context, event *Event) error
}

// Filter selects events from the history buffer. Zero-value fields
// match everything.
type Filter struct {
	Types    []EventType
	Levels   []Level
	MinLevel Level
	Sources  []string
	Since    time.Time
	Limit    int
}

// matches reports whether an event passes the filter
func (f Filter) matches(e *Event) bool {
	if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
		return false
	}
	if len(f.Levels) > 0 && !containsLevel(f.Levels, e.Level) {
		return false
	}
	if f.MinLevel != "" && !e.Level.AtLeast(f.MinLevel) {
		return false
	}
	if len(f.Sources) > 0 && !containsString(f.Sources, e.Source) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

func containsType(haystack []EventType, needle EventType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsLevel(haystack []Level, needle Level) bool {
	for _, l := range haystack {
		if l == needle {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// EmitOptions customizes a single emission. The zero value (or nil)
// means info level, the hub's default source, all channels.
type EmitOptions struct {
	Level    Level
	Source   string
	Tags     []string
	Error    error
	Data     map[string]interface{}
	Channels []string
}
