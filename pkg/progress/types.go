package progress

import (
	"time"
)

// Status represents the lifecycle state of a tracked operation
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is absorbing
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether the operation is started and not terminal
func (s Status) Active() bool {
	return s == StatusInProgress || s == StatusPaused
}

// Phase is a weighted sub-step of an operation
type Phase struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Weight     float64   `json:"weight"`
	Status     Status    `json:"status"`
	Progress   float64   `json:"progress"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Metrics holds the quantitative side of a snapshot. Rates are in
// items per second, or bytes per second when only byte totals are
// known.
type Metrics struct {
	TotalItems        int64     `json:"total_items"`
	CompletedItems    int64     `json:"completed_items"`
	TotalBytes        int64     `json:"total_bytes"`
	ProcessedBytes    int64     `json:"processed_bytes"`
	InstantaneousRate float64   `json:"instantaneous_rate"`
	AverageRate       float64   `json:"average_rate"`
	ETASeconds        float64   `json:"eta_seconds"`
	ElapsedSeconds    float64   `json:"elapsed_seconds"`
	StartedAt         time.Time `json:"started_at,omitempty"`
	LastUpdateAt      time.Time `json:"last_update_at,omitempty"`
}

// Snapshot is an immutable value copy of a tracker's state
type Snapshot struct {
	OperationID     string  `json:"operation_id"`
	Status          Status  `json:"status"`
	ProgressPercent float64 `json:"progress_percent"`
	CurrentPhase    string  `json:"current_phase,omitempty"`
	CurrentItem     string  `json:"current_item,omitempty"`
	Metrics         Metrics `json:"metrics"`
	Phases          []Phase `json:"phases,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Message         string  `json:"message,omitempty"`
}

// Listener receives snapshots on every tracker update. Implementations
// must treat snapshots as read-only and must not call mutating tracker
// methods from the callback.
type Listener interface {
	OnProgress(snapshot Snapshot)
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(Snapshot)

// OnProgress implements Listener
func (f ListenerFunc) OnProgress(snapshot Snapshot) {
	f(snapshot)
}
