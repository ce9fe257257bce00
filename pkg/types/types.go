package types

import (
	"time"
)

// Operation represents a unit of work run by the executor
type Operation struct {
	ID        string
	Name      string
	Kind      OperationKind
	Priority  int           // Lower values run earlier
	Timeout   time.Duration // Zero means the executor default applies
	Payload   map[string]interface{}
	CreatedAt time.Time
}

// OperationKind tags the category of an operation
type OperationKind string

const (
	OperationKindSync     OperationKind = "sync"
	OperationKindTransfer OperationKind = "transfer"
	OperationKindScan     OperationKind = "scan"
	OperationKindCleanup  OperationKind = "cleanup"
	OperationKindCustom   OperationKind = "custom"
)

// OperationState represents the lifecycle state of an operation
type OperationState string

const (
	OperationStateCreated   OperationState = "created"
	OperationStateQueued    OperationState = "queued"
	OperationStateRunning   OperationState = "running"
	OperationStateCompleted OperationState = "completed"
	OperationStateFailed    OperationState = "failed"
	OperationStateCancelled OperationState = "cancelled"
)

// Terminal reports whether the state is absorbing
func (s OperationState) Terminal() bool {
	switch s {
	case OperationStateCompleted, OperationStateFailed, OperationStateCancelled:
		return true
	default:
		return false
	}
}

// ServiceState represents the lifecycle state of a sync service host
type ServiceState string

const (
	ServiceStateCreated      ServiceState = "created"
	ServiceStateInitializing ServiceState = "initializing"
	ServiceStateRunning      ServiceState = "running"
	ServiceStateStopping     ServiceState = "stopping"
	ServiceStateStopped      ServiceState = "stopped"
	ServiceStateFailed       ServiceState = "failed"
)

// Terminal reports whether the service state is absorbing
func (s ServiceState) Terminal() bool {
	return s == ServiceStateStopped || s == ServiceStateFailed
}

// Item represents one candidate unit enumerated from a source provider
type Item struct {
	Ref        string // Provider-scoped reference (path, URL, catalog id)
	Name       string
	SizeBytes  int64
	ModifiedAt time.Time
	Metadata   map[string]string
}

// SyncDirection defines which way bytes move for a content type
type SyncDirection string

const (
	DirectionBidirectional SyncDirection = "bidirectional"
	DirectionToDestination SyncDirection = "to_destination"
	DirectionFromSource    SyncDirection = "from_source"
)

// ContentType represents a configured bucket of items synced together
type ContentType struct {
	Name              string
	LocalPath         string
	RemotePath        string // Source-specific, may be empty
	MaxSizeBytes      int64
	AllowedExtensions []string
	Schedule          string // Cron expression, empty means manual only
	Priority          int    // Lower values plan earlier
	Direction         SyncDirection
	Filters           []FilterRule
	PriorityRules     []PriorityRule
}

// FilterType identifies the predicate a filter rule applies
type FilterType string

const (
	FilterGlob      FilterType = "glob"       // Name matches glob pattern
	FilterRegex     FilterType = "regex"      // Name matches regular expression
	FilterExtension FilterType = "extension"  // Extension in the allowed list
	FilterMinSize   FilterType = "min_size"   // SizeBytes >= Value
	FilterMaxSize   FilterType = "max_size"   // SizeBytes <= Value
	FilterMaxAge    FilterType = "max_age"    // Modified within Window
	FilterMinAge    FilterType = "min_age"    // Modified at least Window ago
)

// FilterRule is one predicate in a content type's ordered filter chain.
// Which fields are meaningful depends on Type.
type FilterRule struct {
	Type       FilterType
	Pattern    string        // Glob or regex source
	Extensions []string      // For extension rules
	Value      int64         // Bytes for size rules
	Window     time.Duration // For age rules
}

// PriorityRule is a weighted predicate contributing to an item's score.
// An item matching the rule gains Weight points.
type PriorityRule struct {
	Name   string
	Weight float64
	Rule   FilterRule
}

// PlannedTransfer is one entry in a transfer plan
type PlannedTransfer struct {
	ContentType    string
	Name           string
	SourceRef      string
	DestinationRef string
	EstimatedBytes int64
	PriorityScore  float64
}

// WarnReason identifies why the planner raised a warning
type WarnReason string

const (
	WarnBudgetExceeded    WarnReason = "budget_exceeded"
	WarnBudgetTooSmall    WarnReason = "budget_too_small"
	WarnEnumerationFailed WarnReason = "enumeration_failed"
)

// PlanWarning records an item or content type the planner could not serve
type PlanWarning struct {
	ContentType string
	Item        string // Empty for content-type level warnings
	Reason      WarnReason
	Detail      string
}

// Plan is the ordered output of the transfer planner. Plans are pure
// values: identical inputs produce identical plans.
type Plan struct {
	Transfers  []PlannedTransfer
	Warnings   []PlanWarning
	TotalBytes int64
}

// BytesForContentType sums the estimated bytes planned for one content type
func (p *Plan) BytesForContentType(name string) int64 {
	var total int64
	for _, t := range p.Transfers {
		if t.ContentType == name {
			total += t.EstimatedBytes
		}
	}
	return total
}
