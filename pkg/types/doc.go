/*
Package types defines the core data structures shared across the sync runtime.

This package contains the domain model: operations and their lifecycle states,
content types with their filter and priority vocabulary, enumerated items, and
transfer plans. It depends on nothing but the standard library so every other
package can import it freely.

# Type Hierarchy

	┌──────────────────── DOMAIN MODEL ────────────────────────┐
	│                                                          │
	│  ContentType ──┬── FilterRule      (ordered predicates)  │
	│                └── PriorityRule    (weighted predicates) │
	│                                                          │
	│  SourceProvider enumeration                              │
	│        │                                                 │
	│        ▼                                                 │
	│      Item ──planner──▶ PlannedTransfer ∈ Plan            │
	│                              │                           │
	│                              ▼                           │
	│                         Operation                        │
	│        created → queued → running → {completed,          │
	│                                      failed, cancelled}  │
	│                                                          │
	│  ServiceState:                                           │
	│        created → initializing → running → stopping       │
	│                        │                     │           │
	│                        ▼                     ▼           │
	│                      failed               stopped        │
	└──────────────────────────────────────────────────────────┘

# Core Types

Operation:
  - Unit of work run by the executor
  - Opaque Payload map the runtime never inspects
  - Priority orders dequeue among equals; Timeout caps the run

OperationState:
  - created/queued/running plus three absorbing terminals
  - Terminal() gates all state transitions

ContentType:
  - One configured bucket of items with shared policy
  - MaxSizeBytes is the planner's hard budget
  - Filters run in order and short-circuit on first miss
  - PriorityRules score surviving items for ordering

Item:
  - One candidate from a source provider enumeration
  - Ref is provider-scoped (path, URL, catalog id)
  - Metadata carries provider extras the runtime ignores

Plan / PlannedTransfer:
  - Ordered planner output, a pure value
  - Identical inputs produce identical plans
  - PlanWarning records budget exclusions and enumeration failures

# State Transitions

Operation lifecycle:

	created ──submit──▶ queued ──worker──▶ running ──┬──▶ completed
	                                                 ├──▶ failed
	                                                 └──▶ cancelled

Service lifecycle:

	created ──Start()──▶ initializing ──▶ running ──Stop()──▶ stopping ──▶ stopped
	                          │
	                          └──(init failure)──▶ failed

Terminal states are absorbing: no transition ever leaves them.

# Usage

Declaring a content type:

	movies := types.ContentType{
		Name:         "movies",
		LocalPath:    "/data/movies",
		MaxSizeBytes: 10 << 30,
		Priority:     1,
		Schedule:     "0 2 * * *",
		Direction:    types.DirectionFromSource,
		Filters: []types.FilterRule{
			{Type: types.FilterExtension, Extensions: []string{".mkv", ".mp4"}},
			{Type: types.FilterMaxSize, Value: 8 << 30},
		},
		PriorityRules: []types.PriorityRule{
			{Name: "recent", Weight: 10, Rule: types.FilterRule{Type: types.FilterMaxAge, Window: 30 * 24 * time.Hour}},
		},
	}

Checking plan budgets:

	if plan.BytesForContentType("movies") > movies.MaxSizeBytes {
		// never happens: the planner enforces the budget
	}

# Integration Points

This package integrates with:

  - pkg/planner: consumes ContentType, emits Plan
  - pkg/executor: runs Operations through their lifecycle
  - pkg/service: owns the ServiceState machine
  - pkg/transfer: moves bytes for each PlannedTransfer
  - pkg/config: converts YAML sections into these types
*/
package types
