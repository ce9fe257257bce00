// Package scheduler provides cron-driven task scheduling for sync operations.
//
// The scheduler maintains a registry of named tasks, each bound to a cron
// expression, and fires task bodies on their schedule from dedicated timer
// goroutines. It is the component that turns per-content-type sync settings
// into recurring background work.
//
// # Architecture
//
// Each scheduled task runs its own activation loop. The loop computes the
// next fire time from the cron schedule, sleeps on a timer, and dispatches
// the task body in a fresh goroutine when the timer fires:
//
//	┌────────────────────────────────────────────────────────────┐
//	│                      Scheduler                             │
//	│            (task registry, mutex-guarded)                  │
//	└──────┬──────────────────┬──────────────────┬───────────────┘
//	       │                  │                  │
//	       ▼                  ▼                  ▼
//	┌─────────────┐    ┌─────────────┐    ┌─────────────┐
//	│ task "docs" │    │ task "maps" │    │ task "rss"  │
//	│ timer loop  │    │ timer loop  │    │ timer loop  │
//	└──────┬──────┘    └──────┬──────┘    └──────┬──────┘
//	       │                  │                  │
//	       ▼                  ▼                  ▼
//	  body goroutine     body goroutine     body goroutine
//	  (skipped while     (skipped while     (skipped while
//	   previous runs)     previous runs)     previous runs)
//
// Overlap policy is drop, not queue: if a fire arrives while the previous
// invocation of the same task is still running, the fire is counted and
// discarded. Long sync runs therefore never stack up behind each other.
//
// # Cron Expressions
//
// Expressions use the standard 5-field form (minute, hour, day of month,
// month, day of week) with an optional leading seconds field, plus the
// @hourly, @daily, @weekly, @monthly and @every descriptors:
//
//	"0 3 * * *"        3:00 every day
//	"*/15 * * * *"     every 15 minutes
//	"30 */10 * * * *"  every 10 minutes at :30 (6-field, with seconds)
//	"@every 4h"        fixed 4 hour interval
//
// Fire times are evaluated in the task's configured timezone, defaulting
// to the host timezone.
//
// # Task Lifecycle
//
// Schedule registers a task and activates it immediately. Stop deactivates
// the timer loop without forgetting the task; Start reactivates it. Remove
// deletes the task entirely, after which its id may be reused. DestroyAll
// tears down every task and poisons the scheduler so later Schedule calls
// fail; it also cancels the context passed to running bodies, but does not
// wait for them to return.
//
// Task bodies receive a context that is canceled on DestroyAll. Bodies
// performing long transfers should honor it. A panicking body is recovered
// and logged; the task stays scheduled and fires again on the next slot.
//
// # Usage
//
// Basic scheduling:
//
//	s := scheduler.NewScheduler()
//
//	err := s.Schedule("sync-docs", "0 */6 * * *", func(ctx context.Context) {
//		runSync(ctx, "documents")
//	}, nil)
//	if err != nil {
//		return err
//	}
//
//	// Later: inspect state.
//	for _, st := range s.Status() {
//		fmt.Printf("%s next=%v runs=%d drops=%d\n",
//			st.ID, st.NextFire, st.RunCount, st.DropCount)
//	}
//
//	// Shutdown.
//	s.DestroyAll()
//
// Scheduling with options:
//
//	loc, _ := time.LoadLocation("America/Vancouver")
//	err := s.Schedule("sync-kiwix", "0 2 * * *", body, &scheduler.Options{
//		Name:     "Kiwix nightly sync",
//		Timezone: loc,
//		StartNow: true,
//	})
//
// StartNow fires the body once immediately on activation, then follows the
// cron schedule. It is useful for sync tasks that should not wait for the
// first slot after a service restart.
//
// # Observability
//
// TaskStatus exposes per-task counters: RunCount increments when a fire
// dispatches a body, DropCount when a fire is discarded due to overlap.
// NextFire and LastFire give the surrounding fire times. Fires and drops
// are also exported as Prometheus counters labeled by task id.
//
// # Integration Points
//
// The service host owns the scheduler:
//   - Registers one task per content type that has a sync schedule
//   - Registers maintenance tasks (marker pruning, health snapshots)
//   - Calls DestroyAll during shutdown, before draining the executor
//
// Task bodies typically submit work to the executor rather than doing the
// transfer inline, so pool limits and operation tracking apply to
// scheduled syncs the same way they apply to manually triggered ones.
package scheduler
