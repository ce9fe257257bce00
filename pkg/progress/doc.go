/*
Package progress tracks per-operation progress with phases, rates, and
listener fan-out.

One tracker follows one operation from not_started through in_progress to a
terminal state, deriving an overall percent from item counts, byte counts, or
weighted phases, and delivering immutable snapshots to registered listeners on
every update.

# Architecture

	┌─────────────────── PROGRESS TRACKER ─────────────────────┐
	│                                                          │
	│  Update / SetPhase / lifecycle calls                     │
	│        │                                                 │
	│        ▼                                                 │
	│  ┌───────────────┐     clamp inputs                      │
	│  │  state (mu)   │     raise high-water percent          │
	│  │  items/bytes  │     sample EWMA rates                 │
	│  │  phases       │                                       │
	│  └──────┬────────┘                                       │
	│         │ value copy                                     │
	│         ▼                                                │
	│     Snapshot ──────▶ listeners, in registration order    │
	│                      (sendMu keeps delivery ordered,     │
	│                       panics recovered per listener)     │
	│                                                          │
	│  optional ticker: re-emit every UpdateInterval while     │
	│  in_progress                                             │
	└──────────────────────────────────────────────────────────┘

# Status Model

	not_started ──Start──▶ in_progress ◀──Resume── paused
	                           │    └──Pause──────────▲
	                           │
	              ┌────────────┼────────────┐
	              ▼            ▼            ▼
	          completed      failed     cancelled     (absorbing)

Terminal states absorb every later call: transitions and updates are
logged and dropped. Updates while paused are dropped silently, with no
listener emission.

# Percent Derivation

Precedence, first configured source wins:

 1. Item totals: completed_items / total_items × 100
 2. Weighted phases: Σ(phase.progress × weight) / Σ(weight)
 3. Byte totals: processed_bytes / total_bytes × 100

The reported percent is monotone non-decreasing across updates; a lower
recomputed value never rewinds the published number. Complete() raises
the percent to 100 regardless of counters, which is also how
zero-total operations finish.

# Rates and ETA

average_rate is completed work divided by elapsed seconds, and
eta_seconds is remaining work divided by average_rate, so the two
always satisfy eta × rate = remaining. instantaneous_rate is a
separately smoothed estimate fed by an exponentially weighted moving
average over recent update deltas.

# Usage

Tracking a transfer by items:

	tracker := progress.New(op.ID, &progress.Config{
		TotalItems:     int64(len(plan.Transfers)),
		UpdateInterval: 5 * time.Second,
		TrackRates:     true,
		TrackETA:       true,
	})
	tracker.AddListener(progress.ListenerFunc(func(s progress.Snapshot) {
		fmt.Printf("%s %.1f%%\n", s.OperationID, s.ProgressPercent)
	}))

	tracker.Start()
	for i, item := range items {
		if err := copyItem(ctx, item); err != nil {
			tracker.Fail(err)
			return err
		}
		tracker.Update(int64(i+1), bytesSoFar, item.Name)
	}
	tracker.Complete()

Tracking by phases:

	tracker := progress.New(op.ID, &progress.Config{
		Phases: []progress.Phase{
			{ID: "scan", Name: "Scanning source", Weight: 1},
			{ID: "copy", Name: "Copying items", Weight: 8},
			{ID: "verify", Name: "Verifying checksums", Weight: 1},
		},
	})
	tracker.Start()
	tracker.SetPhase("scan")
	// ...
	tracker.SetPhase("copy")
	tracker.UpdatePhaseProgress("copy", 40)

# Integration Points

This package integrates with:

  - pkg/executor: creates one tracker per submitted operation
  - pkg/transfer: transferors drive the tracker they are handed
  - pkg/api: serves Snapshot values on /progress/{id}
  - pkg/service: exposes snapshots through the observable surface
*/
package progress
