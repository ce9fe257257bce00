/*
Package retry implements policy-driven retry with backoff and jitter.

The retry engine runs a unit of work until it succeeds, attempts are
exhausted, the total time budget expires, or the caller cancels. Delay
progression, capping, and jitter are pure functions of the policy, which keeps
the timing behavior testable without sleeping.

# Architecture

	┌────────────────────── RETRY ENGINE ──────────────────────┐
	│                                                          │
	│  Do(ctx, policy, fn)                                     │
	│      │                                                   │
	│      ▼                                                   │
	│  ┌─────────┐  success  ┌──────────────────┐              │
	│  │ attempt │──────────▶│ Result{Success,  │              │
	│  │   n     │           │ Value, Attempts} │              │
	│  └────┬────┘           └──────────────────┘              │
	│       │ failure                                          │
	│       ▼                                                  │
	│  ShouldRetry? ──no──▶ propagate last error               │
	│       │ yes                                              │
	│       ▼                                                  │
	│  DelayFor(policy, n, prev)                               │
	│    strategy: fixed | linear | exponential                │
	│    cap:      min(d, MaxDelay)                            │
	│    jitter:   none | full | equal | decorrelated          │
	│       │                                                  │
	│       ▼                                                  │
	│  wait (ctx-aware, truncated by MaxTotalTime)             │
	│       │                                                  │
	│       └──────────▶ attempt n+1                           │
	└──────────────────────────────────────────────────────────┘

# Delay Computation

For attempt n (1-based), before jitter:

	fixed:        d = base
	linear:       d = base × (1 + (n-1) × (multiplier-1))
	exponential:  d = base × multiplier^(n-1)

The capped value is then jittered:

	none:          d
	full:          uniform [0, d]
	equal:         d/2 + uniform(0, d/2)
	decorrelated:  uniform [base, max(base, 3×previous)]; first wait
	               is exactly base; ignores the strategy progression

Results round to whole milliseconds and never go negative. The
previous-delay state used by decorrelated jitter resets on every Do call.

# Retry Decisions

ShouldRetry consults the policy's RetryIf predicate when present,
otherwise the errdefs class: transient and system errors retry, all
other classes and unclassified errors propagate immediately.
Cancellation is terminal regardless of predicate.

# Usage

Running a flaky fetch with the default policy:

	res, err := retry.Do(ctx, retry.DefaultPolicy(), func(ctx context.Context) (interface{}, error) {
		return client.Fetch(ctx, ref)
	})
	if err != nil {
		return fmt.Errorf("fetch failed after %d attempts: %w", res.Attempts, err)
	}

A custom policy with a total time budget:

	policy := retry.Policy{
		MaxAttempts:  5,
		BaseDelay:    200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Strategy:     retry.StrategyExponential,
		Multiplier:   2,
		Jitter:       retry.JitterDecorrelated,
		MaxTotalTime: time.Minute,
	}

Inspecting per-attempt records:

	for _, rec := range res.Records {
		fmt.Printf("attempt %d: err=%v waited=%s\n", rec.Attempt, rec.Err, rec.Delay)
	}

# Edge Behavior

  - MaxAttempts of one never computes a delay.
  - MaxTotalTime expiring mid-wait aborts the wait and returns the last
    runner error immediately.
  - Success on attempt n records exactly n attempts; no later delays exist.
  - ctx cancellation aborts waits and returns a precondition-class
    cancellation error.
  - OnExhausted fires exactly once, only when every attempt was used.

# Integration Points

This package integrates with:

  - pkg/executor: wraps every operation runner
  - pkg/events: drives per-channel notification delivery retries
  - pkg/errdefs: supplies the default retryability decision
  - pkg/config: materializes the default policy from settings
*/
package retry
