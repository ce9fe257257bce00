package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
)

// Strategy selects the base delay progression
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
)

// Jitter selects how computed delays are randomized
type Jitter string

const (
	JitterNone         Jitter = "none"
	JitterFull         Jitter = "full"
	JitterEqual        Jitter = "equal"
	JitterDecorrelated Jitter = "decorrelated"
)

// Policy holds immutable retry configuration
type Policy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration // Zero means unbounded
	Strategy     Strategy
	Multiplier   float64 // For linear and exponential strategies
	Jitter       Jitter
	MaxTotalTime time.Duration // Zero means unbounded

	// RetryIf overrides the class-based retry decision when set
	RetryIf func(error) bool

	// OnExhausted is invoked exactly once when all attempts are used
	// without success
	OnExhausted func(attempts int, err error)
}

// DefaultPolicy returns the runtime-wide default retry policy
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Strategy:    StrategyExponential,
		Multiplier:  2,
		Jitter:      JitterFull,
	}
}

// Validate checks the policy for configuration errors
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return errdefs.Newf(errdefs.ClassConfiguration, "retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return errdefs.Newf(errdefs.ClassConfiguration, "retry: base delay must be >= 0, got %s", p.BaseDelay)
	}
	if p.MaxDelay != 0 && p.MaxDelay < p.BaseDelay {
		return errdefs.Newf(errdefs.ClassConfiguration, "retry: max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	}
	switch p.Strategy {
	case StrategyFixed, StrategyLinear, StrategyExponential:
	case "":
		return errdefs.New(errdefs.ClassConfiguration, "retry: strategy is required")
	default:
		return errdefs.Newf(errdefs.ClassConfiguration, "retry: unknown strategy %q", p.Strategy)
	}
	if (p.Strategy == StrategyLinear || p.Strategy == StrategyExponential) && p.Multiplier <= 0 {
		return errdefs.Newf(errdefs.ClassConfiguration, "retry: multiplier must be > 0 for %s strategy", p.Strategy)
	}
	switch p.Jitter {
	case JitterNone, JitterFull, JitterEqual, JitterDecorrelated, "":
	default:
		return errdefs.Newf(errdefs.ClassConfiguration, "retry: unknown jitter %q", p.Jitter)
	}
	return nil
}

// ShouldRetry reports whether err warrants another attempt under p.
// The policy predicate wins when present; otherwise the error class
// decides. Cancellation is never retried.
func ShouldRetry(p Policy, err error) bool {
	if err == nil || errdefs.IsCanceled(err) {
		return false
	}
	if p.RetryIf != nil {
		return p.RetryIf(err)
	}
	return errdefs.Retryable(err)
}

// DelayFor computes the wait after attempt n (1-based) fails. prev is
// the previously returned delay, consumed only by decorrelated jitter.
// The result is capped at MaxDelay and rounded to whole milliseconds.
func DelayFor(p Policy, attempt int, prev time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Decorrelated jitter replaces the strategy progression entirely:
	// the first delay is exactly the base, later delays walk
	// [base, 3*prev].
	if p.Jitter == JitterDecorrelated {
		var d time.Duration
		if prev <= 0 {
			d = p.BaseDelay
		} else {
			upper := 3 * prev
			if upper < p.BaseDelay {
				upper = p.BaseDelay
			}
			span := upper - p.BaseDelay
			d = p.BaseDelay + time.Duration(rand.Float64()*float64(span))
		}
		return clampDelay(d, p.MaxDelay)
	}

	base := float64(p.BaseDelay)
	var d float64
	switch p.Strategy {
	case StrategyLinear:
		d = base * (1 + float64(attempt-1)*(p.Multiplier-1))
	case StrategyExponential:
		d = base * math.Pow(p.Multiplier, float64(attempt-1))
	default:
		d = base
	}

	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	switch p.Jitter {
	case JitterFull:
		d = rand.Float64() * d
	case JitterEqual:
		d = d/2 + rand.Float64()*d/2
	}

	return clampDelay(time.Duration(d), p.MaxDelay)
}

func clampDelay(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		d = max
	}
	d = d.Round(time.Millisecond)
	if d < 0 {
		d = 0
	}
	return d
}

// AttemptRecord describes a single runner invocation. Delay is the
// wait scheduled after this attempt, zero for the final one.
type AttemptRecord struct {
	Attempt  int
	Err      error
	Duration time.Duration
	Delay    time.Duration
}

// Result summarizes a completed Do call
type Result struct {
	Success  bool
	Value    interface{}
	Attempts int
	Elapsed  time.Duration
	Records  []AttemptRecord
}

// Func is a retryable unit of work. Implementations must honor ctx at
// their suspension points.
type Func func(ctx context.Context) (interface{}, error)

// Do runs fn under policy until it succeeds, attempts are exhausted,
// the total time budget expires, or ctx is canceled. The returned
// Result is always non-nil once the policy validates. On failure the
// last runner error is returned unmodified.
func Do(ctx context.Context, policy Policy, fn Func) (*Result, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var deadline time.Time
	if policy.MaxTotalTime > 0 {
		deadline = start.Add(policy.MaxTotalTime)
	}

	res := &Result{}
	var prev time.Duration
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("retry aborted before attempt %d: %w", attempt, errdefs.ErrCanceled)
		}

		attemptStart := time.Now()
		value, err := fn(ctx)
		record := AttemptRecord{
			Attempt:  attempt,
			Err:      err,
			Duration: time.Since(attemptStart),
		}
		res.Attempts = attempt

		if err == nil {
			res.Success = true
			res.Value = value
			res.Records = append(res.Records, record)
			res.Elapsed = time.Since(start)
			return res, nil
		}
		lastErr = err

		// Cancellation surfaced by the runner is terminal
		if errdefs.IsCanceled(err) {
			res.Records = append(res.Records, record)
			res.Elapsed = time.Since(start)
			return res, err
		}

		if attempt == policy.MaxAttempts || !ShouldRetry(policy, err) {
			res.Records = append(res.Records, record)
			break
		}

		delay := DelayFor(policy, attempt, prev)
		prev = delay
		record.Delay = delay
		res.Records = append(res.Records, record)

		expired, waitErr := waitDelay(ctx, delay, deadline)
		if waitErr != nil {
			res.Elapsed = time.Since(start)
			return res, waitErr
		}
		if expired {
			// Total time budget spent mid-wait: report the last error
			break
		}
	}

	res.Elapsed = time.Since(start)
	if res.Attempts == policy.MaxAttempts && policy.OnExhausted != nil {
		policy.OnExhausted(res.Attempts, lastErr)
	}
	return res, lastErr
}

// waitDelay sleeps for delay, truncated by the total-time deadline.
// Returns expired=true when the deadline cut the wait short.
func waitDelay(ctx context.Context, delay time.Duration, deadline time.Time) (bool, error) {
	expired := false
	if !deadline.IsZero() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true, nil
		}
		if remaining < delay {
			delay = remaining
			expired = true
		}
	}
	if delay <= 0 {
		return expired, nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("retry wait interrupted: %w", errdefs.ErrCanceled)
	case <-timer.C:
		return expired, nil
	}
}
