/*
Package errdefs defines the error taxonomy shared by every runtime component.

Errors are tagged with a Class that drives two decisions: whether the retry
engine may re-run an operation, and how failures surface in notifications and
health output. Classification travels with the standard error chain, so
components keep wrapping with fmt.Errorf("...: %w", err) and the tag survives.

# Architecture

	┌───────────────────── ERROR TAXONOMY ─────────────────────┐
	│                                                          │
	│  transient      retryable     timeouts, busy, 5xx        │
	│  system         retryable     disk full, permissions     │
	│  configuration  fatal         invalid cron, bad paths    │
	│  precondition   surfaced      canceled, queue full       │
	│  integrity      critical      checksum, truncation       │
	│  unknown        surfaced      anything untagged          │
	│                                                          │
	│  Retryable(err) → transient | system                     │
	│  everything else (including unknown) is not retried      │
	└──────────────────────────────────────────────────────────┘

# Usage

Tagging errors at the point of failure:

	if resp.StatusCode >= 500 {
		return errdefs.Newf(errdefs.ClassTransient, "upstream returned %d", resp.StatusCode)
	}

	if sum != expected {
		return errdefs.Wrap(errdefs.ClassIntegrity, errdefs.ErrChecksumMismatch)
	}

Wrapping with context while preserving the class:

	if err := sink.Write(ctx, ref, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", ref, err)
	}

Deciding retryability:

	if errdefs.Retryable(err) {
		// schedule another attempt
	}

Context errors map without tagging: context.Canceled classifies as
precondition and context.DeadlineExceeded as transient, so runners that
return ctx.Err() directly behave correctly.

# Integration Points

This package integrates with:

  - pkg/retry: Retryable() is the default retry predicate
  - pkg/executor: wraps final operation errors, rejects with ErrQueueFull
  - pkg/scheduler: rejects duplicates with ErrDuplicateTask
  - pkg/service: rejects submissions with ErrNotRunning while stopping
  - pkg/transfer: reports ErrChecksumMismatch and ErrTruncated
*/
package errdefs
