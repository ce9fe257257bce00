package errdefs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestClassOf tests class extraction across wrap chains
func TestClassOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Class
	}{
		{
			name:     "direct classified error",
			err:      New(ClassTransient, "connection reset"),
			expected: ClassTransient,
		},
		{
			name:     "wrapped classified error",
			err:      fmt.Errorf("sync failed: %w", New(ClassIntegrity, "checksum mismatch")),
			expected: ClassIntegrity,
		},
		{
			name:     "doubly wrapped error",
			err:      fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", Wrap(ClassSystem, errors.New("disk full")))),
			expected: ClassSystem,
		},
		{
			name:     "unclassified error",
			err:      errors.New("something broke"),
			expected: ClassUnknown,
		},
		{
			name:     "context canceled",
			err:      context.Canceled,
			expected: ClassPrecondition,
		},
		{
			name:     "context deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: ClassTransient,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: ClassUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassOf(tt.err))
		})
	}
}

// TestRetryable tests the default retryability per class
func TestRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "transient retries", err: New(ClassTransient, "rate limited"), retryable: true},
		{name: "system retries", err: New(ClassSystem, "disk full"), retryable: true},
		{name: "configuration does not retry", err: New(ClassConfiguration, "invalid cron"), retryable: false},
		{name: "precondition does not retry", err: New(ClassPrecondition, "queue full"), retryable: false},
		{name: "integrity does not retry", err: New(ClassIntegrity, "truncated"), retryable: false},
		{name: "unclassified does not retry", err: errors.New("mystery"), retryable: false},
		{name: "canceled never retries", err: ErrCanceled, retryable: false},
		{name: "context canceled never retries", err: context.Canceled, retryable: false},
		{name: "wrapped transient retries", err: fmt.Errorf("fetch: %w", ErrTimeout), retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

// TestSentinelIdentity tests that sentinels survive wrapping
func TestSentinelIdentity(t *testing.T) {
	err := fmt.Errorf("submit rejected: %w", ErrQueueFull)

	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.False(t, errors.Is(err, ErrCanceled))
	assert.Equal(t, ClassPrecondition, ClassOf(err))
}

// TestWrapNil tests that wrapping nil stays nil
func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ClassTransient, nil))
	assert.Nil(t, Wrapf(ClassTransient, nil, "context %d", 1))
}

// TestWrapfMessage tests message composition and chain preservation
func TestWrapfMessage(t *testing.T) {
	inner := errors.New("connection refused")
	err := Wrapf(ClassTransient, inner, "failed to reach source %q", "nas-01")

	assert.Equal(t, `failed to reach source "nas-01": connection refused`, err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.True(t, IsTransient(err))
}

// TestIsCanceled tests cancellation detection
func TestIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, IsCanceled(ctx.Err()))
	assert.True(t, IsCanceled(fmt.Errorf("run: %w", ErrCanceled)))
	assert.False(t, IsCanceled(ErrTimeout))
	assert.False(t, IsCanceled(nil))
}

// TestClassPredicates tests the per-class predicate helpers
func TestClassPredicates(t *testing.T) {
	assert.True(t, IsTransient(ErrTimeout))
	assert.True(t, IsPrecondition(ErrDuplicateTask))
	assert.True(t, IsIntegrity(ErrChecksumMismatch))
	assert.True(t, IsConfiguration(New(ClassConfiguration, "bad path")))
	assert.True(t, IsSystem(Newf(ClassSystem, "no space on %s", "/data")))

	assert.False(t, IsTransient(ErrChecksumMismatch))
	assert.False(t, IsIntegrity(errors.New("plain")))
}
