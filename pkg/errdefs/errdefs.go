package errdefs

import (
	"context"
	"errors"
	"fmt"
)

// Class categorizes an error for retry and reporting decisions
type Class string

const (
	// ClassTransient covers recoverable conditions: network timeouts,
	// busy resources, rate limiting, upstream 5xx
	ClassTransient Class = "transient"

	// ClassConfiguration covers invalid configuration, fatal at startup
	ClassConfiguration Class = "configuration"

	// ClassPrecondition covers caller mistakes and refused requests:
	// cancellation, full queues, duplicate ids
	ClassPrecondition Class = "precondition"

	// ClassIntegrity covers corrupted data: checksum mismatch,
	// truncated transfers, inconsistent totals
	ClassIntegrity Class = "integrity"

	// ClassSystem covers host-level failures: disk full, permission
	// denied, resource exhaustion
	ClassSystem Class = "system"

	// ClassUnknown is the class of errors that carry no tag
	ClassUnknown Class = "unknown"
)

// Sentinel errors for common runtime conditions
var (
	ErrCanceled         = New(ClassPrecondition, "operation canceled")
	ErrTimeout          = New(ClassTransient, "operation timed out")
	ErrQueueFull        = New(ClassPrecondition, "operation queue full")
	ErrDuplicateTask    = New(ClassPrecondition, "task id already scheduled")
	ErrUnknownTask      = New(ClassPrecondition, "unknown task id")
	ErrUnknownOperation = New(ClassPrecondition, "unknown operation id")
	ErrNotRunning       = New(ClassPrecondition, "service not running")
	ErrClosed           = New(ClassPrecondition, "already closed")
	ErrChecksumMismatch = New(ClassIntegrity, "checksum mismatch")
	ErrTruncated        = New(ClassIntegrity, "transfer truncated")
)

// classified tags an error with a Class while preserving the chain
type classified struct {
	class Class
	err   error
}

func (e *classified) Error() string {
	return e.err.Error()
}

func (e *classified) Unwrap() error {
	return e.err
}

// New creates a classified error from a message
func New(class Class, msg string) error {
	return &classified{class: class, err: errors.New(msg)}
}

// Newf creates a classified error from a format string
func Newf(class Class, format string, args ...interface{}) error {
	return &classified{class: class, err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error with a class. A nil error stays nil.
func Wrap(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: class, err: err}
}

// Wrapf tags an existing error with a class and a message prefix
func Wrapf(class Class, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return &classified{class: class, err: fmt.Errorf("%s: %w", msg, err)}
}

// ClassOf returns the class of err by walking the wrap chain. Context
// cancellation maps to precondition and context deadline expiry to
// transient. Untagged errors report ClassUnknown.
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var c *classified
	if errors.As(err, &c) {
		return c.class
	}

	if errors.Is(err, context.Canceled) {
		return ClassPrecondition
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	return ClassUnknown
}

// Retryable reports whether err should be retried by default. Only
// transient and system errors retry; unclassified errors do not.
func Retryable(err error) bool {
	if IsCanceled(err) {
		return false
	}

	switch ClassOf(err) {
	case ClassTransient, ClassSystem:
		return true
	default:
		return false
	}
}

// IsCanceled reports whether err represents cancellation, either the
// runtime's ErrCanceled sentinel or a context cancellation
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// IsTransient reports whether err is classified transient
func IsTransient(err error) bool {
	return ClassOf(err) == ClassTransient
}

// IsConfiguration reports whether err is classified configuration
func IsConfiguration(err error) bool {
	return ClassOf(err) == ClassConfiguration
}

// IsPrecondition reports whether err is classified precondition
func IsPrecondition(err error) bool {
	return ClassOf(err) == ClassPrecondition
}

// IsIntegrity reports whether err is classified integrity
func IsIntegrity(err error) bool {
	return ClassOf(err) == ClassIntegrity
}

// IsSystem reports whether err is classified system
func IsSystem(err error) bool {
	return ClassOf(err) == ClassSystem
}
