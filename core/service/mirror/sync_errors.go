package mirror

import (
	"context"
	"errors"
	"net"

	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/mongo"
)

// =============================================================================
// Failure classification
// =============================================================================

// ErrorClass decides what happens to a row after a failed push. Transient and
// Unknown failures stay retryable; Permanent failures park the row in the
// terminal dead state.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTransient
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

type classifiedError struct {
	class ErrorClass
	err   error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of its type.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassTransient, err: err}
}

// Permanent marks err as non-retryable. The executor routes these to dead.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ClassPermanent, err: err}
}

// Classify buckets a push failure. Explicit marks win; otherwise timeouts,
// network faults and an open circuit breaker are transient. Anything
// unrecognized stays Unknown and is retried like a transient failure.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.class
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransient
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return ClassTransient
	}

	return ClassUnknown
}
