package models

import (
	"context"
	"errors"
)

// Sentinel errors forming the orchestrator error taxonomy.
// Callers wrap them with context and match with errors.Is.
var (
	// ErrUnknownCapability means no agent advertises the requested capability.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrNoEligibleAgent means every agent for a capability is offline.
	ErrNoEligibleAgent = errors.New("no eligible agent")
	// ErrTimeout means a worker invocation exceeded its timeout.
	ErrTimeout = errors.New("worker timeout")
	// ErrRemote means the worker reported an application-level failure.
	ErrRemote = errors.New("remote error")
	// ErrUnreachable means the worker could not be reached.
	ErrUnreachable = errors.New("worker unreachable")
	// ErrDeadlineExceeded means the plan-level deadline expired.
	ErrDeadlineExceeded = errors.New("plan deadline exceeded")
	// ErrCancelled means the caller cancelled the run.
	ErrCancelled = errors.New("cancelled")
)

// ErrorKind classifies an error into the taxonomy for results and metrics.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindUnknownCapability ErrorKind = "unknown_capability"
	ErrorKindNoEligibleAgent   ErrorKind = "no_eligible_agent"
	ErrorKindTimeout           ErrorKind = "timeout"
	ErrorKindRemote            ErrorKind = "remote_error"
	ErrorKindUnreachable       ErrorKind = "unreachable"
	ErrorKindDeadlineExceeded  ErrorKind = "deadline_exceeded"
	ErrorKindCancelled         ErrorKind = "cancelled"
	ErrorKindInternal          ErrorKind = "internal"
)

// Retryable reports whether the engine may retry a task failing with this kind.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindTimeout || k == ErrorKindUnreachable
}

// Degrading reports whether the kind counts toward an agent's consecutive failures.
func (k ErrorKind) Degrading() bool {
	return k == ErrorKindRemote || k == ErrorKindUnreachable
}

// KindOf maps an error to its ErrorKind. Order matters: deadline and
// cancellation win over the transport-level classification they caused.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrDeadlineExceeded):
		return ErrorKindDeadlineExceeded
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	case errors.Is(err, ErrUnknownCapability):
		return ErrorKindUnknownCapability
	case errors.Is(err, ErrNoEligibleAgent):
		return ErrorKindNoEligibleAgent
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrRemote):
		return ErrorKindRemote
	case errors.Is(err, ErrUnreachable):
		return ErrorKindUnreachable
	default:
		return ErrorKindInternal
	}
}
