// Package errs holds the error kinds shared across the event pipeline.
// Callers classify with errors.Is; wrapping keeps the original cause.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent: a required envelope field (channel, message ts,
	// private metadata) is missing or unreadable. Handled by acknowledging
	// and dropping the event.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrUnauthorized: the actor failed a role check. Handled with a
	// user-visible rejection and no mutation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound: a referenced user or assignment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUpstream: a Slack, database or website call failed.
	ErrUpstream = errors.New("upstream failure")

	// ErrDuplicate: a create hit an existing record (e.g. a second
	// assignment for the same message).
	ErrDuplicate = errors.New("duplicate")

	ErrNoAdmin        = errors.New("no admin configured")
	ErrMultipleAdmins = errors.New("more than one admin configured")
)

// Upstream wraps err as an ErrUpstream attributed to op.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &upstreamError{op: op, err: err}
}

type upstreamError struct {
	op  string
	err error
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *upstreamError) Unwrap() []error {
	return []error{ErrUpstream, e.err}
}

// Malformed returns an ErrMalformedEvent describing what was missing.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedEvent, fmt.Sprintf(format, args...))
}
