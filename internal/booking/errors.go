// Package booking holds the decision rules of the marina: whether a
// reservation may be created and whether a catway may be created,
// changed or deleted.  Every rule is a pure function over values
// loaded by the caller; none of them touches a store or the clock.
// Refusals are returned as *Error values carrying a Kind so callers
// branch on the kind instead of parsing messages.
package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a refusal or failure.  The string value is the
// error code exposed to API clients.
type Kind string

const (
	MissingFields         Kind = "missing_fields"
	InvalidDate           Kind = "invalid_date"
	InvalidRange          Kind = "invalid_range"
	CheckInInPast         Kind = "check_in_in_past"
	OverlapConflict       Kind = "overlap_conflict"
	DuplicateNumber       Kind = "duplicate_number"
	HasActiveReservations Kind = "has_active_reservations"
	EmptyState            Kind = "empty_state"
	InvalidCatway         Kind = "invalid_catway"
	InvalidUser           Kind = "invalid_user"
	DuplicateEmail        Kind = "duplicate_email"
	Unauthorized          Kind = "unauthorized"
	NotFound              Kind = "not_found"
	ConflictError         Kind = "conflict"
	StoreUnavailable      Kind = "store_unavailable"
)

// Error is a typed refusal.  Message is safe to show to end users.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail builds an *Error of the given kind.
func Fail(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind carried by err, or "" when err is nil or
// not a booking error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the failure is transient.  Only store
// outages qualify; every other kind is terminal for the request.
func Retryable(err error) bool {
	return Is(err, StoreUnavailable)
}
