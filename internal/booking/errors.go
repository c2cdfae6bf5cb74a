// Package booking contains the domain core of the service: the
// structured error taxonomy, the ports implemented by the storage and
// gateway layers, and the orchestrator that drives a booking attempt
// from validation through payment authorization to commit or release.
package booking

import (
    "errors"
    "fmt"
)

// Kind classifies a booking error.  Handlers translate kinds into
// HTTP status codes and clients can branch on them without parsing
// messages.
type Kind string

const (
    // KindInvalidRequest marks caller errors: bad or missing
    // parameters, non-positive quantities, malformed dates.
    KindInvalidRequest Kind = "invalid_request"
    // KindResourceNotFound marks lookups of excursions unknown to
    // the catalog.
    KindResourceNotFound Kind = "resource_not_found"
    // KindInvalidRange marks range queries whose start date follows
    // the end date or whose span exceeds the configured maximum.
    KindInvalidRange Kind = "invalid_range"
    // KindInsufficientCapacity marks the business condition of not
    // enough seats; the context carries the current spot count.
    KindInsufficientCapacity Kind = "insufficient_capacity"
    // KindGatewayError marks payment gateway failures.  Held seats
    // are always released before this surfaces to the caller.
    KindGatewayError Kind = "gateway_error"
    // KindConcurrencyConflict marks a lost race at commit time
    // (deadlock or lock timeout).  Callers may retry check+reserve
    // once; the orchestrator already does.
    KindConcurrencyConflict Kind = "concurrency_conflict"
    // KindInternal marks unexpected failures.  The underlying cause
    // is wrapped but never serialized to clients.
    KindInternal Kind = "internal"
)

// Error is the structured error crossing the core's boundary.  It
// carries a kind, a human-readable message and optional context
// values (e.g. the available spot count on an insufficient-capacity
// failure).  Raw driver and gateway errors stay wrapped in Err and
// are reachable via errors.Unwrap for logging only.
type Error struct {
    Kind    Kind
    Message string
    Context map[string]any
    Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
    if e.Err != nil {
        return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
    }
    return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindInternal when err is not a
// booking error.  A nil err yields the empty kind.
func KindOf(err error) Kind {
    if err == nil {
        return ""
    }
    var be *Error
    if errors.As(err, &be) {
        return be.Kind
    }
    return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// ErrInvalidRequest builds a caller-error with the given message.
func ErrInvalidRequest(msg string) *Error {
    return &Error{Kind: KindInvalidRequest, Message: msg}
}

// ErrResourceNotFound reports an excursion unknown to the catalog.
func ErrResourceNotFound(documentID string) *Error {
    return &Error{
        Kind:    KindResourceNotFound,
        Message: "excursion not found",
        Context: map[string]any{"excursion_id": documentID},
    }
}

// ErrReservationNotFound reports a reservation id with no row in
// the expected status.
func ErrReservationNotFound(id uint64) *Error {
    return &Error{
        Kind:    KindResourceNotFound,
        Message: "reservation not found",
        Context: map[string]any{"reservation_id": id},
    }
}

// ErrInvalidRange reports an unusable availability range query.
func ErrInvalidRange(msg, startDate, endDate string) *Error {
    return &Error{
        Kind:    KindInvalidRange,
        Message: msg,
        Context: map[string]any{"start_date": startDate, "end_date": endDate},
    }
}

// ErrInsufficientCapacity reports that a reserve could not be
// satisfied.  The current spot count is included so callers can
// surface it to the end user.
func ErrInsufficientCapacity(available, requested int) *Error {
    return &Error{
        Kind:    KindInsufficientCapacity,
        Message: "not enough available spots",
        Context: map[string]any{"available_spots": available, "requested": requested},
    }
}

// ErrGateway wraps a payment gateway failure.
func ErrGateway(err error) *Error {
    return &Error{Kind: KindGatewayError, Message: "payment authorization failed", Err: err}
}

// ErrConcurrencyConflict wraps a lost commit-time race.
func ErrConcurrencyConflict(err error) *Error {
    return &Error{Kind: KindConcurrencyConflict, Message: "conflicting concurrent update", Err: err}
}

// ErrInternal wraps an unexpected failure.
func ErrInternal(err error) *Error {
    return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}
