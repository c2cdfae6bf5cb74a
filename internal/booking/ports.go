package booking

import (
    "context"
    "time"

    "github.com/velatours/excursion-booking/internal/model"
)

// Catalog is the read-only excursion lookup.  Implemented by
// repository.ExcursionRepo.
type Catalog interface {
    GetByDocumentID(ctx context.Context, documentID string) (*model.Excursion, error)
}

// Ledger is the availability ledger contract.  All operations are
// keyed by (excursion document id, date) and each one is an atomic,
// isolated transition on exactly one record.  Implemented by
// repository.AvailabilityRepo.
type Ledger interface {
    GetOrCreate(ctx context.Context, documentID, date string) (*model.Availability, error)
    Check(ctx context.Context, documentID, date string, requested int) (*model.AvailabilityCheck, error)
    Reserve(ctx context.Context, documentID, date string, quantity int) (*model.Availability, error)
    Release(ctx context.Context, documentID, date string, quantity int) (*model.Availability, error)
    Deactivate(ctx context.Context, documentID, date string) (*model.Availability, error)
    Range(ctx context.Context, documentID, startDate, endDate string) ([]model.Availability, error)
}

// AuthorizeRequest is handed to the payment gateway when a booking
// attempt is ready to be charged.  The correlation token and the
// metadata travel with the authorization so the asynchronous outcome
// can be tied back to the attempt.
type AuthorizeRequest struct {
    AmountCents      int64
    Currency         string
    CorrelationToken string
    Metadata         map[string]string
}

// Authorization is the gateway's synchronous answer: a client token
// the frontend uses to complete the charge, and the gateway's own
// reference for the authorization.
type Authorization struct {
    ClientToken string
    GatewayRef  string
}

// Gateway creates payment authorizations.  The eventual outcome
// (succeeded or failed) arrives later through a webhook and is fed
// to Service.HandleGatewayOutcome.  Implemented by
// payment.StripeGateway.
type Gateway interface {
    Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error)
}

// AttemptStore persists the orchestrator's state machine.  Commit
// and Release finalize an attempt atomically: the conditional
// AUTHORIZING transition and its consequence (the reservation
// record, or the seat credit) either both land or neither does.
// Both return nils without error when no row is in AUTHORIZING, so
// duplicate callbacks and sweep/callback races are no-ops, while a
// transient failure rolls the attempt back for the next delivery to
// retry.  Implemented by repository.PaymentAttemptRepo.
type AttemptStore interface {
    Create(ctx context.Context, a *model.PaymentAttempt) error
    Commit(ctx context.Context, gatewayRef string) (*model.PaymentAttempt, *model.Reservation, error)
    Release(ctx context.Context, gatewayRef string) (*model.PaymentAttempt, error)
    ListStale(ctx context.Context, olderThan time.Time) ([]model.PaymentAttempt, error)
}
