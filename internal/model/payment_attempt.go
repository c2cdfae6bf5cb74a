package model

import "time"

// Payment attempt status values.  An attempt is created in
// AUTHORIZING once seats have been decremented and the gateway has
// issued a client token.  Exactly one transition out of AUTHORIZING
// ever succeeds: to COMMITTED on a success callback, or to RELEASED
// on a failure callback or when the hold times out.
const (
    AttemptStatusAuthorizing = "AUTHORIZING"
    AttemptStatusCommitted   = "COMMITTED"
    AttemptStatusReleased    = "RELEASED"
)

// PaymentAttempt is the orchestrator's durable state for one booking
// attempt awaiting its gateway outcome.  It carries everything needed
// to commit (create the reservation record) or compensate (release
// the held seats) when the asynchronous callback arrives, keyed by
// the gateway reference so duplicate callbacks are idempotent.
//
// Fields:
//  ID                  – primary key identifier.
//  CorrelationToken    – token linking the authorization to its outcome;
//                        becomes the reservation reference on commit.
//  GatewayRef          – gateway identifier (payment intent id), unique.
//  ExcursionID         – excursion whose seats are held.
//  ExcursionDocumentID – public identifier, kept for ledger calls.
//  ExcursionTitle      – title snapshot for the confirmation event.
//  Date                – held calendar day in YYYY-MM-DD form.
//  Quantity            – number of seats held.
//  AmountCents         – authorized amount in cents.
//  Currency            – ISO currency code.
//  CustomerName        – name supplied at checkout.
//  CustomerEmail       – email supplied at checkout.
//  Status              – AUTHORIZING, COMMITTED or RELEASED.
//  CreatedAt           – creation timestamp; drives the hold timeout.
//  UpdatedAt           – last update timestamp.
type PaymentAttempt struct {
    ID                  uint64    // payment_attempts.id
    CorrelationToken    string    // payment_attempts.correlation_token
    GatewayRef          string    // payment_attempts.gateway_ref
    ExcursionID         uint64    // payment_attempts.excursion_id
    ExcursionDocumentID string    // payment_attempts.excursion_document_id
    ExcursionTitle      string    // payment_attempts.excursion_title
    Date                string    // payment_attempts.date
    Quantity            int       // payment_attempts.quantity
    AmountCents         int64     // payment_attempts.amount_cents
    Currency            string    // payment_attempts.currency
    CustomerName        string    // payment_attempts.customer_name
    CustomerEmail       string    // payment_attempts.customer_email
    Status              string    // payment_attempts.status
    CreatedAt           time.Time // payment_attempts.created_at
    UpdatedAt           time.Time // payment_attempts.updated_at
}
