package model

import "time"

// Reservation status values.  A record is only created once payment
// has been confirmed, so CONFIRMED is the initial state.
const (
    ReservationStatusConfirmed = "CONFIRMED"
    ReservationStatusCancelled = "CANCELLED"
)

// Reservation records a committed booking for an excursion date.
// It is plain persistence: the concurrency-sensitive seat counting
// lives entirely in the availability ledger, and by the time a
// reservation exists its seats have already been decremented there.
//
// Fields:
//  ID            – primary key identifier.
//  Reference     – public booking reference (correlation token).
//  ExcursionID   – excursion being booked.
//  Date          – booked calendar day in YYYY-MM-DD form.
//  Quantity      – number of seats booked.
//  AmountCents   – total charged amount in cents.
//  Currency      – ISO currency code of the charge.
//  CustomerName  – name supplied at checkout.
//  CustomerEmail – email supplied at checkout.
//  Status        – CONFIRMED or CANCELLED.
//  GatewayRef    – payment gateway reference (payment intent id).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Reservation struct {
    ID            uint64    // reservations.id
    Reference     string    // reservations.reference
    ExcursionID   uint64    // reservations.excursion_id
    Date          string    // reservations.date
    Quantity      int       // reservations.quantity
    AmountCents   int64     // reservations.amount_cents
    Currency      string    // reservations.currency
    CustomerName  string    // reservations.customer_name
    CustomerEmail string    // reservations.customer_email
    Status        string    // reservations.status
    GatewayRef    string    // reservations.gateway_ref
    CreatedAt     time.Time // reservations.created_at
    UpdatedAt     time.Time // reservations.updated_at
}
