// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a booking reaches the
// committed state.  It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying
// the primary database.
type BookingConfirmedEvent struct {
    ReservationID  uint64 `json:"reservation_id"`
    Reference      string `json:"reference"`
    ExcursionID    uint64 `json:"excursion_id"`
    ExcursionTitle string `json:"excursion_title"`
    Date           string `json:"date"`
    Quantity       int    `json:"quantity"`
    AmountCents    int64  `json:"amount_cents"`
    Currency       string `json:"currency"`
    CustomerEmail  string `json:"customer_email"`
    ConfirmedAt    string `json:"confirmed_at"`
}
