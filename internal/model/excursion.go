package model

import "time"

// Excursion is the read-only catalog record for a bookable tour.
// The booking core never mutates excursions; capacity and pricing
// are consumed as a snapshot when availability records are
// materialized.
//
// Fields:
//  ID          – primary key identifier.
//  DocumentID  – stable public identifier used by API clients.
//  Title       – display name of the excursion.
//  PriceCents  – price per person in cents.
//  MaxCapacity – maximum number of seats per date.
//  CreatedAt   – timestamp when the record was created.
//  UpdatedAt   – timestamp when the record was last updated.
type Excursion struct {
    ID          uint64    // excursions.id
    DocumentID  string    // excursions.document_id
    Title       string    // excursions.title
    PriceCents  int64     // excursions.price_cents
    MaxCapacity int       // excursions.max_capacity
    CreatedAt   time.Time // excursions.created_at
    UpdatedAt   time.Time // excursions.updated_at
}
