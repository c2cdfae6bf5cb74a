package model

import "time"

// Availability is the seat ledger entry for one excursion on one
// calendar day.  There is at most one record per (excursion, date)
// pair; records are created lazily on first access and soft
// deactivated rather than deleted.  AvailableSpots always stays
// within [0, TotalCapacity], and a deactivated record holds zero
// spots.
//
// Fields:
//  ID             – primary key identifier.
//  ExcursionID    – excursion this ledger row belongs to.
//  Date           – calendar day in YYYY-MM-DD form, no time part.
//  TotalCapacity  – capacity snapshot taken when the row was first
//                   materialized; not re-synced from the catalog.
//  AvailableSpots – seats currently available for reservation.
//  IsActive       – false when the date is blacked out.
//  CreatedAt      – timestamp when the record was created.
//  UpdatedAt      – timestamp when the record was last updated.
type Availability struct {
    ID             uint64    // availabilities.id
    ExcursionID    uint64    // availabilities.excursion_id
    Date           string    // availabilities.date
    TotalCapacity  int       // availabilities.total_capacity
    AvailableSpots int       // availabilities.available_spots
    IsActive       bool      // availabilities.is_active
    CreatedAt      time.Time // availabilities.created_at
    UpdatedAt      time.Time // availabilities.updated_at
}

// AvailabilityCheck is the advisory result of asking whether a
// quantity of seats could be reserved right now.  It is never
// persisted and reserves nothing: the authoritative check happens
// inside the reserve operation itself.
type AvailabilityCheck struct {
    Available      bool // true when the record is active and has enough spots
    AvailableSpots int  // spots available at the moment of the check
    IsActive       bool // active flag at the moment of the check
}
