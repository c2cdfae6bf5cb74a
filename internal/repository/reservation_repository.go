package repository

import (
    "context"
    "database/sql"

    "github.com/velatours/excursion-booking/internal/booking"
    "github.com/velatours/excursion-booking/internal/model"
)

// ReservationRepo holds committed booking records.  Creation happens
// inside the attempt finalizer's transaction; cancellation runs its
// own transaction so the status flip and the seat credit land
// together.
type ReservationRepo struct {
    db           *sql.DB
    availability *AvailabilityRepo
}

// NewReservationRepo constructs a ReservationRepo.
func NewReservationRepo(db *sql.DB, availability *AvailabilityRepo) *ReservationRepo {
    if db == nil || availability == nil {
        panic("nil dependency passed to NewReservationRepo")
    }
    return &ReservationRepo{db: db, availability: availability}
}

// CreateTx inserts a reservation record within the caller's
// transaction and populates its ID.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations
               (reference, excursion_id, date, quantity, amount_cents, currency,
                customer_name, customer_email, status, gateway_ref)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    out, err := tx.ExecContext(ctx, q,
        res.Reference, res.ExcursionID, res.Date, res.Quantity, res.AmountCents, res.Currency,
        res.CustomerName, res.CustomerEmail, res.Status, res.GatewayRef,
    )
    if err != nil {
        return booking.ErrInternal(err)
    }
    id, err := out.LastInsertId()
    if err != nil {
        return booking.ErrInternal(err)
    }
    res.ID = uint64(id)
    return nil
}

// Cancel flips a CONFIRMED reservation to CANCELLED and credits its
// seats back to the ledger in one transaction.  The status update is
// conditional, so a repeated cancellation matches zero rows and
// returns (nil, nil) without releasing anything twice.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64) (*model.Reservation, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const upd = `UPDATE reservations SET status = ? WHERE id = ? AND status = ?`
    out, err := tx.ExecContext(ctx, upd, model.ReservationStatusCancelled, id, model.ReservationStatusConfirmed)
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    affected, err := out.RowsAffected()
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    if affected == 0 {
        return nil, nil
    }

    res, err := r.getTx(ctx, tx, id)
    if err != nil {
        return nil, err
    }
    if err := r.availability.ReleaseTx(ctx, tx, res.ExcursionID, res.Date, res.Quantity); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, booking.ErrInternal(err)
    }
    committed = true
    return res, nil
}

func (r *ReservationRepo) getTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
    const q = `SELECT id, reference, excursion_id, DATE_FORMAT(date, '%Y-%m-%d'), quantity,
                      amount_cents, currency, customer_name, customer_email, status, gateway_ref,
                      created_at, updated_at
               FROM reservations WHERE id = ?`
    var res model.Reservation
    if err := tx.QueryRowContext(ctx, q, id).Scan(
        &res.ID, &res.Reference, &res.ExcursionID, &res.Date, &res.Quantity,
        &res.AmountCents, &res.Currency, &res.CustomerName, &res.CustomerEmail, &res.Status, &res.GatewayRef,
        &res.CreatedAt, &res.UpdatedAt,
    ); err != nil {
        return nil, booking.ErrInternal(err)
    }
    return &res, nil
}

// ListByExcursion returns all reservations for an excursion, newest
// first.
func (r *ReservationRepo) ListByExcursion(ctx context.Context, excursionID uint64) ([]model.Reservation, error) {
    const q = `SELECT id, reference, excursion_id, DATE_FORMAT(date, '%Y-%m-%d'), quantity,
                      amount_cents, currency, customer_name, customer_email, status, gateway_ref,
                      created_at, updated_at
               FROM reservations WHERE excursion_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, excursionID)
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    defer rows.Close()
    var out []model.Reservation
    for rows.Next() {
        var res model.Reservation
        if err := rows.Scan(
            &res.ID, &res.Reference, &res.ExcursionID, &res.Date, &res.Quantity,
            &res.AmountCents, &res.Currency, &res.CustomerName, &res.CustomerEmail, &res.Status, &res.GatewayRef,
            &res.CreatedAt, &res.UpdatedAt,
        ); err != nil {
            return nil, booking.ErrInternal(err)
        }
        out = append(out, res)
    }
    if err := rows.Err(); err != nil {
        return nil, booking.ErrInternal(err)
    }
    return out, nil
}
