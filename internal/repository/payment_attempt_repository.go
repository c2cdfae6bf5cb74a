package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/velatours/excursion-booking/internal/booking"
    "github.com/velatours/excursion-booking/internal/model"
)

// PaymentAttemptRepo persists the orchestrator's per-attempt state.
// Rows are keyed by the unique gateway reference.  Finalizing an
// attempt (Commit, Release) runs the conditional status transition
// and its consequence, the reservation insert or the seat credit,
// in one transaction, so a failure in either statement rolls the
// attempt back to AUTHORIZING and a redelivery or the sweep can
// finish the job.  Duplicate deliveries match zero rows on the
// transition and become no-ops.
type PaymentAttemptRepo struct {
    db           *sql.DB
    availability *AvailabilityRepo
    reservations *ReservationRepo
}

// NewPaymentAttemptRepo constructs a PaymentAttemptRepo.
func NewPaymentAttemptRepo(db *sql.DB, availability *AvailabilityRepo, reservations *ReservationRepo) *PaymentAttemptRepo {
    if db == nil || availability == nil || reservations == nil {
        panic("nil dependency passed to NewPaymentAttemptRepo")
    }
    return &PaymentAttemptRepo{db: db, availability: availability, reservations: reservations}
}

// Create inserts a new attempt and populates its ID.
func (r *PaymentAttemptRepo) Create(ctx context.Context, a *model.PaymentAttempt) error {
    const q = `INSERT INTO payment_attempts
               (correlation_token, gateway_ref, excursion_id, excursion_document_id, excursion_title,
                date, quantity, amount_cents, currency, customer_name, customer_email, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        a.CorrelationToken, a.GatewayRef, a.ExcursionID, a.ExcursionDocumentID, a.ExcursionTitle,
        a.Date, a.Quantity, a.AmountCents, a.Currency, a.CustomerName, a.CustomerEmail, a.Status,
    )
    if err != nil {
        return booking.ErrInternal(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return booking.ErrInternal(err)
    }
    a.ID = uint64(id)
    return nil
}

// Commit finalizes a successful payment: the attempt moves from
// AUTHORIZING to COMMITTED and the confirmed reservation record is
// inserted, atomically.  When no row is in AUTHORIZING (unknown
// reference, or a duplicate delivery that already transitioned it)
// it returns (nil, nil, nil) so callers treat the delivery as
// already handled.  On any statement failure the transaction rolls
// back and the attempt stays AUTHORIZING for the next delivery.
func (r *PaymentAttemptRepo) Commit(ctx context.Context, gatewayRef string) (*model.PaymentAttempt, *model.Reservation, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, nil, booking.ErrInternal(err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    attempt, err := r.transitionTx(ctx, tx, gatewayRef, model.AttemptStatusAuthorizing, model.AttemptStatusCommitted)
    if err != nil {
        return nil, nil, err
    }
    if attempt == nil {
        return nil, nil, nil
    }

    res := &model.Reservation{
        Reference:     attempt.CorrelationToken,
        ExcursionID:   attempt.ExcursionID,
        Date:          attempt.Date,
        Quantity:      attempt.Quantity,
        AmountCents:   attempt.AmountCents,
        Currency:      attempt.Currency,
        CustomerName:  attempt.CustomerName,
        CustomerEmail: attempt.CustomerEmail,
        Status:        model.ReservationStatusConfirmed,
        GatewayRef:    attempt.GatewayRef,
    }
    if err := r.reservations.CreateTx(ctx, tx, res); err != nil {
        return nil, nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, nil, booking.ErrInternal(err)
    }
    committed = true
    return attempt, res, nil
}

// Release finalizes a failed, abandoned or swept payment: the
// attempt moves from AUTHORIZING to RELEASED and its seats are
// credited back to the availability row, atomically.  The same
// (nil, nil) convention and rollback behavior as Commit apply, so
// neither a duplicate delivery nor a transient failure can drop or
// double-apply the seat credit.
func (r *PaymentAttemptRepo) Release(ctx context.Context, gatewayRef string) (*model.PaymentAttempt, error) {
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

    attempt, err := r.transitionTx(ctx, tx, gatewayRef, model.AttemptStatusAuthorizing, model.AttemptStatusReleased)
    if err != nil {
        return nil, err
    }
    if attempt == nil {
        return nil, nil
    }
    if err := r.availability.ReleaseTx(ctx, tx, attempt.ExcursionID, attempt.Date, attempt.Quantity); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, booking.ErrInternal(err)
    }
    committed = true
    return attempt, nil
}

// ListStale returns attempts still AUTHORIZING whose hold began at
// or before the cutoff.  The sweeper releases their seats; the
// conditional transition inside Release keeps sweep and late
// callbacks from both acting on the same attempt.
func (r *PaymentAttemptRepo) ListStale(ctx context.Context, olderThan time.Time) ([]model.PaymentAttempt, error) {
    const q = `SELECT id, correlation_token, gateway_ref, excursion_id, excursion_document_id, excursion_title,
                      DATE_FORMAT(date, '%Y-%m-%d'), quantity, amount_cents, currency,
                      customer_name, customer_email, status, created_at, updated_at
               FROM payment_attempts
               WHERE status = ? AND created_at <= ?`
    rows, err := r.db.QueryContext(ctx, q, model.AttemptStatusAuthorizing, olderThan.UTC())
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    defer rows.Close()
    var out []model.PaymentAttempt
    for rows.Next() {
        var a model.PaymentAttempt
        if err := scanAttempt(rows.Scan, &a); err != nil {
            return nil, booking.ErrInternal(err)
        }
        out = append(out, a)
    }
    if err := rows.Err(); err != nil {
        return nil, booking.ErrInternal(err)
    }
    return out, nil
}

// transitionTx runs the conditional status update within tx and
// returns the transitioned row, or (nil, nil) when no row was in the
// source status.
func (r *PaymentAttemptRepo) transitionTx(ctx context.Context, tx *sql.Tx, gatewayRef, from, to string) (*model.PaymentAttempt, error) {
    const upd = `UPDATE payment_attempts SET status = ? WHERE gateway_ref = ? AND status = ?`
    res, err := tx.ExecContext(ctx, upd, to, gatewayRef, from)
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    if affected == 0 {
        return nil, nil
    }
    const q = `SELECT id, correlation_token, gateway_ref, excursion_id, excursion_document_id, excursion_title,
                      DATE_FORMAT(date, '%Y-%m-%d'), quantity, amount_cents, currency,
                      customer_name, customer_email, status, created_at, updated_at
               FROM payment_attempts WHERE gateway_ref = ?`
    var a model.PaymentAttempt
    if err := scanAttempt(tx.QueryRowContext(ctx, q, gatewayRef).Scan, &a); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, nil
        }
        return nil, booking.ErrInternal(err)
    }
    return &a, nil
}

func scanAttempt(scan func(dest ...any) error, a *model.PaymentAttempt) error {
    return scan(
        &a.ID, &a.CorrelationToken, &a.GatewayRef, &a.ExcursionID, &a.ExcursionDocumentID, &a.ExcursionTitle,
        &a.Date, &a.Quantity, &a.AmountCents, &a.Currency,
        &a.CustomerName, &a.CustomerEmail, &a.Status, &a.CreatedAt, &a.UpdatedAt,
    )
}
