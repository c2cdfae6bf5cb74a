package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"

    "github.com/velatours/excursion-booking/internal/booking"
    "github.com/velatours/excursion-booking/internal/model"
    "github.com/velatours/excursion-booking/internal/utils"
)

// MySQL error numbers that indicate a lost race rather than a broken
// statement: 1213 is a deadlock victim, 1205 a lock wait timeout.
const (
    mysqlErrDeadlock        = 1213
    mysqlErrLockWaitTimeout = 1205
)

// AvailabilityRepo is the seat ledger.  It owns every mutation of
// availability rows and keeps two invariants at all times:
//
//   - available_spots stays within [0, total_capacity]
//   - an inactive row holds zero spots and rejects every reserve
//
// Each operation touches exactly one (excursion_id, date) row with a
// single conditional UPDATE, so concurrent reservations against the
// same date serialize at the database without locking unrelated
// rows, and the guarantees hold across replicas.
type AvailabilityRepo struct {
    db           *sql.DB
    excursions   *ExcursionRepo
    maxRangeDays int
}

// NewAvailabilityRepo constructs an AvailabilityRepo.  maxRangeDays
// bounds range queries; values below 1 disable the span check.
func NewAvailabilityRepo(db *sql.DB, excursions *ExcursionRepo, maxRangeDays int) *AvailabilityRepo {
    if db == nil || excursions == nil {
        panic("nil dependency passed to NewAvailabilityRepo")
    }
    return &AvailabilityRepo{db: db, excursions: excursions, maxRangeDays: maxRangeDays}
}

// availabilityColumns is the shared SELECT list.  DATE_FORMAT keeps
// the day a plain string instead of a midnight timestamp.
const availabilityColumns = `id, excursion_id, DATE_FORMAT(date, '%Y-%m-%d'), total_capacity, available_spots, is_active, created_at, updated_at`

func scanAvailability(row *sql.Row) (*model.Availability, error) {
    var a model.Availability
    err := row.Scan(&a.ID, &a.ExcursionID, &a.Date, &a.TotalCapacity, &a.AvailableSpots, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
    if err != nil {
        return nil, err
    }
    return &a, nil
}

// get loads the ledger row for an excursion and date.
func (r *AvailabilityRepo) get(ctx context.Context, excursionID uint64, date string) (*model.Availability, error) {
    q := fmt.Sprintf(`SELECT %s FROM availabilities WHERE excursion_id = ? AND date = ?`, availabilityColumns)
    a, err := scanAvailability(r.db.QueryRowContext(ctx, q, excursionID, date))
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    return a, nil
}

// GetOrCreate returns the ledger row for the excursion and date,
// materializing it on first access seeded with the excursion's
// current capacity.  The insert is an upsert on the unique
// (excursion_id, date) key, so concurrent first accesses create
// exactly one row; losers of the insert race simply read the
// winner's row.
func (r *AvailabilityRepo) GetOrCreate(ctx context.Context, documentID, date string) (*model.Availability, error) {
    if err := utils.ValidateDate(date); err != nil {
        return nil, booking.ErrInvalidRequest(err.Error())
    }
    exc, err := r.excursions.GetByDocumentID(ctx, documentID)
    if err != nil {
        return nil, err
    }
    const ins = `INSERT INTO availabilities (excursion_id, date, total_capacity, available_spots, is_active)
                 VALUES (?, ?, ?, ?, 1)
                 ON DUPLICATE KEY UPDATE id = id`
    if _, err := r.db.ExecContext(ctx, ins, exc.ID, date, exc.MaxCapacity, exc.MaxCapacity); err != nil {
        return nil, wrapLedgerErr(err)
    }
    return r.get(ctx, exc.ID, date)
}

// Check reports whether requested seats could be reserved right now.
// It is advisory only and mutates nothing beyond the lazy
// materialization of the row; the outcome can go stale before a
// subsequent Reserve, which re-validates atomically.
func (r *AvailabilityRepo) Check(ctx context.Context, documentID, date string, requested int) (*model.AvailabilityCheck, error) {
    if requested <= 0 {
        return nil, booking.ErrInvalidRequest("requested spots must be a positive integer")
    }
    a, err := r.GetOrCreate(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    return &model.AvailabilityCheck{
        Available:      a.IsActive && a.AvailableSpots >= requested,
        AvailableSpots: a.AvailableSpots,
        IsActive:       a.IsActive,
    }, nil
}

// Reserve decrements available_spots by quantity and returns the
// updated row.  Validation and decrement happen in one conditional
// UPDATE: the WHERE clause re-checks is_active and the spot count at
// commit time, so two concurrent reserves can never jointly oversell
// a date.  When the condition fails the current row is re-read and
// an insufficient-capacity error carrying its spot count is
// returned.
func (r *AvailabilityRepo) Reserve(ctx context.Context, documentID, date string, quantity int) (*model.Availability, error) {
    if quantity <= 0 {
        return nil, booking.ErrInvalidRequest("quantity must be a positive integer")
    }
    a, err := r.GetOrCreate(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    const upd = `UPDATE availabilities
                 SET available_spots = available_spots - ?
                 WHERE excursion_id = ? AND date = ? AND is_active = 1 AND available_spots >= ?`
    res, err := r.db.ExecContext(ctx, upd, quantity, a.ExcursionID, date, quantity)
    if err != nil {
        return nil, wrapLedgerErr(err)
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    if affected == 0 {
        cur, err := r.get(ctx, a.ExcursionID, date)
        if err != nil {
            return nil, err
        }
        return nil, booking.ErrInsufficientCapacity(cur.AvailableSpots, quantity)
    }
    return r.get(ctx, a.ExcursionID, date)
}

// Release returns quantity seats to the ledger, clamped to the
// row's own total_capacity snapshot via LEAST so that over-release
// (e.g. a double cancellation) can never push spots above capacity.
// Releasing against an inactive row restores nothing visible to
// reserves, since inactive rows reject them regardless.
func (r *AvailabilityRepo) Release(ctx context.Context, documentID, date string, quantity int) (*model.Availability, error) {
    if quantity <= 0 {
        return nil, booking.ErrInvalidRequest("quantity must be a positive integer")
    }
    a, err := r.GetOrCreate(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    const upd = `UPDATE availabilities
                 SET available_spots = LEAST(available_spots + ?, total_capacity)
                 WHERE excursion_id = ? AND date = ?`
    if _, err := r.db.ExecContext(ctx, upd, quantity, a.ExcursionID, date); err != nil {
        return nil, wrapLedgerErr(err)
    }
    return r.get(ctx, a.ExcursionID, date)
}

// ReleaseTx is the transactional variant of Release for callers
// that must credit seats atomically with their own bookkeeping (the
// attempt finalizers, reservation cancellation).  It addresses the
// row by numeric excursion id since the caller already resolved it.
func (r *AvailabilityRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, excursionID uint64, date string, quantity int) error {
    if quantity <= 0 {
        return booking.ErrInvalidRequest("quantity must be a positive integer")
    }
    const upd = `UPDATE availabilities
                 SET available_spots = LEAST(available_spots + ?, total_capacity)
                 WHERE excursion_id = ? AND date = ?`
    if _, err := tx.ExecContext(ctx, upd, quantity, excursionID, date); err != nil {
        return wrapLedgerErr(err)
    }
    return nil
}

// Deactivate blacks out a date: the row is deactivated and its spot
// count zeroed, unconditionally and idempotently.  Reserves against
// a deactivated date fail with insufficient capacity until the date
// is reactivated by an explicit admin operation.
func (r *AvailabilityRepo) Deactivate(ctx context.Context, documentID, date string) (*model.Availability, error) {
    a, err := r.GetOrCreate(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    const upd = `UPDATE availabilities SET is_active = 0, available_spots = 0
                 WHERE excursion_id = ? AND date = ?`
    if _, err := r.db.ExecContext(ctx, upd, a.ExcursionID, date); err != nil {
        return nil, wrapLedgerErr(err)
    }
    return r.get(ctx, a.ExcursionID, date)
}

// Range returns the ledger rows for an excursion between startDate
// and endDate inclusive, ascending by date.  Only materialized rows
// are returned; dates never touched have no row yet.  The query is a
// pure read and is restartable.
func (r *AvailabilityRepo) Range(ctx context.Context, documentID, startDate, endDate string) ([]model.Availability, error) {
    if err := utils.ValidateDate(startDate); err != nil {
        return nil, booking.ErrInvalidRange(err.Error(), startDate, endDate)
    }
    if err := utils.ValidateDate(endDate); err != nil {
        return nil, booking.ErrInvalidRange(err.Error(), startDate, endDate)
    }
    if startDate > endDate {
        return nil, booking.ErrInvalidRange("start date must not be after end date", startDate, endDate)
    }
    if r.maxRangeDays > 0 {
        days, err := utils.DaysBetween(startDate, endDate)
        if err != nil {
            return nil, booking.ErrInvalidRange(err.Error(), startDate, endDate)
        }
        if days > r.maxRangeDays {
            return nil, booking.ErrInvalidRange(
                fmt.Sprintf("range must not exceed %d days", r.maxRangeDays), startDate, endDate)
        }
    }
    exc, err := r.excursions.GetByDocumentID(ctx, documentID)
    if err != nil {
        return nil, err
    }
    q := fmt.Sprintf(`SELECT %s FROM availabilities
                      WHERE excursion_id = ? AND date BETWEEN ? AND ?
                      ORDER BY date ASC`, availabilityColumns)
    rows, err := r.db.QueryContext(ctx, q, exc.ID, startDate, endDate)
    if err != nil {
        return nil, booking.ErrInternal(err)
    }
    defer rows.Close()
    var out []model.Availability
    for rows.Next() {
        var a model.Availability
        if err := rows.Scan(&a.ID, &a.ExcursionID, &a.Date, &a.TotalCapacity, &a.AvailableSpots, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
            return nil, booking.ErrInternal(err)
        }
        out = append(out, a)
    }
    if err := rows.Err(); err != nil {
        return nil, booking.ErrInternal(err)
    }
    return out, nil
}

// wrapLedgerErr classifies driver errors: deadlocks and lock wait
// timeouts become concurrency conflicts the caller may retry once,
// everything else is internal.
func wrapLedgerErr(err error) error {
    var me *mysql.MySQLError
    if errors.As(err, &me) && (me.Number == mysqlErrDeadlock || me.Number == mysqlErrLockWaitTimeout) {
        return booking.ErrConcurrencyConflict(err)
    }
    return booking.ErrInternal(err)
}
