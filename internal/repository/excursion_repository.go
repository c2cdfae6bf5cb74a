package repository // repository implements data access over database/sql

import (
    "context"
    "database/sql"
    "errors"

    "github.com/velatours/excursion-booking/internal/booking"
    "github.com/velatours/excursion-booking/internal/model"
)

// ExcursionRepo is the read-only catalog lookup.  The booking core
// never writes excursions; content management owns that table.
type ExcursionRepo struct {
    db *sql.DB
}

// NewExcursionRepo constructs an ExcursionRepo bound to the given DB.
func NewExcursionRepo(db *sql.DB) *ExcursionRepo { return &ExcursionRepo{db: db} }

// GetByDocumentID returns the excursion with the given public
// identifier.  Unknown identifiers yield a resource-not-found
// booking error.
func (r *ExcursionRepo) GetByDocumentID(ctx context.Context, documentID string) (*model.Excursion, error) {
    const q = `SELECT id, document_id, title, price_cents, max_capacity, created_at, updated_at
               FROM excursions WHERE document_id = ?`
    var e model.Excursion
    err := r.db.QueryRowContext(ctx, q, documentID).Scan(
        &e.ID, &e.DocumentID, &e.Title, &e.PriceCents, &e.MaxCapacity, &e.CreatedAt, &e.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, booking.ErrResourceNotFound(documentID)
        }
        return nil, booking.ErrInternal(err)
    }
    return &e, nil
}
