package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/velatours/excursion-booking/internal/booking"
    "github.com/velatours/excursion-booking/internal/model"
)

// AvailabilityHandler serves read and admin operations on the seat
// ledger.  It depends on the ledger contract rather than the MySQL
// repository directly, which keeps the handlers testable with an
// in-memory ledger.
type AvailabilityHandler struct {
    Ledger booking.Ledger
}

// NewAvailabilityHandler constructs an AvailabilityHandler.
func NewAvailabilityHandler(ledger booking.Ledger) *AvailabilityHandler {
    if ledger == nil {
        panic("nil ledger passed to NewAvailabilityHandler")
    }
    return &AvailabilityHandler{Ledger: ledger}
}

// availabilityJSON is the wire form of a ledger row.
type availabilityJSON struct {
    ExcursionID    uint64 `json:"excursion_id"`
    Date           string `json:"date"`
    TotalCapacity  int    `json:"total_capacity"`
    AvailableSpots int    `json:"available_spots"`
    IsActive       bool   `json:"is_active"`
}

func toAvailabilityJSON(a *model.Availability) availabilityJSON {
    return availabilityJSON{
        ExcursionID:    a.ExcursionID,
        Date:           a.Date,
        TotalCapacity:  a.TotalCapacity,
        AvailableSpots: a.AvailableSpots,
        IsActive:       a.IsActive,
    }
}

// GetOne handles GET /v1/excursions/:id/availability/:date.  It
// returns the ledger row for a single date, materializing it on
// first access so a never-touched date still reports its full
// capacity.
func (h *AvailabilityHandler) GetOne(c echo.Context) error {
    documentID := c.Param("id")
    date := c.Param("date")

    a, err := h.Ledger.GetOrCreate(c.Request().Context(), documentID, date)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": toAvailabilityJSON(a)})
}

// GetRange handles GET /v1/excursions/:id/availability/:start/:end.
// It returns the ledger rows for the inclusive date range, ascending
// by date, along with a small meta block.  Invalid or oversized
// ranges are rejected with 400.
func (h *AvailabilityHandler) GetRange(c echo.Context) error {
    documentID := c.Param("id")
    start := c.Param("start")
    end := c.Param("end")

    items, err := h.Ledger.Range(c.Request().Context(), documentID, start, end)
    if err != nil {
        return writeError(c, err)
    }
    out := make([]availabilityJSON, 0, len(items))
    for i := range items {
        out = append(out, toAvailabilityJSON(&items[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{
        "data": out,
        "meta": echo.Map{
            "count":      len(out),
            "date_range": echo.Map{"start": start, "end": end},
        },
    })
}

// Check handles POST /v1/excursions/:id/availability/check.  The
// body carries a date and a requested quantity; the response is the
// advisory availability outcome.  Checking reserves nothing: a
// subsequent booking may still fail if the spots are taken in the
// meantime.
func (h *AvailabilityHandler) Check(c echo.Context) error {
    documentID := c.Param("id")
    var body struct {
        Date     string `json:"date"`
        Quantity int    `json:"quantity"`
    }
    if err := c.Bind(&body); err != nil {
        return writeError(c, booking.ErrInvalidRequest("invalid request body"))
    }

    chk, err := h.Ledger.Check(c.Request().Context(), documentID, body.Date, body.Quantity)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "available":       chk.Available,
        "available_spots": chk.AvailableSpots,
        "is_active":       chk.IsActive,
    })
}

// Deactivate handles POST /v1/admin/excursions/:id/availability/:date/deactivate.
// It blacks out the date (holiday, maintenance): the ledger row is
// deactivated and its spots zeroed.  The operation is idempotent, so
// repeating it returns the same result.
func (h *AvailabilityHandler) Deactivate(c echo.Context) error {
    documentID := c.Param("id")
    date := c.Param("date")

    a, err := h.Ledger.Deactivate(c.Request().Context(), documentID, date)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": toAvailabilityJSON(a)})
}
