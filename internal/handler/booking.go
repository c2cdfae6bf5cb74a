package handler

import (
    "context"
    "io"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/velatours/excursion-booking/internal/booking"
    "github.com/velatours/excursion-booking/internal/model"
    "github.com/velatours/excursion-booking/internal/payment"
)

// WebhookVerifier checks a raw gateway callback and extracts its
// outcome.  Implemented by payment.StripeGateway.
type WebhookVerifier interface {
    ParseWebhook(payload []byte, signatureHeader string) (*payment.Outcome, error)
}

// ReservationRecords is the record-store surface the handlers need:
// listing committed reservations and cancelling one (which credits
// its seats back).  Implemented by repository.ReservationRepo.
type ReservationRecords interface {
    ListByExcursion(ctx context.Context, excursionID uint64) ([]model.Reservation, error)
    Cancel(ctx context.Context, id uint64) (*model.Reservation, error)
}

// BookingHandler serves the booking flow: payment intent creation,
// the gateway webhook, and the plain reservation record listing.
type BookingHandler struct {
    Svc          *booking.Service
    Verifier     WebhookVerifier
    Catalog      booking.Catalog
    Reservations ReservationRecords
}

// NewBookingHandler constructs a BookingHandler.  All dependencies
// must be non-nil.
func NewBookingHandler(svc *booking.Service, verifier WebhookVerifier, catalog booking.Catalog, reservations ReservationRecords) *BookingHandler {
    if svc == nil || verifier == nil || catalog == nil || reservations == nil {
        panic("nil dependency passed to NewBookingHandler")
    }
    return &BookingHandler{Svc: svc, Verifier: verifier, Catalog: catalog, Reservations: reservations}
}

// CreatePaymentIntent handles POST /v1/bookings/payment-intent.  It
// runs the synchronous half of a booking: seats are reserved and a
// payment intent created.  The returned client token lets the
// frontend complete the charge; the booking commits or releases when
// the gateway's webhook arrives.
func (h *BookingHandler) CreatePaymentIntent(c echo.Context) error {
    var body struct {
        ExcursionID   string `json:"excursion_id"`
        Date          string `json:"booking_date"`
        Quantity      int    `json:"quantity"`
        CustomerName  string `json:"customer_name"`
        CustomerEmail string `json:"customer_email"`
    }
    if err := c.Bind(&body); err != nil {
        return writeError(c, booking.ErrInvalidRequest("invalid request body"))
    }

    resp, err := h.Svc.CreateBookingIntent(c.Request().Context(), booking.IntentRequest{
        ExcursionID:   body.ExcursionID,
        Date:          body.Date,
        Quantity:      body.Quantity,
        CustomerName:  body.CustomerName,
        CustomerEmail: body.CustomerEmail,
    })
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "data": echo.Map{
            "client_secret":     resp.ClientToken,
            "payment_intent_id": resp.GatewayRef,
            "correlation_token": resp.CorrelationToken,
            "amount_cents":      resp.AmountCents,
            "currency":          resp.Currency,
            "excursion": echo.Map{
                "title":            resp.ExcursionTitle,
                "unit_price_cents": resp.UnitPriceCents,
            },
        },
    })
}

// StripeWebhook handles POST /v1/bookings/webhook.  The raw body is
// required for signature verification, so the payload is read before
// any decoding.  Unhandled event types are acknowledged untouched;
// handled outcomes are applied idempotently, so gateway retries and
// duplicate deliveries are safe.
func (h *BookingHandler) StripeWebhook(c echo.Context) error {
    payload, err := io.ReadAll(c.Request().Body)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
    }
    outcome, err := h.Verifier.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "webhook verification failed"})
    }
    if outcome.Handled {
        if err := h.Svc.HandleGatewayOutcome(c.Request().Context(), outcome.GatewayRef, outcome.Succeeded); err != nil {
            // A 5xx makes the gateway redeliver; the conditional
            // transition keeps the redelivery idempotent.
            return writeError(c, err)
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// CancelReservation handles POST /v1/admin/reservations/:id/cancel.
// The status flip and the seat credit happen in one transaction, and
// only a CONFIRMED row can be cancelled, so repeating the call finds
// nothing to flip and reports 404 instead of releasing twice.
func (h *BookingHandler) CancelReservation(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil {
        return writeError(c, booking.ErrInvalidRequest("reservation id must be a positive integer"))
    }
    res, err := h.Reservations.Cancel(c.Request().Context(), id)
    if err != nil {
        return writeError(c, err)
    }
    if res == nil {
        return writeError(c, booking.ErrReservationNotFound(id))
    }
    return c.JSON(http.StatusOK, echo.Map{
        "data": echo.Map{
            "id":        res.ID,
            "reference": res.Reference,
            "status":    res.Status,
            "date":      res.Date,
            "quantity":  res.Quantity,
        },
    })
}

// ListReservations handles GET /v1/excursions/:id/reservations.  It
// resolves the excursion and returns its committed reservation
// records, newest first.  This is plain record listing, outside the
// ledger's concurrency contract.
func (h *BookingHandler) ListReservations(c echo.Context) error {
    documentID := c.Param("id")
    exc, err := h.Catalog.GetByDocumentID(c.Request().Context(), documentID)
    if err != nil {
        return writeError(c, err)
    }
    items, err := h.Reservations.ListByExcursion(c.Request().Context(), exc.ID)
    if err != nil {
        return writeError(c, err)
    }
    out := make([]echo.Map, 0, len(items))
    for _, r := range items {
        out = append(out, echo.Map{
            "id":             r.ID,
            "reference":      r.Reference,
            "date":           r.Date,
            "quantity":       r.Quantity,
            "amount_cents":   r.AmountCents,
            "currency":       r.Currency,
            "customer_name":  r.CustomerName,
            "customer_email": r.CustomerEmail,
            "status":         r.Status,
            "created_at":     r.CreatedAt,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}
