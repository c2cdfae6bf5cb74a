package handler

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/labstack/echo/v4"

    "github.com/velatours/excursion-booking/internal/model"
    "github.com/velatours/excursion-booking/internal/payment"
)

// stubVerifier returns a canned webhook outcome or error.
type stubVerifier struct {
    outcome *payment.Outcome
    err     error
    gotSig  string
}

func (s *stubVerifier) ParseWebhook(_ []byte, signatureHeader string) (*payment.Outcome, error) {
    s.gotSig = signatureHeader
    return s.outcome, s.err
}

func webhookRequest(t *testing.T, h *BookingHandler, body string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/bookings/webhook", strings.NewReader(body))
    req.Header.Set("Stripe-Signature", "t=1,v1=sig")
    rec := httptest.NewRecorder()
    if err := h.StripeWebhook(e.NewContext(req, rec)); err != nil {
        t.Fatalf("handler returned error: %v", err)
    }
    return rec
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
    v := &stubVerifier{err: errors.New("signature mismatch")}
    h := &BookingHandler{Verifier: v}
    rec := webhookRequest(t, h, `{"type":"payment_intent.succeeded"}`)
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("expected 400, got %d", rec.Code)
    }
    if v.gotSig != "t=1,v1=sig" {
        t.Fatalf("expected signature header to reach the verifier, got %q", v.gotSig)
    }
}

func TestStripeWebhookAcknowledgesUnhandledEvents(t *testing.T) {
    v := &stubVerifier{outcome: &payment.Outcome{Handled: false}}
    h := &BookingHandler{Verifier: v}
    rec := webhookRequest(t, h, `{"type":"charge.refunded"}`)
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200 for unhandled event, got %d", rec.Code)
    }
    if !strings.Contains(rec.Body.String(), `"received":true`) {
        t.Fatalf("expected acknowledgement body, got %s", rec.Body.String())
    }
}

// stubRecords keeps reservations in memory; cancelling a CONFIRMED
// row flips it once and counts the release.
type stubRecords struct {
    byID     map[uint64]*model.Reservation
    releases int
}

func (s *stubRecords) ListByExcursion(_ context.Context, excursionID uint64) ([]model.Reservation, error) {
    var out []model.Reservation
    for _, r := range s.byID {
        if r.ExcursionID == excursionID {
            out = append(out, *r)
        }
    }
    return out, nil
}

func (s *stubRecords) Cancel(_ context.Context, id uint64) (*model.Reservation, error) {
    r, ok := s.byID[id]
    if !ok || r.Status != model.ReservationStatusConfirmed {
        return nil, nil
    }
    r.Status = model.ReservationStatusCancelled
    s.releases++
    out := *r
    return &out, nil
}

func cancelRequest(t *testing.T, h *BookingHandler, id string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/", nil)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.SetParamNames("id")
    c.SetParamValues(id)
    if err := h.CancelReservation(c); err != nil {
        t.Fatalf("handler returned error: %v", err)
    }
    return rec
}

func TestCancelReservation(t *testing.T) {
    records := &stubRecords{byID: map[uint64]*model.Reservation{
        7: {ID: 7, Reference: "ref-7", ExcursionID: 1, Date: "2024-07-01", Quantity: 2, Status: model.ReservationStatusConfirmed},
    }}
    h := &BookingHandler{Reservations: records}

    rec := cancelRequest(t, h, "7")
    if rec.Code != http.StatusOK {
        t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
    }
    if !strings.Contains(rec.Body.String(), model.ReservationStatusCancelled) {
        t.Fatalf("expected cancelled status in body, got %s", rec.Body.String())
    }

    // A repeated cancellation finds no CONFIRMED row: 404, and the
    // seats are not credited a second time.
    rec = cancelRequest(t, h, "7")
    if rec.Code != http.StatusNotFound {
        t.Fatalf("expected 404 on repeat, got %d", rec.Code)
    }
    if records.releases != 1 {
        t.Fatalf("expected exactly one release, got %d", records.releases)
    }
}

func TestCancelReservationRejectsBadID(t *testing.T) {
    h := &BookingHandler{Reservations: &stubRecords{byID: map[uint64]*model.Reservation{}}}
    rec := cancelRequest(t, h, "seven")
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("expected 400, got %d", rec.Code)
    }
    rec = cancelRequest(t, h, "42")
    if rec.Code != http.StatusNotFound {
        t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
    }
}

func TestCreatePaymentIntentRejectsMalformedBody(t *testing.T) {
    h := &BookingHandler{}
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, "/v1/bookings/payment-intent", strings.NewReader("{not json"))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    if err := h.CreatePaymentIntent(e.NewContext(req, rec)); err != nil {
        t.Fatalf("handler returned error: %v", err)
    }
    if rec.Code != http.StatusBadRequest {
        t.Fatalf("expected 400, got %d", rec.Code)
    }
}
