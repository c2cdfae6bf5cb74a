package booking

import (
    "context"
    "log"
    "strconv"
    "time"

    "github.com/google/uuid"

    "github.com/velatours/excursion-booking/internal/model"
    "github.com/velatours/excursion-booking/internal/queue"
    "github.com/velatours/excursion-booking/internal/utils"
)

// Publisher delivers a booking-confirmed event to the message
// broker.  Publishing is best effort: a broker outage must never
// fail a committed booking, so errors are logged and swallowed.
type Publisher func(ctx context.Context, ev queue.BookingConfirmedEvent) error

// Service orchestrates a booking attempt through its states:
//
//	PENDING -> CHECKED -> AUTHORIZING -> COMMITTED | RELEASED
//
// Capacity is committed via the ledger only once the attempt is
// ready for payment authorization; the advisory check before that
// holds nothing.  Waiting for the gateway outcome holds no lock
// anywhere: the held capacity exists purely as already-decremented
// ledger state, reversed by Release on failure, timeout or sweep.
type Service struct {
    catalog     Catalog
    ledger      Ledger
    gateway     Gateway
    attempts    AttemptStore
    publish     Publisher // may be nil
    currency    string
    holdTimeout time.Duration
}

// NewService wires the orchestrator.  publish may be nil when no
// broker is configured; every other dependency is required.
func NewService(catalog Catalog, ledger Ledger, gateway Gateway, attempts AttemptStore, publish Publisher, currency string, holdTimeout time.Duration) *Service {
    if catalog == nil || ledger == nil || gateway == nil || attempts == nil {
        panic("nil dependency passed to NewService")
    }
    return &Service{
        catalog:     catalog,
        ledger:      ledger,
        gateway:     gateway,
        attempts:    attempts,
        publish:     publish,
        currency:    currency,
        holdTimeout: holdTimeout,
    }
}

// IntentRequest is a validated booking request: which excursion, for
// which day, for how many people, and who is paying.
type IntentRequest struct {
    ExcursionID   string // excursion document id
    Date          string // YYYY-MM-DD
    Quantity      int
    CustomerName  string
    CustomerEmail string
}

// IntentResponse is returned once capacity is held and the gateway
// has issued a client token.  The frontend completes the charge with
// ClientToken; the outcome later arrives via webhook.
type IntentResponse struct {
    ClientToken      string
    GatewayRef       string
    CorrelationToken string
    AmountCents      int64
    Currency         string
    ExcursionTitle   string
    UnitPriceCents   int64
}

// CreateBookingIntent runs the synchronous half of a booking
// attempt: validate, resolve the excursion, advisory check, reserve,
// authorize, persist the AUTHORIZING attempt.  Any failure after the
// reserve succeeded releases the held seats in the same path, so no
// error ever leaves capacity half-held.
func (s *Service) CreateBookingIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error) {
    if req.ExcursionID == "" {
        return nil, ErrInvalidRequest("excursion id is required")
    }
    if req.Quantity <= 0 {
        return nil, ErrInvalidRequest("quantity must be a positive integer")
    }
    if err := utils.ValidateDate(req.Date); err != nil {
        return nil, ErrInvalidRequest(err.Error())
    }

    exc, err := s.catalog.GetByDocumentID(ctx, req.ExcursionID)
    if err != nil {
        return nil, err
    }

    // Advisory check first: when the date is full or blacked out we
    // terminate here with zero side effects, having held nothing.
    chk, err := s.ledger.Check(ctx, req.ExcursionID, req.Date, req.Quantity)
    if err != nil {
        return nil, err
    }
    if !chk.Available {
        return nil, ErrInsufficientCapacity(chk.AvailableSpots, req.Quantity)
    }

    // Reserve re-validates atomically; the advisory outcome may have
    // gone stale.  A concurrency conflict gets exactly one retry.
    if _, err = s.ledger.Reserve(ctx, req.ExcursionID, req.Date, req.Quantity); err != nil {
        if IsKind(err, KindConcurrencyConflict) {
            _, err = s.ledger.Reserve(ctx, req.ExcursionID, req.Date, req.Quantity)
        }
        if err != nil {
            return nil, err
        }
    }

    amount := exc.PriceCents * int64(req.Quantity)
    token := uuid.NewString()
    auth, err := s.gateway.Authorize(ctx, AuthorizeRequest{
        AmountCents:      amount,
        Currency:         s.currency,
        CorrelationToken: token,
        Metadata: map[string]string{
            "excursion_id":     exc.DocumentID,
            "excursion_title":  exc.Title,
            "booking_date":     req.Date,
            "quantity":         strconv.Itoa(req.Quantity),
            "unit_price_cents": strconv.FormatInt(exc.PriceCents, 10),
        },
    })
    if err != nil {
        s.compensate(ctx, req.ExcursionID, req.Date, req.Quantity)
        return nil, ErrGateway(err)
    }

    attempt := &model.PaymentAttempt{
        CorrelationToken:    token,
        GatewayRef:          auth.GatewayRef,
        ExcursionID:         exc.ID,
        ExcursionDocumentID: exc.DocumentID,
        ExcursionTitle:      exc.Title,
        Date:                req.Date,
        Quantity:            req.Quantity,
        AmountCents:         amount,
        Currency:            s.currency,
        CustomerName:        req.CustomerName,
        CustomerEmail:       req.CustomerEmail,
        Status:              model.AttemptStatusAuthorizing,
    }
    if err := s.attempts.Create(ctx, attempt); err != nil {
        // Without the attempt row no callback could ever commit or
        // release this hold, so give the seats back immediately.
        s.compensate(ctx, req.ExcursionID, req.Date, req.Quantity)
        return nil, err
    }

    return &IntentResponse{
        ClientToken:      auth.ClientToken,
        GatewayRef:       auth.GatewayRef,
        CorrelationToken: token,
        AmountCents:      amount,
        Currency:         s.currency,
        ExcursionTitle:   exc.Title,
        UnitPriceCents:   exc.PriceCents,
    }, nil
}

// HandleGatewayOutcome applies an asynchronous gateway outcome to
// the attempt identified by gatewayRef.  Success commits: the
// attempt transitions to COMMITTED with the reservation record in
// the same transaction, then a confirmation event is published.
// Failure releases: the attempt transitions to RELEASED with the
// seat credit in the same transaction.  Both directions are
// idempotent: a duplicate delivery finds the attempt already
// transitioned and does nothing.  A transient storage failure rolls
// the whole step back, so the next delivery or the sweep can
// complete it without ever leaving seats half-held.
func (s *Service) HandleGatewayOutcome(ctx context.Context, gatewayRef string, succeeded bool) error {
    if !succeeded {
        _, err := s.attempts.Release(ctx, gatewayRef)
        return err
    }

    attempt, res, err := s.attempts.Commit(ctx, gatewayRef)
    if err != nil {
        return err
    }
    if attempt == nil {
        return nil // duplicate or unknown reference
    }
    if s.publish != nil {
        ev := queue.BookingConfirmedEvent{
            ReservationID:  res.ID,
            Reference:      res.Reference,
            ExcursionID:    res.ExcursionID,
            ExcursionTitle: attempt.ExcursionTitle,
            Date:           res.Date,
            Quantity:       res.Quantity,
            AmountCents:    res.AmountCents,
            Currency:       res.Currency,
            CustomerEmail:  res.CustomerEmail,
            ConfirmedAt:    time.Now().UTC().Format(time.RFC3339),
        }
        if err := s.publish(ctx, ev); err != nil {
            log.Printf("booking: publish confirmed event failed for %s: %v", res.Reference, err)
        }
    }
    return nil
}

// SweepStaleAttempts releases every attempt that has been
// AUTHORIZING longer than the hold timeout (abandoned checkouts and
// lost callbacks).  The conditional transition inside Release means
// a callback racing the sweep acts at most once per attempt, and a
// failed release stays AUTHORIZING for the next sweep.  Returns the
// number of attempts released.
func (s *Service) SweepStaleAttempts(ctx context.Context) (int, error) {
    cutoff := time.Now().UTC().Add(-s.holdTimeout)
    stale, err := s.attempts.ListStale(ctx, cutoff)
    if err != nil {
        return 0, err
    }
    released := 0
    for i := range stale {
        attempt, err := s.attempts.Release(ctx, stale[i].GatewayRef)
        if err != nil {
            return released, err
        }
        if attempt == nil {
            continue // a callback got there first
        }
        released++
    }
    return released, nil
}

// compensate returns seats after a failure between reserve and
// attempt persistence.  Release failures are logged, not returned:
// the caller is already on an error path and the sweep cannot help
// here, so the log line is the operator's signal.
func (s *Service) compensate(ctx context.Context, documentID, date string, quantity int) {
    if _, err := s.ledger.Release(ctx, documentID, date, quantity); err != nil {
        log.Printf("booking: compensating release failed for %s %s x%d: %v", documentID, date, quantity, err)
    }
}
