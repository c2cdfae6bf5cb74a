package booking

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/velatours/excursion-booking/internal/model"
)

// fakeCatalog serves a fixed set of excursions.
type fakeCatalog struct {
    excursions map[string]model.Excursion
}

func (f *fakeCatalog) GetByDocumentID(_ context.Context, documentID string) (*model.Excursion, error) {
    e, ok := f.excursions[documentID]
    if !ok {
        return nil, ErrResourceNotFound(documentID)
    }
    out := e
    return &out, nil
}

// fakeLedger mirrors the SQL ledger's semantics in memory: lazy
// materialization, compare-and-decrement reserve, clamped release,
// deactivation.  A mutex stands in for the database's per-row
// atomicity so concurrency tests exercise the same contract.
type fakeLedger struct {
    mu       sync.Mutex
    catalog  *fakeCatalog
    rows     map[string]*model.Availability
    releases int
}

func newFakeLedger(c *fakeCatalog) *fakeLedger {
    return &fakeLedger{catalog: c, rows: make(map[string]*model.Availability)}
}

func ledgerKey(documentID, date string) string { return documentID + "|" + date }

func (f *fakeLedger) getOrCreateLocked(ctx context.Context, documentID, date string) (*model.Availability, error) {
    key := ledgerKey(documentID, date)
    if a, ok := f.rows[key]; ok {
        return a, nil
    }
    exc, err := f.catalog.GetByDocumentID(ctx, documentID)
    if err != nil {
        return nil, err
    }
    a := &model.Availability{
        ExcursionID:    exc.ID,
        Date:           date,
        TotalCapacity:  exc.MaxCapacity,
        AvailableSpots: exc.MaxCapacity,
        IsActive:       true,
    }
    f.rows[key] = a
    return a, nil
}

func (f *fakeLedger) GetOrCreate(ctx context.Context, documentID, date string) (*model.Availability, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    a, err := f.getOrCreateLocked(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    out := *a
    return &out, nil
}

func (f *fakeLedger) Check(ctx context.Context, documentID, date string, requested int) (*model.AvailabilityCheck, error) {
    if requested <= 0 {
        return nil, ErrInvalidRequest("requested spots must be a positive integer")
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    a, err := f.getOrCreateLocked(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    return &model.AvailabilityCheck{
        Available:      a.IsActive && a.AvailableSpots >= requested,
        AvailableSpots: a.AvailableSpots,
        IsActive:       a.IsActive,
    }, nil
}

func (f *fakeLedger) Reserve(ctx context.Context, documentID, date string, quantity int) (*model.Availability, error) {
    if quantity <= 0 {
        return nil, ErrInvalidRequest("quantity must be a positive integer")
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    a, err := f.getOrCreateLocked(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    if !a.IsActive || a.AvailableSpots < quantity {
        return nil, ErrInsufficientCapacity(a.AvailableSpots, quantity)
    }
    a.AvailableSpots -= quantity
    out := *a
    return &out, nil
}

func (f *fakeLedger) Release(ctx context.Context, documentID, date string, quantity int) (*model.Availability, error) {
    if quantity <= 0 {
        return nil, ErrInvalidRequest("quantity must be a positive integer")
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    a, err := f.getOrCreateLocked(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    a.AvailableSpots += quantity
    if a.AvailableSpots > a.TotalCapacity {
        a.AvailableSpots = a.TotalCapacity
    }
    f.releases++
    out := *a
    return &out, nil
}

func (f *fakeLedger) Deactivate(ctx context.Context, documentID, date string) (*model.Availability, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    a, err := f.getOrCreateLocked(ctx, documentID, date)
    if err != nil {
        return nil, err
    }
    a.IsActive = false
    a.AvailableSpots = 0
    out := *a
    return &out, nil
}

func (f *fakeLedger) Range(ctx context.Context, documentID, startDate, endDate string) ([]model.Availability, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.Availability
    for _, a := range f.rows {
        if a.Date >= startDate && a.Date <= endDate {
            out = append(out, *a)
        }
    }
    return out, nil
}

func (f *fakeLedger) spots(documentID, date string) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    if a, ok := f.rows[ledgerKey(documentID, date)]; ok {
        return a.AvailableSpots
    }
    return -1
}

// fakeGateway hands out sequential payment references or fails on demand.
type fakeGateway struct {
    mu    sync.Mutex
    fail  bool
    calls int
}

func (f *fakeGateway) Authorize(_ context.Context, req AuthorizeRequest) (*Authorization, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.fail {
        return nil, errors.New("gateway unavailable")
    }
    f.calls++
    return &Authorization{
        ClientToken: fmt.Sprintf("cs_test_%d", f.calls),
        GatewayRef:  fmt.Sprintf("pi_test_%d", f.calls),
    }, nil
}

// fakeAttempts mirrors the SQL attempt store: conditional status
// transitions finalized atomically with their consequence.  The
// failCommits/failReleases counters inject transient storage errors
// that leave the attempt in AUTHORIZING, like a rolled-back
// transaction.
type fakeAttempts struct {
    mu           sync.Mutex
    next         uint64
    byRef        map[string]*model.PaymentAttempt
    ledger       *fakeLedger
    reservations *fakeReservations
    failCommits  int
    failReleases int
}

func newFakeAttempts(ledger *fakeLedger, reservations *fakeReservations) *fakeAttempts {
    return &fakeAttempts{
        byRef:        make(map[string]*model.PaymentAttempt),
        ledger:       ledger,
        reservations: reservations,
    }
}

func (f *fakeAttempts) Create(_ context.Context, a *model.PaymentAttempt) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.next++
    a.ID = f.next
    if a.CreatedAt.IsZero() {
        a.CreatedAt = time.Now().UTC()
    }
    cp := *a
    f.byRef[a.GatewayRef] = &cp
    return nil
}

func (f *fakeAttempts) Commit(ctx context.Context, gatewayRef string) (*model.PaymentAttempt, *model.Reservation, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    a, ok := f.byRef[gatewayRef]
    if !ok || a.Status != model.AttemptStatusAuthorizing {
        return nil, nil, nil
    }
    if f.failCommits > 0 {
        f.failCommits--
        return nil, nil, errors.New("commit transaction rolled back")
    }
    res := &model.Reservation{
        Reference:     a.CorrelationToken,
        ExcursionID:   a.ExcursionID,
        Date:          a.Date,
        Quantity:      a.Quantity,
        AmountCents:   a.AmountCents,
        Currency:      a.Currency,
        CustomerName:  a.CustomerName,
        CustomerEmail: a.CustomerEmail,
        Status:        model.ReservationStatusConfirmed,
        GatewayRef:    a.GatewayRef,
    }
    if err := f.reservations.Create(ctx, res); err != nil {
        return nil, nil, err
    }
    a.Status = model.AttemptStatusCommitted
    cp := *a
    return &cp, res, nil
}

func (f *fakeAttempts) Release(ctx context.Context, gatewayRef string) (*model.PaymentAttempt, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    a, ok := f.byRef[gatewayRef]
    if !ok || a.Status != model.AttemptStatusAuthorizing {
        return nil, nil
    }
    if f.failReleases > 0 {
        f.failReleases--
        return nil, errors.New("release transaction rolled back")
    }
    if _, err := f.ledger.Release(ctx, a.ExcursionDocumentID, a.Date, a.Quantity); err != nil {
        return nil, err
    }
    a.Status = model.AttemptStatusReleased
    cp := *a
    return &cp, nil
}

func (f *fakeAttempts) ListStale(_ context.Context, olderThan time.Time) ([]model.PaymentAttempt, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    var out []model.PaymentAttempt
    for _, a := range f.byRef {
        if a.Status == model.AttemptStatusAuthorizing && !a.CreatedAt.After(olderThan) {
            out = append(out, *a)
        }
    }
    return out, nil
}

func (f *fakeAttempts) age(gatewayRef string, d time.Duration) {
    f.mu.Lock()
    defer f.mu.Unlock()
    if a, ok := f.byRef[gatewayRef]; ok {
        a.CreatedAt = a.CreatedAt.Add(-d)
    }
}

func (f *fakeAttempts) status(gatewayRef string) string {
    f.mu.Lock()
    defer f.mu.Unlock()
    if a, ok := f.byRef[gatewayRef]; ok {
        return a.Status
    }
    return ""
}

// fakeReservations collects created records.
type fakeReservations struct {
    mu    sync.Mutex
    next  uint64
    items []model.Reservation
}

func (f *fakeReservations) Create(_ context.Context, r *model.Reservation) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.next++
    r.ID = f.next
    f.items = append(f.items, *r)
    return nil
}

func (f *fakeReservations) count() int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return len(f.items)
}

type testEnv struct {
    svc          *Service
    catalog      *fakeCatalog
    ledger       *fakeLedger
    gateway      *fakeGateway
    attempts     *fakeAttempts
    reservations *fakeReservations
}

func newTestEnv(capacity int) *testEnv {
    catalog := &fakeCatalog{excursions: map[string]model.Excursion{
        "exc-volcano": {ID: 1, DocumentID: "exc-volcano", Title: "Volcano Hike", PriceCents: 5000, MaxCapacity: capacity},
    }}
    ledger := newFakeLedger(catalog)
    gateway := &fakeGateway{}
    reservations := &fakeReservations{}
    attempts := newFakeAttempts(ledger, reservations)
    svc := NewService(catalog, ledger, gateway, attempts, nil, "eur", 30*time.Minute)
    return &testEnv{svc: svc, catalog: catalog, ledger: ledger, gateway: gateway, attempts: attempts, reservations: reservations}
}

func TestCreateBookingIntent_Success(t *testing.T) {
    env := newTestEnv(10)
    resp, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 3,
        CustomerName: "Ana", CustomerEmail: "ana@example.com",
    })
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if resp.AmountCents != 15000 {
        t.Fatalf("expected amount 15000, got %d", resp.AmountCents)
    }
    if resp.ClientToken == "" || resp.GatewayRef == "" || resp.CorrelationToken == "" {
        t.Fatalf("expected tokens to be populated, got %+v", resp)
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 7 {
        t.Fatalf("expected 7 spots held, got %d", got)
    }
    if got := env.attempts.status(resp.GatewayRef); got != model.AttemptStatusAuthorizing {
        t.Fatalf("expected an AUTHORIZING attempt for %s, got %q", resp.GatewayRef, got)
    }
}

func TestCreateBookingIntent_Validation(t *testing.T) {
    env := newTestEnv(10)
    cases := []struct {
        name string
        req  IntentRequest
        kind Kind
    }{
        {"zero quantity", IntentRequest{ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 0}, KindInvalidRequest},
        {"negative quantity", IntentRequest{ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: -2}, KindInvalidRequest},
        {"bad date", IntentRequest{ExcursionID: "exc-volcano", Date: "01/07/2024", Quantity: 1}, KindInvalidRequest},
        {"missing excursion", IntentRequest{Date: "2024-07-01", Quantity: 1}, KindInvalidRequest},
        {"unknown excursion", IntentRequest{ExcursionID: "exc-nope", Date: "2024-07-01", Quantity: 1}, KindResourceNotFound},
    }
    for _, tc := range cases {
        _, err := env.svc.CreateBookingIntent(context.Background(), tc.req)
        if !IsKind(err, tc.kind) {
            t.Fatalf("%s: expected kind %s, got %v", tc.name, tc.kind, err)
        }
    }
    if env.gateway.calls != 0 {
        t.Fatalf("expected no gateway calls on validation failures, got %d", env.gateway.calls)
    }
}

func TestCreateBookingIntent_InsufficientCapacity(t *testing.T) {
    env := newTestEnv(10)
    _, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 11,
    })
    if !IsKind(err, KindInsufficientCapacity) {
        t.Fatalf("expected insufficient capacity, got %v", err)
    }
    var be *Error
    if !errors.As(err, &be) {
        t.Fatalf("expected booking error, got %T", err)
    }
    if be.Context["available_spots"] != 10 {
        t.Fatalf("expected available_spots 10 in context, got %v", be.Context["available_spots"])
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 10 {
        t.Fatalf("expected no spots held, got %d", got)
    }
}

func TestCreateBookingIntent_GatewayFailureReleases(t *testing.T) {
    env := newTestEnv(10)
    env.gateway.fail = true
    _, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 4,
    })
    if !IsKind(err, KindGatewayError) {
        t.Fatalf("expected gateway error, got %v", err)
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 10 {
        t.Fatalf("expected spots restored after gateway failure, got %d", got)
    }
    if env.reservations.count() != 0 {
        t.Fatalf("expected no reservation records")
    }
}

func TestCreateBookingIntent_DeactivatedDate(t *testing.T) {
    env := newTestEnv(10)
    if _, err := env.ledger.Deactivate(context.Background(), "exc-volcano", "2024-12-25"); err != nil {
        t.Fatalf("deactivate: %v", err)
    }
    _, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-12-25", Quantity: 1,
    })
    if !IsKind(err, KindInsufficientCapacity) {
        t.Fatalf("expected insufficient capacity on deactivated date, got %v", err)
    }
}

func TestHandleGatewayOutcome_SuccessCommitsOnce(t *testing.T) {
    env := newTestEnv(10)
    resp, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 2,
        CustomerEmail: "ana@example.com",
    })
    if err != nil {
        t.Fatalf("intent: %v", err)
    }
    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, true); err != nil {
        t.Fatalf("first callback: %v", err)
    }
    // Duplicate delivery of the same success callback.
    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, true); err != nil {
        t.Fatalf("duplicate callback: %v", err)
    }
    if env.reservations.count() != 1 {
        t.Fatalf("expected exactly one reservation, got %d", env.reservations.count())
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 8 {
        t.Fatalf("expected spots to stay decremented after commit, got %d", got)
    }
    r := env.reservations.items[0]
    if r.Reference != resp.CorrelationToken || r.Quantity != 2 || r.Status != model.ReservationStatusConfirmed {
        t.Fatalf("unexpected reservation record: %+v", r)
    }
}

func TestHandleGatewayOutcome_FailureReleasesOnce(t *testing.T) {
    env := newTestEnv(10)
    resp, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 2,
    })
    if err != nil {
        t.Fatalf("intent: %v", err)
    }
    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, false); err != nil {
        t.Fatalf("first callback: %v", err)
    }
    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, false); err != nil {
        t.Fatalf("duplicate callback: %v", err)
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 10 {
        t.Fatalf("expected spots restored, got %d", got)
    }
    if env.ledger.releases != 1 {
        t.Fatalf("expected exactly one release, got %d", env.ledger.releases)
    }
    if env.reservations.count() != 0 {
        t.Fatalf("expected no reservation on failed payment")
    }
}

func TestHandleGatewayOutcome_TransientReleaseFailureRetried(t *testing.T) {
    env := newTestEnv(10)
    resp, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 2,
    })
    if err != nil {
        t.Fatalf("intent: %v", err)
    }
    env.attempts.failReleases = 1

    // The first delivery hits a transient storage failure: the whole
    // step rolls back, so the attempt must still be AUTHORIZING and
    // the seats still held.
    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, false); err == nil {
        t.Fatal("expected the first delivery to fail")
    }
    if got := env.attempts.status(resp.GatewayRef); got != model.AttemptStatusAuthorizing {
        t.Fatalf("expected attempt to stay AUTHORIZING after rollback, got %q", got)
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 8 {
        t.Fatalf("expected seats still held after rollback, got %d", got)
    }

    // The redelivery completes the release.
    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, false); err != nil {
        t.Fatalf("redelivery: %v", err)
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 10 {
        t.Fatalf("expected spots restored by the redelivery, got %d", got)
    }
    if env.ledger.releases != 1 {
        t.Fatalf("expected exactly one release, got %d", env.ledger.releases)
    }
}

func TestHandleGatewayOutcome_TransientCommitFailureRetried(t *testing.T) {
    env := newTestEnv(10)
    resp, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 2,
        CustomerEmail: "ana@example.com",
    })
    if err != nil {
        t.Fatalf("intent: %v", err)
    }
    env.attempts.failCommits = 1

    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, true); err == nil {
        t.Fatal("expected the first delivery to fail")
    }
    if got := env.attempts.status(resp.GatewayRef); got != model.AttemptStatusAuthorizing {
        t.Fatalf("expected attempt to stay AUTHORIZING after rollback, got %q", got)
    }
    if env.reservations.count() != 0 {
        t.Fatalf("expected no reservation after rollback, got %d", env.reservations.count())
    }

    // The redelivery commits exactly one reservation.
    if err := env.svc.HandleGatewayOutcome(context.Background(), resp.GatewayRef, true); err != nil {
        t.Fatalf("redelivery: %v", err)
    }
    if env.reservations.count() != 1 {
        t.Fatalf("expected exactly one reservation, got %d", env.reservations.count())
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 8 {
        t.Fatalf("expected seats to stay decremented after commit, got %d", got)
    }
}

func TestSweepRecoversAfterTransientReleaseFailure(t *testing.T) {
    env := newTestEnv(10)
    resp, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 3,
    })
    if err != nil {
        t.Fatalf("intent: %v", err)
    }
    env.attempts.age(resp.GatewayRef, time.Hour)
    env.attempts.failReleases = 1

    released, err := env.svc.SweepStaleAttempts(context.Background())
    if err == nil {
        t.Fatal("expected the first sweep to fail")
    }
    if released != 0 {
        t.Fatalf("expected no releases from the failed sweep, got %d", released)
    }
    if got := env.attempts.status(resp.GatewayRef); got != model.AttemptStatusAuthorizing {
        t.Fatalf("expected attempt to stay AUTHORIZING for the next sweep, got %q", got)
    }

    released, err = env.svc.SweepStaleAttempts(context.Background())
    if err != nil {
        t.Fatalf("second sweep: %v", err)
    }
    if released != 1 {
        t.Fatalf("expected the next sweep to release the hold, got %d", released)
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 10 {
        t.Fatalf("expected spots restored, got %d", got)
    }
}

func TestHandleGatewayOutcome_UnknownReference(t *testing.T) {
    env := newTestEnv(10)
    if err := env.svc.HandleGatewayOutcome(context.Background(), "pi_unknown", true); err != nil {
        t.Fatalf("unknown ref should be a no-op, got %v", err)
    }
    if env.reservations.count() != 0 {
        t.Fatalf("expected no reservation for unknown reference")
    }
}

func TestCreateBookingIntent_NoOversell(t *testing.T) {
    const capacity = 4
    const attempts = 16
    env := newTestEnv(capacity)

    var wg sync.WaitGroup
    results := make(chan error, attempts)
    for i := 0; i < attempts; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            _, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
                ExcursionID: "exc-volcano", Date: "2024-08-15", Quantity: 1,
            })
            results <- err
        }()
    }
    wg.Wait()
    close(results)

    successes, insufficient := 0, 0
    for err := range results {
        switch {
        case err == nil:
            successes++
        case IsKind(err, KindInsufficientCapacity):
            insufficient++
        default:
            t.Fatalf("unexpected error kind: %v", err)
        }
    }
    if successes != capacity {
        t.Fatalf("expected %d successful reserves, got %d", capacity, successes)
    }
    if insufficient != attempts-capacity {
        t.Fatalf("expected %d insufficient results, got %d", attempts-capacity, insufficient)
    }
    if got := env.ledger.spots("exc-volcano", "2024-08-15"); got != 0 {
        t.Fatalf("expected 0 spots after the rush, got %d", got)
    }
}

func TestSweepStaleAttempts(t *testing.T) {
    env := newTestEnv(10)
    stale, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 3,
    })
    if err != nil {
        t.Fatalf("stale intent: %v", err)
    }
    fresh, err := env.svc.CreateBookingIntent(context.Background(), IntentRequest{
        ExcursionID: "exc-volcano", Date: "2024-07-01", Quantity: 2,
    })
    if err != nil {
        t.Fatalf("fresh intent: %v", err)
    }
    // Age the first hold past the timeout; the second stays fresh.
    env.attempts.age(stale.GatewayRef, time.Hour)

    released, err := env.svc.SweepStaleAttempts(context.Background())
    if err != nil {
        t.Fatalf("sweep: %v", err)
    }
    if released != 1 {
        t.Fatalf("expected 1 released attempt, got %d", released)
    }
    // 10 - 3 - 2 = 5 held, then 3 swept back.
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 8 {
        t.Fatalf("expected 8 spots after sweep, got %d", got)
    }
    // Sweeping again releases nothing further.
    released, err = env.svc.SweepStaleAttempts(context.Background())
    if err != nil {
        t.Fatalf("second sweep: %v", err)
    }
    if released != 0 {
        t.Fatalf("expected idempotent sweep, got %d releases", released)
    }
    // A late failure callback for the swept attempt must not double-release.
    if err := env.svc.HandleGatewayOutcome(context.Background(), stale.GatewayRef, false); err != nil {
        t.Fatalf("late callback: %v", err)
    }
    if got := env.ledger.spots("exc-volcano", "2024-07-01"); got != 8 {
        t.Fatalf("late callback must not release again, got %d spots", got)
    }
    _ = fresh
}
