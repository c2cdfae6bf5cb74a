package main // Entry point package

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    "golang.org/x/sync/errgroup"

    "github.com/velatours/excursion-booking/internal/booking"
    "github.com/velatours/excursion-booking/internal/config"
    "github.com/velatours/excursion-booking/internal/database"
    "github.com/velatours/excursion-booking/internal/handler"
    "github.com/velatours/excursion-booking/internal/payment"
    "github.com/velatours/excursion-booking/internal/queue"
    "github.com/velatours/excursion-booking/internal/repository"
    "github.com/velatours/excursion-booking/internal/router"
    queue_publisher "github.com/velatours/excursion-booking/internal/service"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis is optional; without it rate limiting is disabled.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable, rate limiting disabled")
    }

    excursions := repository.NewExcursionRepo(db)
    ledger := repository.NewAvailabilityRepo(db, excursions, cfg.RangeMaxDays)
    reservations := repository.NewReservationRepo(db, ledger)
    attempts := repository.NewPaymentAttemptRepo(db, ledger, reservations)
    gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

    svc := booking.NewService(
        excursions, ledger, gateway, attempts,
        queue_publisher.PublishBookingConfirmed,
        cfg.Currency, cfg.HoldTimeout,
    )

    e := echo.New()
    e.HideBanner = true
    router.Register(e,
        handler.NewAvailabilityHandler(ledger),
        handler.NewBookingHandler(svc, gateway, excursions, reservations),
        rdb, cfg.JWTSecret,
    )

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    g, ctx := errgroup.WithContext(ctx)

    addr := ":" + cfg.Port
    g.Go(func() error {
        log.Printf("listening on %s (env=%s)", addr, cfg.Env)
        if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
            return err
        }
        return nil
    })
    g.Go(func() error {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return e.Shutdown(shutdownCtx)
    })
    g.Go(func() error {
        return queue.StartBookingConsumer(ctx)
    })
    g.Go(func() error {
        return booking.RunSweeper(ctx, svc, cfg.SweepInterval)
    })

    if err := g.Wait(); err != nil {
        log.Fatal(err)
    }
}
