package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/velatours/excursion-booking/internal/config"
    "github.com/velatours/excursion-booking/internal/handler"
    "github.com/velatours/excursion-booking/internal/middleware"
)

// Register wires every route of the service onto the provided Echo
// instance.  The public booking surface lives under /v1 behind the
// Redis token-bucket limiter (a nil Redis client disables limiting);
// admin operations live under /v1/admin behind JWT with the admin
// role.  The webhook endpoint is deliberately outside the rate
// limiter: its caller is the payment gateway and its authenticity is
// established by signature verification, not by tokens.
func Register(e *echo.Echo, a *handler.AvailabilityHandler, b *handler.BookingHandler, rdb *redis.Client, jwtSecret string) {
    // Health check for load balancers and monitoring.
    e.GET("/healthz", handler.Health)

    // Gateway callbacks: signature-verified, never rate limited.
    e.POST("/v1/bookings/webhook", b.StripeWebhook)

    // Public booking surface.
    v1 := e.Group("/v1")
    v1.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    v1.GET("/excursions/:id/availability/:date", a.GetOne)
    v1.GET("/excursions/:id/availability/:start/:end", a.GetRange)
    v1.POST("/excursions/:id/availability/check", a.Check)
    v1.POST("/bookings/payment-intent", b.CreatePaymentIntent)
    v1.GET("/excursions/:id/reservations", b.ListReservations)

    // Admin operations: blackout dates etc.  Tokens are issued by
    // ops tooling; this service only verifies them.
    admin := e.Group("/v1/admin")
    admin.Use(middleware.JWTAuth(jwtSecret, "admin"))
    admin.POST("/excursions/:id/availability/:date/deactivate", a.Deactivate)
    admin.POST("/reservations/:id/cancel", b.CancelReservation)
}
