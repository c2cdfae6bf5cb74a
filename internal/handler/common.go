package handler

import (
    "errors"
    "log"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/velatours/excursion-booking/internal/booking"
)

// statusForKind maps the booking error taxonomy to HTTP statuses.
// Insufficient capacity is a business condition, not a fault, and is
// reported as a conflict so clients can distinguish it from bad
// input.
func statusForKind(k booking.Kind) int {
    switch k {
    case booking.KindInvalidRequest, booking.KindInvalidRange:
        return http.StatusBadRequest
    case booking.KindResourceNotFound:
        return http.StatusNotFound
    case booking.KindInsufficientCapacity, booking.KindConcurrencyConflict:
        return http.StatusConflict
    case booking.KindGatewayError:
        return http.StatusBadGateway
    default:
        return http.StatusInternalServerError
    }
}

// writeError renders a booking error as the structured JSON the API
// promises: kind, human-readable message and optional context.
// Internal causes are logged server-side and never serialized to
// clients.
func writeError(c echo.Context, err error) error {
    kind := booking.KindOf(err)
    status := statusForKind(kind)

    body := echo.Map{"kind": kind, "message": "internal error"}
    var be *booking.Error
    if errors.As(err, &be) && kind != booking.KindInternal {
        body["message"] = be.Message
        if len(be.Context) > 0 {
            body["context"] = be.Context
        }
    }
    if status >= http.StatusInternalServerError {
        log.Printf("handler: %s %s failed: %v", c.Request().Method, c.Path(), err)
    }
    return c.JSON(status, echo.Map{"error": body})
}
