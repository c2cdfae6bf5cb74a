package middleware // package middleware contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
    "github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token signed with HS256 and, when requiredRole is non-empty,
// enforces that the token's "role" claim matches it.  Admin
// operations such as blacking out a date are guarded with
// requiredRole "admin"; the tokens themselves are issued by ops
// tooling outside this service.  On success the subject and role
// claims are placed into the request context under "user_id" and
// "role".
func JWTAuth(secret, requiredRole string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Pin the signing method to HMAC; reject anything else.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            role, _ := claims["role"].(string)
            if requiredRole != "" && role != requiredRole {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }

            c.Set("user_id", claims["sub"])
            c.Set("role", role)
            return next(c)
        }
    }
}
