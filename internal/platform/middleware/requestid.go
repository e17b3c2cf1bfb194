package middleware

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID propagates a caller-supplied X-Request-ID or mints a UUID. The
// id is stored on the echo context as "request_id" and on the request
// context.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if !requestIDPattern.MatchString(rid) {
				rid = uuid.NewString()
			}
			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			ctx := context.WithValue(c.Request().Context(), ctxKey{}, rid)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequestIDFromContext returns the id set by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(ctxKey{}).(string)
	return rid
}
