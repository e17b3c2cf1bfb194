package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin       = "admin"
	RoleUnderwriter = "underwriter"
	RoleApprover    = "approver"
)

// ErrActorMismatch is returned when a request names an editor or approver
// other than the authenticated subject.
var ErrActorMismatch = errors.New("actor does not match authenticated user")

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admin satisfies every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func HasRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// ResolveActor returns the identity to record for an edit or approval. With
// an authenticated subject the claimed name may be empty or equal to it;
// without one the claimed name is used as given.
func ResolveActor(ctx context.Context, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	subject := UserIDFromContext(ctx)
	if subject == "" {
		return claimed, nil
	}
	if claimed != "" && claimed != subject {
		return "", ErrActorMismatch
	}
	return subject, nil
}
