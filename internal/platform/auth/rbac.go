package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequireRole lets the request through when the principal holds one of
// roles. Admins always pass.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if p.Role == RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}

// CanActFor reports whether p may read or write records owned by userID.
func CanActFor(p *Principal, userID uuid.UUID) bool {
	return p != nil && (p.Role.Privileged() || p.UserID == userID)
}

// ResolveSubject picks the user a request acts on: privileged callers must
// name one, everyone else defaults to (and is restricted to) themselves.
func ResolveSubject(p *Principal, requested uuid.UUID) (uuid.UUID, error) {
	if requested == uuid.Nil {
		if p.Role.Privileged() {
			return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "target user id is required")
		}
		return p.UserID, nil
	}
	if !CanActFor(p, requested) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "cannot act on another user's records")
	}
	return requested, nil
}
