package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

type MiddlewareConfig struct {
	Issuer     TokenIssuer
	Revocation *RevocationStore
	Skipper    func(c echo.Context) bool
}

// Middleware verifies the bearer token and binds the Principal to the
// request context. Revoked tokens are rejected like invalid ones.
func Middleware(cfg MiddlewareConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenStr) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			p, err := cfg.Issuer.Verify(strings.TrimSpace(tokenStr))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if cfg.Revocation != nil {
				revoked, err := cfg.Revocation.IsRevoked(c.Request().Context(), p.TokenID)
				if err != nil || revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			c.Set("user_id", p.UserID.String())
			return next(c)
		}
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// MustPrincipal returns the request principal or a 401.
func MustPrincipal(c echo.Context) (*Principal, error) {
	p, ok := PrincipalFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return p, nil
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) Role {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Role
	}
	return ""
}
