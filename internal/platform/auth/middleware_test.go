package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/PTAIM/backend/internal/platform/cache"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func runMiddleware(t *testing.T, cfg MiddlewareConfig, header string) (echo.Context, *httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/consultas", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/consultas")

	var seen echo.Context
	err := Middleware(cfg)(func(c echo.Context) error {
		seen = c
		return okHandler(c)
	})(c)
	if seen == nil {
		seen = c
	}
	return seen, rec, err
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	cfg := MiddlewareConfig{Issuer: NewJWTIssuer(testSigningKey, "")}
	_, _, err := runMiddleware(t, cfg, "")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestMiddleware_InvalidFormat(t *testing.T) {
	cfg := MiddlewareConfig{Issuer: NewJWTIssuer(testSigningKey, "")}
	for _, h := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(h, func(t *testing.T) {
			_, _, err := runMiddleware(t, cfg, h)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestMiddleware_InvalidToken(t *testing.T) {
	cfg := MiddlewareConfig{Issuer: NewJWTIssuer(testSigningKey, "")}
	_, _, err := runMiddleware(t, cfg, "Bearer not-a-jwt")
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestMiddleware_ValidToken(t *testing.T) {
	iss := NewJWTIssuer(testSigningKey, "")
	tok, _, err := iss.Issue(testIdentity(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c, rec, err := runMiddleware(t, MiddlewareConfig{Issuer: iss}, "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	p, ok := PrincipalFromContext(c.Request().Context())
	if !ok {
		t.Fatal("expected principal in context")
	}
	if p.UserID != testIdentity().UserID {
		t.Errorf("unexpected user id %s", p.UserID)
	}
	if RoleFromContext(c.Request().Context()) != RoleDoctor {
		t.Error("expected doctor role in context")
	}
}

func TestMiddleware_RevokedToken(t *testing.T) {
	iss := NewJWTIssuer(testSigningKey, "")
	tok, exp, err := iss.Issue(testIdentity(), time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	p, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	mc := cache.NewMemoryCache(time.Hour)
	defer mc.Close()
	store := NewRevocationStore(mc)
	if err := store.Revoke(context.Background(), p.TokenID, exp); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	_, _, err = runMiddleware(t, MiddlewareConfig{Issuer: iss, Revocation: store}, "Bearer "+tok)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestMiddleware_SkipsPublicPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/auth/login")

	mw := Middleware(MiddlewareConfig{Issuer: NewJWTIssuer(testSigningKey, ""), Skipper: Skipper})
	if err := mw(okHandler)(c); err != nil {
		t.Fatalf("expected public path to bypass auth, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/health") || !IsPublicPath("/auth/cadastro") {
		t.Error("expected health and registration to be public")
	}
	if IsPublicPath("/auth/me") || IsPublicPath("/consultas") {
		t.Error("expected protected paths to require auth")
	}
}
