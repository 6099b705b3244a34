package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/config"
	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
)

// newTestRouter wires every handler on in-memory backends. No route reached
// here touches the database.
func newTestRouter(t *testing.T) (*app, *echo.Echo) {
	t.Helper()
	cfg := &config.Config{
		Env:                  "development",
		JWTSecretKey:         "router-test-signing-key",
		JWTExpireMinutes:     60,
		EmailQueue:           "envio_email_queue",
		ImageAnalysisQueue:   "image_analysis",
		ImageAnalysisTimeout: time.Second,
		CacheTTL:             time.Minute,
		ReminderCron:         "0 8 * * *",
		CORSOrigins:          []string{"*"},
		RateLimitRPS:         1000,
		RateLimitBurst:       1000,
		MigrationsDir:        "../../migrations",
	}
	a := &app{cfg: cfg, logger: zerolog.Nop()}
	if err := a.connectPlatform(context.Background(), failingDial); err != nil {
		t.Fatalf("connect platform: %v", err)
	}
	a.wireServices()
	t.Cleanup(a.Close)
	return a, a.router()
}

func tokenFor(t *testing.T, a *app, role auth.Role) string {
	t.Helper()
	tok, _, err := a.tokens.Issue(auth.Identity{
		UserID: uuid.New(),
		Email:  string(role) + "@example.com",
		Role:   role,
		Name:   "Teste",
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func serve(e *echo.Echo, method, target, token string) (int, apperr.Body) {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body apperr.Body
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func TestRouter_UnknownPathIsNotFound(t *testing.T) {
	a, e := newTestRouter(t)

	for _, role := range []auth.Role{auth.RolePatient, auth.RoleDoctor, auth.RoleStaff} {
		tok := tokenFor(t, a, role)
		for _, target := range []string{"/nao-existe", "/consultas/abc/nada", "/laudos/x/y/z"} {
			code, body := serve(e, http.MethodGet, target, tok)
			if code != http.StatusNotFound || body.Category != apperr.CategoryNotFound {
				t.Errorf("%s GET %s: expected 404 not_found, got %d %+v", role, target, code, body)
			}
		}
	}
}

func TestRouter_RoleChecksStillApply(t *testing.T) {
	a, e := newTestRouter(t)
	patient := tokenFor(t, a, auth.RolePatient)

	tests := []struct {
		method, target string
	}{
		{http.MethodPost, "/laudos"},
		{http.MethodPost, "/agendas"},
		{http.MethodPost, "/especialidades"},
		{http.MethodGet, "/exames/fila"},
		{http.MethodGet, "/notificacoes"},
		{http.MethodGet, "/dashboard/stats"},
	}
	for _, tt := range tests {
		code, body := serve(e, tt.method, tt.target, patient)
		if code != http.StatusForbidden || body.Category != apperr.CategoryForbidden {
			t.Errorf("%s %s: expected 403 forbidden, got %d %+v", tt.method, tt.target, code, body)
		}
	}
}

func TestRouter_PublicAndUnauthenticated(t *testing.T) {
	_, e := newTestRouter(t)

	if code, _ := serve(e, http.MethodGet, "/health", ""); code != http.StatusOK {
		t.Errorf("expected /health 200, got %d", code)
	}
	code, body := serve(e, http.MethodGet, "/laudos", "")
	if code != http.StatusUnauthorized || body.Category != apperr.CategoryUnauthorized {
		t.Errorf("expected 401 unauthorized, got %d %+v", code, body)
	}
}
