package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/PTAIM/backend/internal/platform/auth"
)

func TestTokenBucket_Take(t *testing.T) {
	now := time.Now()
	b := newTokenBucket(1, 2, now)

	if ok, _ := b.take(now); !ok {
		t.Fatal("first token should be available")
	}
	if ok, _ := b.take(now); !ok {
		t.Fatal("second token should be available")
	}
	ok, retry := b.take(now)
	if ok {
		t.Fatal("bucket should be empty")
	}
	if retry < 1 {
		t.Errorf("expected positive retry, got %d", retry)
	}
	if ok, _ := b.take(now.Add(1100 * time.Millisecond)); !ok {
		t.Error("expected a refilled token after one second")
	}
}

func TestRateLimit_Rejects(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	call := func() (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		return rec, h(e.NewContext(req, rec))
	}

	if _, err := call(); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	rec, err := call()
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_KeysByUser(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		p := &auth.Principal{Identity: auth.Identity{UserID: uuid.New(), Role: auth.RolePatient}}
		req = req.WithContext(auth.WithPrincipal(req.Context(), p))
		if err := h(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Fatalf("distinct users behind one IP should not share a bucket: %v", err)
		}
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Now()
	l := &limiter{
		cfg:       RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute},
		buckets:   make(map[string]*tokenBucket),
		lastSweep: now,
	}
	l.bucket("a", now)
	l.bucket("b", now.Add(2*time.Minute))

	if _, ok := l.buckets["a"]; ok {
		t.Error("expected idle bucket to be swept")
	}
	if _, ok := l.buckets["b"]; !ok {
		t.Error("expected fresh bucket to remain")
	}
}
