package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/config"
)

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(&config.Config{
		DatabaseURL:         "postgres://u:p@localhost:5432/telemedicina_db",
		DBMaxConns:          12,
		DBMinConns:          3,
		DBConnectTimeout:    4 * time.Second,
		DBHealthCheckPeriod: 45 * time.Second,
		DBMaxConnLifetime:   time.Hour,
		DBMaxConnIdleTime:   10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc.MaxConns != 12 || pc.MinConns != 3 {
		t.Errorf("unexpected conns %d/%d", pc.MaxConns, pc.MinConns)
	}
	if pc.ConnConfig.ConnectTimeout != 4*time.Second {
		t.Errorf("unexpected connect timeout %s", pc.ConnConfig.ConnectTimeout)
	}
	if pc.HealthCheckPeriod != 45*time.Second || pc.MaxConnLifetime != time.Hour || pc.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected lifetimes %s %s %s", pc.HealthCheckPeriod, pc.MaxConnLifetime, pc.MaxConnIdleTime)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != applicationName {
		t.Errorf("expected application_name %q, got %q", applicationName, got)
	}
}

func TestPoolConfig_URLApplicationNameWins(t *testing.T) {
	pc, err := poolConfig(&config.Config{DatabaseURL: "postgres://u:p@localhost/db?application_name=migrator"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "migrator" {
		t.Errorf("expected URL application_name, got %q", got)
	}
}

func TestPoolConfig_BadURL(t *testing.T) {
	if _, err := poolConfig(&config.Config{DatabaseURL: "postgres://%zz"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestPingWithRetry(t *testing.T) {
	calls := 0
	ping := func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("the database system is starting up")
		}
		return nil
	}
	if err := pingWithRetry(context.Background(), ping, 5, time.Second, time.Millisecond, zerolog.Nop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 pings, got %d", calls)
	}
}

func TestPingWithRetry_GivesUp(t *testing.T) {
	calls := 0
	down := errors.New("connection refused")
	ping := func(context.Context) error { calls++; return down }

	err := pingWithRetry(context.Background(), ping, 2, time.Second, time.Millisecond, zerolog.Nop())
	if !errors.Is(err, down) || calls != 2 {
		t.Errorf("expected 2 attempts ending in %v, got %d: %v", down, calls, err)
	}
}

func TestPingWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ping := func(context.Context) error { cancel(); return errors.New("down") }

	err := pingWithRetry(ctx, ping, 5, time.Second, time.Hour, zerolog.Nop())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
