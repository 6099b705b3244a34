package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/config"
)

const applicationName = "telemed-backend"

// poolConfig applies the DB_* settings on top of the URL. Zero durations keep
// the pgxpool defaults; an application_name in the URL wins over ours.
func poolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.DBMaxConns > 0 {
		pc.MaxConns = cfg.DBMaxConns
	}
	pc.MinConns = cfg.DBMinConns
	if cfg.DBHealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.DBHealthCheckPeriod
	}
	if cfg.DBMaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.DBMaxConnLifetime
	}
	if cfg.DBMaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	}
	if cfg.DBConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout
	}

	if pc.ConnConfig.RuntimeParams == nil {
		pc.ConnConfig.RuntimeParams = make(map[string]string)
	}
	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return pc, nil
}

// NewPool opens the pool and waits for the database to answer, retrying up to
// DB_CONNECT_ATTEMPTS times. Compose starts the API alongside Postgres, so
// the first pings often fail.
func NewPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pingWithRetry(ctx, pool.Ping, cfg.DBConnectAttempts, cfg.DBConnectTimeout, time.Second, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const maxPingBackoff = 8 * time.Second

func pingWithRetry(ctx context.Context, ping func(context.Context) error, attempts int, timeout, backoff time.Duration, logger zerolog.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		err = pingOnce(ctx, ping, timeout)
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", backoff).Msg("database not ready")

		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxPingBackoff)
	}
	return fmt.Errorf("ping database after %d attempts: %w", attempts, err)
}

func pingOnce(ctx context.Context, ping func(context.Context) error, timeout time.Duration) error {
	if timeout <= 0 {
		return ping(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ping(ctx)
}
