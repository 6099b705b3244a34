package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// Checker is the view of the database that /health/db inspects.
type Checker interface {
	Ping(ctx context.Context) error
	Stats() PoolStats
}

// SchemaReporter reports how far the schema has been migrated.
type SchemaReporter interface {
	Version(ctx context.Context) (SchemaVersion, error)
}

type poolChecker struct {
	pool *pgxpool.Pool
}

func PoolChecker(pool *pgxpool.Pool) Checker { return poolChecker{pool: pool} }

func (p poolChecker) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p poolChecker) Stats() PoolStats {
	stat := p.pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

const (
	HealthOK       = "healthy"
	HealthDegraded = "degraded"
	HealthDown     = "unhealthy"
)

type HealthReport struct {
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Pool        PoolStats      `json:"pool"`
	Schema      *SchemaVersion `json:"schema,omitempty"`
	SchemaError string         `json:"schema_error,omitempty"`
}

// HealthHandler answers 503 when the ping fails. A reachable database with
// pending migrations, or whose schema version cannot be read, is reported as
// degraded with 200.
func HealthHandler(checker Checker, schema SchemaReporter, timeout time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
		defer cancel()

		report := HealthReport{Status: HealthOK, Pool: checker.Stats()}
		if err := checker.Ping(ctx); err != nil {
			report.Status = HealthDown
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}

		if schema != nil {
			v, err := schema.Version(ctx)
			switch {
			case err != nil:
				report.Status = HealthDegraded
				report.SchemaError = err.Error()
			case v.Pending > 0:
				report.Status = HealthDegraded
				report.Schema = &v
			default:
				report.Schema = &v
			}
		}
		return c.JSON(http.StatusOK, report)
	}
}
