package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository aggregates a doctor's activity since a point in time. A nil
// since covers the whole history.
type Repository interface {
	Counts(ctx context.Context, doctorID uuid.UUID, since *time.Time) (Summary, error)
	RequestsPerMonth(ctx context.Context, doctorID uuid.UUID, since *time.Time) ([]MonthCount, error)
	ReportsPerMonth(ctx context.Context, doctorID uuid.UUID, since *time.Time) ([]MonthCount, error)
}
