package timeline

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Append(ctx context.Context, e *Entry) error
	Query(ctx context.Context, patientID uuid.UUID, f Filter) ([]*Entry, error)
	CountByType(ctx context.Context, patientID uuid.UUID) (map[EventType]int, error)
	Totals(ctx context.Context, patientID uuid.UUID) (Totals, error)
}
