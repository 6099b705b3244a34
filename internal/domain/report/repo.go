package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create stores the report and one association per result.
	Create(ctx context.Context, r *Report, resultIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Report, error)
	Update(ctx context.Context, r *Report) error
	ResultIDs(ctx context.Context, reportID uuid.UUID) ([]uuid.UUID, error)
	// The lists are ordered by issue date, latest first.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status *Status) ([]*Report, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, status *Status) ([]*Report, error)
}
