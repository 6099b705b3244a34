package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Template, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetForUpdate locks the row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, from *time.Time) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from *time.Time) ([]*Appointment, error)
	// Occupied returns the timestamps of the doctor's active appointments in [from, to].
	Occupied(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error)
	// ActiveBetween returns every active appointment in [from, to].
	ActiveBetween(ctx context.Context, from, to time.Time) ([]*Appointment, error)
}
