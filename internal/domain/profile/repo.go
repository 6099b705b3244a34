package profile

import (
	"context"

	"github.com/google/uuid"
)

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	ListBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*Doctor, error)
	AddSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) error
	RemoveSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) (bool, error)
}

type SpecialtyRepository interface {
	Create(ctx context.Context, s *Specialty) error
	GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	List(ctx context.Context) ([]*Specialty, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// LinkSummary sets the patient's summary if none is linked yet and
	// reports whether it did.
	LinkSummary(ctx context.Context, patientID, summaryID uuid.UUID) (bool, error)
	OwnerOfSummary(ctx context.Context, summaryID uuid.UUID) (uuid.UUID, error)
}

type SummaryRepository interface {
	Create(ctx context.Context, s *HealthSummary) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthSummary, error)
	Update(ctx context.Context, s *HealthSummary) error
}
