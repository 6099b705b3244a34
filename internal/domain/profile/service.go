package profile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/domain/identity"
	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/cache"
	"github.com/PTAIM/backend/internal/platform/db"
)

var (
	specialtiesKey     = cache.Key("specialties")
	doctorsBySpecKey   = cache.Key("doctors", "by-specialty")
	doctorsBySpecMatch = doctorsBySpecKey + ":*"
)

func doctorsBySpecialtyKey(id uuid.UUID) string {
	return doctorsBySpecKey + ":" + id.String()
}

type Service struct {
	doctors     DoctorRepository
	specialties SpecialtyRepository
	patients    PatientRepository
	summaries   SummaryRepository
	users       identity.Directory
	tx          db.Transactor
	cache       cache.Cache
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

type Deps struct {
	Doctors     DoctorRepository
	Specialties SpecialtyRepository
	Patients    PatientRepository
	Summaries   SummaryRepository
	Users       identity.Directory
	Tx          db.Transactor
	Cache       cache.Cache
	CacheTTL    time.Duration
	Logger      zerolog.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		doctors:     d.Doctors,
		specialties: d.Specialties,
		patients:    d.Patients,
		summaries:   d.Summaries,
		users:       d.Users,
		tx:          d.Tx,
		cache:       d.Cache,
		cacheTTL:    d.CacheTTL,
		logger:      d.Logger,
		now:         time.Now,
	}
}

// requireRole loads the user and checks it holds role.
func (s *Service) requireRole(ctx context.Context, userID uuid.UUID, role auth.Role) (*identity.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, apperr.Validation("user %s is not a %s", userID, role)
	}
	return u, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.cache.Delete(ctx, k); err != nil {
			s.logger.Warn().Err(err).Str("key", k).Msg("cache invalidation failed")
		}
	}
}

func (s *Service) invalidateDoctorListings(ctx context.Context) {
	if err := s.cache.Clear(ctx, doctorsBySpecMatch); err != nil {
		s.logger.Warn().Err(err).Msg("cache invalidation failed")
	}
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, req CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.requireRole(ctx, req.UserID, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}
	d := &Doctor{
		UserID:              u.ID,
		Name:                u.Name,
		CRM:                 req.CRM,
		Biography:           req.Biography,
		ConsultationMinutes: req.ConsultationMinutes,
		VirtualRoomLink:     req.VirtualRoomLink,
		Specialties:         []Specialty{},
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByUserID(ctx, userID)
}

func (s *Service) UpdateDoctor(ctx context.Context, userID uuid.UUID, req UpdateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	d, err := s.doctors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	req.apply(d)
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	s.invalidateDoctorListings(ctx)
	return d, nil
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

func (s *Service) AddSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) (*Doctor, error) {
	if _, err := s.specialties.GetByID(ctx, specialtyID); err != nil {
		return nil, err
	}
	if err := s.doctors.AddSpecialty(ctx, doctorID, specialtyID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, doctorsBySpecialtyKey(specialtyID))
	return s.doctors.GetByUserID(ctx, doctorID)
}

func (s *Service) RemoveSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) error {
	removed, err := s.doctors.RemoveSpecialty(ctx, doctorID, specialtyID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("Médico não possui esta especialidade")
	}
	s.invalidate(ctx, doctorsBySpecialtyKey(specialtyID))
	return nil
}

// DoctorsBySpecialty is read through the cache and invalidated whenever a
// doctor's profile or specialties change.
func (s *Service) DoctorsBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*Doctor, error) {
	if _, err := s.GetSpecialty(ctx, specialtyID); err != nil {
		return nil, err
	}
	items, err := cache.Remember(ctx, s.cache, doctorsBySpecialtyKey(specialtyID), s.cacheTTL,
		func(ctx context.Context) ([]*Doctor, error) {
			return s.doctors.ListBySpecialty(ctx, specialtyID)
		})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Doctor{}
	}
	return items, nil
}

// -- Specialties --

func (s *Service) CreateSpecialty(ctx context.Context, req CreateSpecialtyRequest) (*Specialty, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sp := &Specialty{Name: req.Name}
	if err := s.specialties.Create(ctx, sp); err != nil {
		return nil, err
	}
	s.invalidate(ctx, specialtiesKey)
	return sp, nil
}

func (s *Service) GetSpecialty(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	return s.specialties.GetByID(ctx, id)
}

func (s *Service) ListSpecialties(ctx context.Context) ([]*Specialty, error) {
	items, err := cache.Remember(ctx, s.cache, specialtiesKey, s.cacheTTL, s.specialties.List)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Specialty{}
	}
	return items, nil
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(s.now()); err != nil {
		return nil, err
	}
	u, err := s.requireRole(ctx, req.UserID, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	p := &Patient{UserID: u.ID, Name: u.Name, BirthDate: req.BirthDate, Address: req.Address}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return s.patients.GetByUserID(ctx, userID)
}

func (s *Service) UpdatePatient(ctx context.Context, userID uuid.UUID, req UpdatePatientRequest) (*Patient, error) {
	if err := req.Validate(s.now()); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	req.apply(p)
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// -- Health summaries --

// CreateSummary creates a summary and links it to the patient in one
// transaction. A patient holds at most one summary.
func (s *Service) CreateSummary(ctx context.Context, patientID uuid.UUID, req SummaryRequest) (*HealthSummary, error) {
	sum := &HealthSummary{}
	req.apply(sum)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByUserID(ctx, patientID); err != nil {
			return err
		}
		if err := s.summaries.Create(ctx, sum); err != nil {
			return err
		}
		linked, err := s.patients.LinkSummary(ctx, patientID, sum.ID)
		if err != nil {
			return err
		}
		if !linked {
			return apperr.Conflict("Paciente já possui sumário de saúde")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (s *Service) GetPatientSummary(ctx context.Context, patientID uuid.UUID) (*HealthSummary, error) {
	p, err := s.patients.GetByUserID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.HealthSummaryID == nil {
		return nil, apperr.NotFound("Sumário de saúde não encontrado")
	}
	return s.summaries.GetByID(ctx, *p.HealthSummaryID)
}

func (s *Service) UpdateSummary(ctx context.Context, summaryID uuid.UUID, req SummaryRequest) (*HealthSummary, error) {
	sum, err := s.summaries.GetByID(ctx, summaryID)
	if err != nil {
		return nil, err
	}
	req.apply(sum)
	if err := s.summaries.Update(ctx, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// SummaryOwner returns the patient linked to a summary, used for access
// checks on summary routes.
func (s *Service) SummaryOwner(ctx context.Context, summaryID uuid.UUID) (uuid.UUID, error) {
	return s.patients.OwnerOfSummary(ctx, summaryID)
}
