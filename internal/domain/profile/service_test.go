package profile

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/domain/identity"
	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/cache"
	"github.com/PTAIM/backend/internal/platform/db"
	"github.com/PTAIM/backend/pkg/dateparam"
)

// -- Mock Repositories --

type fakeDirectory struct {
	users map[uuid.UUID]*identity.User
}

func (f *fakeDirectory) Get(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeDirectory) add(name string, role auth.Role) *identity.User {
	u := &identity.User{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: role}
	f.users[u.ID] = u
	return u
}

type mockSpecialtyRepo struct {
	items     map[uuid.UUID]*Specialty
	listCalls int
}

func (m *mockSpecialtyRepo) Create(_ context.Context, s *Specialty) error {
	for _, existing := range m.items {
		if existing.Name == s.Name {
			return apperr.Conflict("Especialidade já existe")
		}
	}
	s.ID = uuid.New()
	m.items[s.ID] = s
	return nil
}

func (m *mockSpecialtyRepo) GetByID(_ context.Context, id uuid.UUID) (*Specialty, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("Especialidade não encontrada")
	}
	return s, nil
}

func (m *mockSpecialtyRepo) List(_ context.Context) ([]*Specialty, error) {
	m.listCalls++
	var out []*Specialty
	for _, s := range m.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type mockDoctorRepo struct {
	doctors     map[uuid.UUID]*Doctor
	links       map[uuid.UUID]map[uuid.UUID]bool
	specialties *mockSpecialtyRepo
	bySpecCalls int
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.UserID]; ok {
		return apperr.Conflict("Perfil de médico já existe")
	}
	d.CreatedAt, d.UpdatedAt = time.Now(), time.Now()
	m.doctors[d.UserID] = d
	return nil
}

func (m *mockDoctorRepo) GetByUserID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("Perfil de médico não encontrado")
	}
	cp := *d
	cp.Specialties = []Specialty{}
	for specID := range m.links[id] {
		cp.Specialties = append(cp.Specialties, *m.specialties.items[specID])
	}
	return &cp, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	if _, ok := m.doctors[d.UserID]; !ok {
		return apperr.NotFound("Perfil de médico não encontrado")
	}
	d.UpdatedAt = time.Now()
	m.doctors[d.UserID] = d
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	var out []*Doctor
	for _, d := range m.doctors {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (m *mockDoctorRepo) ListBySpecialty(ctx context.Context, specID uuid.UUID) ([]*Doctor, error) {
	m.bySpecCalls++
	var out []*Doctor
	for id, specs := range m.links {
		if specs[specID] {
			d, _ := m.GetByUserID(ctx, id)
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDoctorRepo) AddSpecialty(_ context.Context, doctorID, specID uuid.UUID) error {
	if _, ok := m.doctors[doctorID]; !ok {
		return apperr.NotFound("Perfil de médico não encontrado")
	}
	if m.links[doctorID] == nil {
		m.links[doctorID] = map[uuid.UUID]bool{}
	}
	if m.links[doctorID][specID] {
		return apperr.Conflict("Médico já possui esta especialidade")
	}
	m.links[doctorID][specID] = true
	return nil
}

func (m *mockDoctorRepo) RemoveSpecialty(_ context.Context, doctorID, specID uuid.UUID) (bool, error) {
	if !m.links[doctorID][specID] {
		return false, nil
	}
	delete(m.links[doctorID], specID)
	return true, nil
}

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.UserID]; ok {
		return apperr.Conflict("Perfil de paciente já existe")
	}
	m.patients[p.UserID] = p
	return nil
}

func (m *mockPatientRepo) GetByUserID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("Paciente não encontrado")
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.UserID] = p
	return nil
}

func (m *mockPatientRepo) LinkSummary(_ context.Context, patientID, summaryID uuid.UUID) (bool, error) {
	p, ok := m.patients[patientID]
	if !ok || p.HealthSummaryID != nil {
		return false, nil
	}
	p.HealthSummaryID = &summaryID
	return true, nil
}

func (m *mockPatientRepo) OwnerOfSummary(_ context.Context, summaryID uuid.UUID) (uuid.UUID, error) {
	for id, p := range m.patients {
		if p.HealthSummaryID != nil && *p.HealthSummaryID == summaryID {
			return id, nil
		}
	}
	return uuid.Nil, apperr.NotFound("Sumário de saúde não encontrado")
}

type mockSummaryRepo struct {
	items map[uuid.UUID]*HealthSummary
}

func (m *mockSummaryRepo) Create(_ context.Context, s *HealthSummary) error {
	s.ID = uuid.New()
	m.items[s.ID] = s
	return nil
}

func (m *mockSummaryRepo) GetByID(_ context.Context, id uuid.UUID) (*HealthSummary, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("Sumário de saúde não encontrado")
	}
	return s, nil
}

func (m *mockSummaryRepo) Update(_ context.Context, s *HealthSummary) error {
	m.items[s.ID] = s
	return nil
}

type testEnv struct {
	svc         *Service
	users       *fakeDirectory
	doctors     *mockDoctorRepo
	specialties *mockSpecialtyRepo
	patients    *mockPatientRepo
	summaries   *mockSummaryRepo
}

func newTestService() *testEnv {
	specs := &mockSpecialtyRepo{items: map[uuid.UUID]*Specialty{}}
	env := &testEnv{
		users:       &fakeDirectory{users: map[uuid.UUID]*identity.User{}},
		specialties: specs,
		doctors:     &mockDoctorRepo{doctors: map[uuid.UUID]*Doctor{}, links: map[uuid.UUID]map[uuid.UUID]bool{}, specialties: specs},
		patients:    &mockPatientRepo{patients: map[uuid.UUID]*Patient{}},
		summaries:   &mockSummaryRepo{items: map[uuid.UUID]*HealthSummary{}},
	}
	env.svc = NewService(Deps{
		Doctors:     env.doctors,
		Specialties: env.specialties,
		Patients:    env.patients,
		Summaries:   env.summaries,
		Users:       env.users,
		Tx:          db.NoTx{},
		Cache:       cache.NewMemoryCache(time.Minute),
		CacheTTL:    time.Minute,
		Logger:      zerolog.Nop(),
	})
	return env
}

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }

func (env *testEnv) doctor(t *testing.T) *Doctor {
	t.Helper()
	u := env.users.add("dra-ana", auth.RoleDoctor)
	d, err := env.svc.CreateDoctor(context.Background(), CreateDoctorRequest{
		UserID: u.ID, CRM: "12345-SP", VirtualRoomLink: strp("https://meet.example.com/ana"),
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	return d
}

func TestCreateDoctor(t *testing.T) {
	env := newTestService()
	d := env.doctor(t)
	if d.Name != "dra-ana" || d.CRM != "12345-SP" {
		t.Errorf("unexpected doctor %+v", d)
	}

	_, err := env.svc.CreateDoctor(context.Background(), CreateDoctorRequest{UserID: d.UserID, CRM: "x"})
	if !apperr.Is(err, apperr.CategoryConflict) {
		t.Errorf("expected conflict on duplicate profile, got %v", err)
	}
}

func TestCreateDoctor_RequiresDoctorUser(t *testing.T) {
	env := newTestService()
	patient := env.users.add("paulo", auth.RolePatient)
	_, err := env.svc.CreateDoctor(context.Background(), CreateDoctorRequest{UserID: patient.ID, CRM: "1"})
	if !apperr.Is(err, apperr.CategoryValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	_, err = env.svc.CreateDoctor(context.Background(), CreateDoctorRequest{UserID: uuid.New(), CRM: "1"})
	if !apperr.Is(err, apperr.CategoryNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCreateDoctor_Validation(t *testing.T) {
	env := newTestService()
	u := env.users.add("dr-bruno", auth.RoleDoctor)
	cases := []CreateDoctorRequest{
		{UserID: u.ID, CRM: "  "},
		{UserID: u.ID, CRM: "1", ConsultationMinutes: f64p(0)},
		{UserID: u.ID, CRM: "1", VirtualRoomLink: strp("ftp://room")},
	}
	for i, req := range cases {
		if _, err := env.svc.CreateDoctor(context.Background(), req); !apperr.Is(err, apperr.CategoryValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestUpdateDoctor_Partial(t *testing.T) {
	env := newTestService()
	d := env.doctor(t)

	got, err := env.svc.UpdateDoctor(context.Background(), d.UserID, UpdateDoctorRequest{ConsultationMinutes: f64p(45)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got.ConsultationMinutes != 45 {
		t.Errorf("expected 45, got %v", *got.ConsultationMinutes)
	}
	if got.VirtualRoomLink == nil || *got.VirtualRoomLink != "https://meet.example.com/ana" {
		t.Error("expected untouched fields to survive a partial update")
	}
}

func TestSpecialties_CachedAndInvalidated(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	if _, err := env.svc.CreateSpecialty(ctx, CreateSpecialtyRequest{Name: "Cardiologia"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, _ := env.svc.ListSpecialties(ctx)
	second, _ := env.svc.ListSpecialties(ctx)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected 1 specialty, got %d/%d", len(first), len(second))
	}
	if env.specialties.listCalls != 1 {
		t.Errorf("expected second list to be served from cache, repo called %d times", env.specialties.listCalls)
	}

	env.svc.CreateSpecialty(ctx, CreateSpecialtyRequest{Name: "Dermatologia"})
	third, _ := env.svc.ListSpecialties(ctx)
	if len(third) != 2 {
		t.Errorf("expected cache invalidated after create, got %d", len(third))
	}
}

func TestCreateSpecialty_Duplicate(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	env.svc.CreateSpecialty(ctx, CreateSpecialtyRequest{Name: "Cardiologia"})
	_, err := env.svc.CreateSpecialty(ctx, CreateSpecialtyRequest{Name: " Cardiologia "})
	if !apperr.Is(err, apperr.CategoryConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if _, err := env.svc.CreateSpecialty(ctx, CreateSpecialtyRequest{Name: "ab"}); !apperr.Is(err, apperr.CategoryValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDoctorSpecialties(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	d := env.doctor(t)
	spec, _ := env.svc.CreateSpecialty(ctx, CreateSpecialtyRequest{Name: "Cardiologia"})

	listed, err := env.svc.DoctorsBySpecialty(ctx, spec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no doctors yet, got %d", len(listed))
	}

	got, err := env.svc.AddSpecialty(ctx, d.UserID, spec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Specialties) != 1 || got.Specialties[0].Name != "Cardiologia" {
		t.Errorf("expected specialty attached, got %+v", got.Specialties)
	}
	if _, err := env.svc.AddSpecialty(ctx, d.UserID, spec.ID); !apperr.Is(err, apperr.CategoryConflict) {
		t.Errorf("expected conflict on duplicate link, got %v", err)
	}

	listed, _ = env.svc.DoctorsBySpecialty(ctx, spec.ID)
	if len(listed) != 1 {
		t.Errorf("expected listing refreshed after add, got %d", len(listed))
	}
	env.svc.DoctorsBySpecialty(ctx, spec.ID)
	if env.doctors.bySpecCalls != 2 {
		t.Errorf("expected 2 repo calls (initial + after invalidation), got %d", env.doctors.bySpecCalls)
	}

	if err := env.svc.RemoveSpecialty(ctx, d.UserID, spec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.svc.RemoveSpecialty(ctx, d.UserID, spec.ID); !apperr.Is(err, apperr.CategoryNotFound) {
		t.Errorf("expected not found on second removal, got %v", err)
	}
	listed, _ = env.svc.DoctorsBySpecialty(ctx, spec.ID)
	if len(listed) != 0 {
		t.Errorf("expected listing refreshed after removal, got %d", len(listed))
	}
}

func TestAddSpecialty_UnknownSpecialty(t *testing.T) {
	env := newTestService()
	d := env.doctor(t)
	if _, err := env.svc.AddSpecialty(context.Background(), d.UserID, uuid.New()); !apperr.Is(err, apperr.CategoryNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPatientProfile(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	u := env.users.add("paula", auth.RolePatient)
	birth := dateparam.NewDate(time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC))

	p, err := env.svc.CreatePatient(ctx, CreatePatientRequest{UserID: u.ID, BirthDate: birth, Address: strp("Rua A, 1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "paula" || p.BirthDate.String() != "1990-05-15" {
		t.Errorf("unexpected patient %+v", p)
	}
	if _, err := env.svc.CreatePatient(ctx, CreatePatientRequest{UserID: u.ID}); !apperr.Is(err, apperr.CategoryConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	updated, err := env.svc.UpdatePatient(ctx, u.ID, UpdatePatientRequest{Address: strp("Rua B, 2")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *updated.Address != "Rua B, 2" || updated.BirthDate == nil {
		t.Errorf("unexpected update result %+v", updated)
	}

	future := dateparam.NewDate(time.Now().AddDate(1, 0, 0))
	if _, err := env.svc.UpdatePatient(ctx, u.ID, UpdatePatientRequest{BirthDate: future}); !apperr.Is(err, apperr.CategoryValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHealthSummary(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	u := env.users.add("paula", auth.RolePatient)
	env.svc.CreatePatient(ctx, CreatePatientRequest{UserID: u.ID})

	if _, err := env.svc.GetPatientSummary(ctx, u.ID); !apperr.Is(err, apperr.CategoryNotFound) {
		t.Errorf("expected not found before creation, got %v", err)
	}

	sum, err := env.svc.CreateSummary(ctx, u.ID, SummaryRequest{Allergies: strp("Penicilina")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.CreateSummary(ctx, u.ID, SummaryRequest{}); !apperr.Is(err, apperr.CategoryConflict) {
		t.Errorf("expected conflict on second summary, got %v", err)
	}

	got, err := env.svc.GetPatientSummary(ctx, u.ID)
	if err != nil || got.ID != sum.ID {
		t.Fatalf("expected linked summary, got %v %v", got, err)
	}

	updated, err := env.svc.UpdateSummary(ctx, sum.ID, SummaryRequest{Medications: strp("Losartana 50mg")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *updated.Allergies != "Penicilina" || *updated.Medications != "Losartana 50mg" {
		t.Errorf("unexpected summary %+v", updated)
	}

	owner, err := env.svc.SummaryOwner(ctx, sum.ID)
	if err != nil || owner != u.ID {
		t.Errorf("expected owner %s, got %s %v", u.ID, owner, err)
	}
}

func TestCreateSummary_UnknownPatient(t *testing.T) {
	env := newTestService()
	if _, err := env.svc.CreateSummary(context.Background(), uuid.New(), SummaryRequest{}); !apperr.Is(err, apperr.CategoryNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(env.summaries.items) != 0 {
		t.Error("expected no orphan summary")
	}
}
