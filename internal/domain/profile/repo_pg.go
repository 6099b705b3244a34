package profile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/db"
	"github.com/PTAIM/backend/pkg/dateparam"
)

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const doctorCols = `d.user_id, u.name, d.crm, d.biography, d.consultation_minutes,
	d.virtual_room_link, d.created_at, d.updated_at`

const doctorFrom = ` FROM doctor_profiles d JOIN users u ON u.id = d.user_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.UserID, &d.Name, &d.CRM, &d.Biography, &d.ConsultationMinutes,
		&d.VirtualRoomLink, &d.CreatedAt, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Perfil de médico não encontrado")
	}
	if err != nil {
		return nil, err
	}
	d.Specialties = []Specialty{}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_profiles (user_id, crm, biography, consultation_minutes, virtual_room_link)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		d.UserID, d.CRM, d.Biography, d.ConsultationMinutes, d.VirtualRoomLink).Scan(&d.CreatedAt, &d.UpdatedAt)
	if _, ok := db.UniqueViolation(err); ok {
		return apperr.Conflict("Perfil de médico já existe")
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apperr.NotFound("Usuário não encontrado")
	}
	return err
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+doctorFrom+` WHERE d.user_id = $1`, userID))
	if err != nil {
		return nil, err
	}
	if err := r.attachSpecialties(ctx, []*Doctor{d}); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor_profiles SET biography = $2, consultation_minutes = $3,
			virtual_room_link = $4, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`,
		d.UserID, d.Biography, d.ConsultationMinutes, d.VirtualRoomLink).Scan(&d.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("Perfil de médico não encontrado")
	}
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_profiles`).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, `SELECT `+doctorCols+doctorFrom+` ORDER BY u.name, d.user_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *doctorRepoPG) ListBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]*Doctor, error) {
	return r.query(ctx, `SELECT `+doctorCols+doctorFrom+`
		JOIN doctor_specialties ds ON ds.doctor_id = d.user_id
		WHERE ds.specialty_id = $1
		ORDER BY u.name, d.user_id`, specialtyID)
}

func (r *doctorRepoPG) query(ctx context.Context, sql string, args ...any) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachSpecialties(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *doctorRepoPG) attachSpecialties(ctx context.Context, doctors []*Doctor) error {
	if len(doctors) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Doctor, len(doctors))
	ids := make([]uuid.UUID, 0, len(doctors))
	for _, d := range doctors {
		byID[d.UserID] = d
		ids = append(ids, d.UserID)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ds.doctor_id, s.id, s.name
		FROM doctor_specialties ds JOIN specialties s ON s.id = ds.specialty_id
		WHERE ds.doctor_id = ANY($1)
		ORDER BY s.name`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var doctorID uuid.UUID
		var s Specialty
		if err := rows.Scan(&doctorID, &s.ID, &s.Name); err != nil {
			return err
		}
		if d, ok := byID[doctorID]; ok {
			d.Specialties = append(d.Specialties, s)
		}
	}
	return rows.Err()
}

func (r *doctorRepoPG) AddSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_specialties (doctor_id, specialty_id) VALUES ($1, $2)`, doctorID, specialtyID)
	if _, ok := db.UniqueViolation(err); ok {
		return apperr.Conflict("Médico já possui esta especialidade")
	}
	if constraint, ok := db.ForeignKeyViolation(err); ok {
		if constraint == "doctor_specialties_specialty_id_fkey" {
			return apperr.NotFound("Especialidade não encontrada")
		}
		return apperr.NotFound("Perfil de médico não encontrado")
	}
	return err
}

func (r *doctorRepoPG) RemoveSpecialty(ctx context.Context, doctorID, specialtyID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM doctor_specialties WHERE doctor_id = $1 AND specialty_id = $2`, doctorID, specialtyID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository { return &specialtyRepoPG{pool: pool} }

func (r *specialtyRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *specialtyRepoPG) Create(ctx context.Context, s *Specialty) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO specialties (id, name) VALUES ($1, $2)`, s.ID, s.Name)
	if _, ok := db.UniqueViolation(err); ok {
		return apperr.Conflict("Especialidade já existe")
	}
	return err
}

func (r *specialtyRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	var s Specialty
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name FROM specialties WHERE id = $1`, id).Scan(&s.ID, &s.Name)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Especialidade não encontrada")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *specialtyRepoPG) List(ctx context.Context) ([]*Specialty, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM specialties ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const patientCols = `p.user_id, u.name, p.birth_date, p.address, p.health_summary_id, p.created_at, p.updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birth *time.Time
	err := row.Scan(&p.UserID, &p.Name, &birth, &p.Address, &p.HealthSummaryID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Paciente não encontrado")
	}
	if err != nil {
		return nil, err
	}
	if birth != nil {
		p.BirthDate = dateparam.NewDate(*birth)
	}
	return &p, nil
}

func birthDateArg(d *dateparam.Date) *time.Time {
	if d == nil {
		return nil
	}
	return &d.Time
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_profiles (user_id, birth_date, address)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		p.UserID, birthDateArg(p.BirthDate), p.Address).Scan(&p.CreatedAt, &p.UpdatedAt)
	if _, ok := db.UniqueViolation(err); ok {
		return apperr.Conflict("Perfil de paciente já existe")
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apperr.NotFound("Usuário não encontrado")
	}
	return err
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+` FROM patient_profiles p JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1`, userID))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient_profiles SET birth_date = $2, address = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`,
		p.UserID, birthDateArg(p.BirthDate), p.Address).Scan(&p.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("Paciente não encontrado")
	}
	return err
}

func (r *patientRepoPG) LinkSummary(ctx context.Context, patientID, summaryID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_profiles SET health_summary_id = $2, updated_at = NOW()
		WHERE user_id = $1 AND health_summary_id IS NULL`, patientID, summaryID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *patientRepoPG) OwnerOfSummary(ctx context.Context, summaryID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT user_id FROM patient_profiles WHERE health_summary_id = $1`, summaryID).Scan(&owner)
	if db.IsNoRows(err) {
		return uuid.Nil, apperr.NotFound("Sumário de saúde não encontrado")
	}
	return owner, err
}

// =========== Health Summary Repository ===========

type summaryRepoPG struct{ pool *pgxpool.Pool }

func NewSummaryRepoPG(pool *pgxpool.Pool) SummaryRepository { return &summaryRepoPG{pool: pool} }

func (r *summaryRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *summaryRepoPG) Create(ctx context.Context, s *HealthSummary) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_summaries (id, disease_history, allergies, medications)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		s.ID, s.DiseaseHistory, s.Allergies, s.Medications).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *summaryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthSummary, error) {
	var s HealthSummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, disease_history, allergies, medications, created_at, updated_at
		FROM health_summaries WHERE id = $1`, id).
		Scan(&s.ID, &s.DiseaseHistory, &s.Allergies, &s.Medications, &s.CreatedAt, &s.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Sumário de saúde não encontrado")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *summaryRepoPG) Update(ctx context.Context, s *HealthSummary) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE health_summaries SET disease_history = $2, allergies = $3, medications = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.DiseaseHistory, s.Allergies, s.Medications).Scan(&s.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("Sumário de saúde não encontrado")
	}
	return err
}
