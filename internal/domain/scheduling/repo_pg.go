package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/db"
)

// =========== Template Repository ===========

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository { return &templateRepoPG{pool: pool} }

func (r *templateRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const templateCols = `id, doctor_id, weekday, slot_time, created_at`

func timeArg(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var slot pgtype.Time
	err := row.Scan(&t.ID, &t.DoctorID, &t.Weekday, &slot, &t.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Horário não encontrado")
	}
	if err != nil {
		return nil, err
	}
	minutes := slot.Microseconds / int64(time.Minute/time.Microsecond)
	t.Time = TimeOfDay{Hour: int(minutes / 60), Minute: int(minutes % 60)}
	return &t, nil
}

func (r *templateRepoPG) Create(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO availability_templates (id, doctor_id, weekday, slot_time)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		t.ID, t.DoctorID, t.Weekday, timeArg(t.Time)).Scan(&t.CreatedAt)
	if _, ok := db.UniqueViolation(err); ok {
		return apperr.Conflict("Horário já cadastrado para %s às %s", t.Weekday, t.Time)
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apperr.NotFound("Médico não encontrado")
	}
	return err
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return scanTemplate(r.conn(ctx).QueryRow(ctx, `SELECT `+templateCols+` FROM availability_templates WHERE id = $1`, id))
}

func (r *templateRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Template, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+templateCols+` FROM availability_templates
		WHERE doctor_id = $1
		ORDER BY weekday, slot_time`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_templates WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const apptCols = `id, patient_id, doctor_id, date_time, status, reason, notes,
	virtual_room_link, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.DateTime, &a.Status, &a.Reason, &a.Notes,
		&a.VirtualRoomLink, &a.CreatedAt, &a.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Consulta não encontrada")
	}
	if err != nil {
		return nil, err
	}
	a.DateTime = a.DateTime.UTC()
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, date_time, status, reason, notes, virtual_room_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.DateTime, a.Status, a.Reason, a.Notes, a.VirtualRoomLink,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if _, ok := db.UniqueViolation(err); ok {
		return apperr.Conflict("Horário não disponível")
	}
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apperr.NotFound("Paciente ou médico não encontrado")
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $2, notes = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`, a.ID, a.Status, a.Notes).Scan(&a.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("Consulta não encontrada")
	}
	return err
}

func (r *appointmentRepoPG) list(ctx context.Context, sql string, args ...any) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, from *time.Time) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE patient_id = $1 AND ($2::timestamptz IS NULL OR date_time >= $2)
		ORDER BY date_time DESC`, patientID, from)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from *time.Time) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE doctor_id = $1 AND ($2::timestamptz IS NULL OR date_time >= $2)
		ORDER BY date_time DESC`, doctorID, from)
}

func (r *appointmentRepoPG) Occupied(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT date_time FROM appointments
		WHERE doctor_id = $1 AND status IN ('scheduled', 'confirmed')
			AND date_time BETWEEN $2 AND $3`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t.UTC())
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) ActiveBetween(ctx context.Context, from, to time.Time) ([]*Appointment, error) {
	return r.list(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE status IN ('scheduled', 'confirmed') AND date_time BETWEEN $1 AND $2
		ORDER BY date_time`, from, to)
}
