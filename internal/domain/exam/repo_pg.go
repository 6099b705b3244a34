package exam

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/db"
)

// =========== Request Repository ===========

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository { return &requestRepoPG{pool: pool} }

func (r *requestRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const requestCols = `id, code, patient_id, doctor_id, appointment_id, exam_name,
	hypothesis, preparation, status, requested_at`

func scanRequest(row pgx.Row) (*Request, error) {
	var q Request
	err := row.Scan(&q.ID, &q.Code, &q.PatientID, &q.DoctorID, &q.AppointmentID, &q.ExamName,
		&q.Hypothesis, &q.Preparation, &q.Status, &q.RequestedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Solicitação não encontrada")
	}
	if err != nil {
		return nil, err
	}
	q.RequestedAt = q.RequestedAt.UTC()
	return &q, nil
}

func (r *requestRepoPG) Create(ctx context.Context, q *Request) error {
	q.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO exam_requests (id, code, patient_id, doctor_id, appointment_id, exam_name,
			hypothesis, preparation, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING requested_at`,
		q.ID, q.Code, q.PatientID, q.DoctorID, q.AppointmentID, q.ExamName,
		q.Hypothesis, q.Preparation, q.Status,
	).Scan(&q.RequestedAt)
	if name, ok := db.UniqueViolation(err); ok {
		if name == "exam_requests_code_key" {
			return ErrDuplicateCode
		}
		return apperr.Conflict("Solicitação já existe")
	}
	if name, ok := db.ForeignKeyViolation(err); ok {
		if name == "exam_requests_appointment_id_fkey" {
			return apperr.NotFound("Consulta não encontrada")
		}
		return apperr.NotFound("Paciente ou médico não encontrado")
	}
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM exam_requests WHERE id = $1`, id))
}

func (r *requestRepoPG) GetByCode(ctx context.Context, code string) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM exam_requests WHERE code = $1`, code))
}

func (r *requestRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM exam_requests WHERE id = $1 FOR UPDATE`, id))
}

func (r *requestRepoPG) GetByCodeForUpdate(ctx context.Context, code string) (*Request, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM exam_requests WHERE code = $1 FOR UPDATE`, code))
}

func (r *requestRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE exam_requests SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Solicitação não encontrada")
	}
	return nil
}

func (r *requestRepoPG) List(ctx context.Context, f RequestFilter) ([]*Request, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+requestCols+` FROM exam_requests
		WHERE ($1::uuid IS NULL OR patient_id = $1)
			AND ($2::uuid IS NULL OR doctor_id = $2)
			AND ($3::text IS NULL OR status = $3)
		ORDER BY requested_at DESC`, f.PatientID, f.DoctorID, f.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}

// =========== Result Repository ===========

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepoPG(pool *pgxpool.Pool) ResultRepository { return &resultRepoPG{pool: pool} }

func (r *resultRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const resultCols = `id, request_id, performed_at, lab_name, file_url, file_name, uploaded_at, notes`

const detailCols = `r.id, r.request_id, r.performed_at, r.lab_name, r.file_url, r.file_name,
	r.uploaded_at, r.notes, q.code, q.exam_name, q.patient_id, q.doctor_id`

func scanResult(row pgx.Row) (*Result, error) {
	var res Result
	err := row.Scan(&res.ID, &res.RequestID, &res.PerformedAt, &res.LabName, &res.FileURL, &res.FileName,
		&res.UploadedAt, &res.Notes)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Resultado não encontrado")
	}
	if err != nil {
		return nil, err
	}
	res.PerformedAt, res.UploadedAt = res.PerformedAt.UTC(), res.UploadedAt.UTC()
	return &res, nil
}

func scanDetail(row pgx.Row) (*ResultDetail, error) {
	var d ResultDetail
	err := row.Scan(&d.ID, &d.RequestID, &d.PerformedAt, &d.LabName, &d.FileURL, &d.FileName,
		&d.UploadedAt, &d.Notes, &d.Code, &d.ExamName, &d.PatientID, &d.DoctorID)
	if err != nil {
		return nil, err
	}
	d.PerformedAt, d.UploadedAt = d.PerformedAt.UTC(), d.UploadedAt.UTC()
	return &d, nil
}

func (r *resultRepoPG) Create(ctx context.Context, res *Result) error {
	res.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO exam_results (id, request_id, performed_at, lab_name, file_url, file_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING uploaded_at`,
		res.ID, res.RequestID, res.PerformedAt, res.LabName, res.FileURL, res.FileName, res.Notes,
	).Scan(&res.UploadedAt)
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apperr.NotFound("Solicitação não encontrada")
	}
	return err
}

func (r *resultRepoPG) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*Result, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+resultCols+` FROM exam_results
		WHERE request_id = $1
		ORDER BY uploaded_at DESC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}
	return items, rows.Err()
}

func (r *resultRepoPG) details(ctx context.Context, sql string, args ...any) ([]*ResultDetail, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ResultDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (r *resultRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ResultDetail, error) {
	return r.details(ctx, `
		SELECT `+detailCols+`
		FROM exam_results r JOIN exam_requests q ON q.id = r.request_id
		WHERE q.patient_id = $1
		ORDER BY r.performed_at DESC`, patientID)
}

func (r *resultRepoPG) Details(ctx context.Context, ids []uuid.UUID) ([]*ResultDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.details(ctx, `
		SELECT `+detailCols+`
		FROM exam_results r JOIN exam_requests q ON q.id = r.request_id
		WHERE r.id = ANY($1)
		ORDER BY r.performed_at`, ids)
}

func (r *resultRepoPG) WorkQueue(ctx context.Context, doctorID uuid.UUID) ([]*ResultDetail, error) {
	return r.details(ctx, `
		SELECT `+detailCols+`
		FROM exam_results r JOIN exam_requests q ON q.id = r.request_id
		WHERE q.doctor_id = $1 AND q.status = 'result_submitted'
			AND NOT EXISTS (
				SELECT 1 FROM report_exam_results rr
				JOIN reports l ON l.id = rr.report_id
				WHERE rr.result_id = r.id AND l.status IN ('finalized', 'sent'))
		ORDER BY r.uploaded_at`, doctorID)
}
