package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const reportCols = `l.id, l.doctor_id, l.title, l.description, l.status, l.issued_at, l.updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var rep Report
	err := row.Scan(&rep.ID, &rep.DoctorID, &rep.Title, &rep.Description, &rep.Status, &rep.IssuedAt, &rep.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("Laudo não encontrado")
	}
	if err != nil {
		return nil, err
	}
	rep.IssuedAt, rep.UpdatedAt = rep.IssuedAt.UTC(), rep.UpdatedAt.UTC()
	return &rep, nil
}

// Create must run inside a transaction so a bad result id leaves nothing
// behind.
func (r *repoPG) Create(ctx context.Context, rep *Report, resultIDs []uuid.UUID) error {
	rep.ID = uuid.New()
	q := r.conn(ctx)
	err := q.QueryRow(ctx, `
		INSERT INTO reports (id, doctor_id, title, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING issued_at, updated_at`,
		rep.ID, rep.DoctorID, rep.Title, rep.Description, rep.Status,
	).Scan(&rep.IssuedAt, &rep.UpdatedAt)
	if _, ok := db.ForeignKeyViolation(err); ok {
		return apperr.NotFound("Médico não encontrado")
	}
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, id := range resultIDs {
		batch.Queue(`INSERT INTO report_exam_results (report_id, result_id) VALUES ($1, $2)`, rep.ID, id)
	}
	br := q.SendBatch(ctx, batch)
	defer br.Close()
	for _, id := range resultIDs {
		if _, err := br.Exec(); err != nil {
			if _, ok := db.ForeignKeyViolation(err); ok {
				return apperr.NotFound("Resultado de exame não encontrado: %s", id)
			}
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	return scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM reports l WHERE l.id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Report, error) {
	return scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM reports l WHERE l.id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, rep *Report) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE reports SET title = $2, description = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`, rep.ID, rep.Title, rep.Description, rep.Status).Scan(&rep.UpdatedAt)
	if db.IsNoRows(err) {
		return apperr.NotFound("Laudo não encontrado")
	}
	return err
}

func (r *repoPG) ResultIDs(ctx context.Context, reportID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT result_id FROM report_exam_results WHERE report_id = $1 ORDER BY result_id`, reportID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *repoPG) list(ctx context.Context, sql string, args ...any) ([]*Report, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rep)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status *Status) ([]*Report, error) {
	return r.list(ctx, `SELECT `+reportCols+` FROM reports l
		WHERE l.doctor_id = $1 AND ($2::text IS NULL OR l.status = $2)
		ORDER BY l.issued_at DESC`, doctorID, status)
}

// ListByPatient walks report -> association -> result -> request.
func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status *Status) ([]*Report, error) {
	return r.list(ctx, `SELECT `+reportCols+` FROM reports l
		WHERE ($2::text IS NULL OR l.status = $2)
			AND EXISTS (
				SELECT 1 FROM report_exam_results rr
				JOIN exam_results er ON er.id = rr.result_id
				JOIN exam_requests q ON q.id = er.request_id
				WHERE rr.report_id = l.id AND q.patient_id = $1)
		ORDER BY l.issued_at DESC`, patientID, status)
}
