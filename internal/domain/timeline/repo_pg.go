package timeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PTAIM/backend/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const entryCols = `id, patient_id, event_type, occurred_at, description, reference_id`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.PatientID, &e.EventType, &e.OccurredAt, &e.Description, &e.ReferenceID); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Append(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_log_entries (id, patient_id, event_type, description, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING occurred_at`,
		e.ID, e.PatientID, e.EventType, e.Description, e.ReferenceID).Scan(&e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append clinical log entry: %w", err)
	}
	return nil
}

func (r *repoPG) Query(ctx context.Context, patientID uuid.UUID, f Filter) ([]*Entry, error) {
	query := `SELECT ` + entryCols + ` FROM clinical_log_entries WHERE patient_id = $1`
	args := []any{patientID}

	if f.EventType != "" {
		args = append(args, f.EventType)
		query += fmt.Sprintf(` AND event_type = $%d`, len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(` AND occurred_at >= $%d`, len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(` AND occurred_at <= $%d`, len(args))
	}
	query += ` ORDER BY occurred_at DESC, id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) CountByType(ctx context.Context, patientID uuid.UUID) (map[EventType]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT event_type, COUNT(*) FROM clinical_log_entries
		WHERE patient_id = $1 GROUP BY event_type`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[EventType]int, len(eventTypes))
	for _, t := range eventTypes {
		counts[t] = 0
	}
	for rows.Next() {
		var t EventType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) Totals(ctx context.Context, patientID uuid.UUID) (Totals, error) {
	var t Totals
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM appointments WHERE patient_id = $1),
			(SELECT COUNT(*) FROM exam_requests WHERE patient_id = $1)`,
		patientID).Scan(&t.Appointments, &t.ExamRequests)
	return t, err
}
