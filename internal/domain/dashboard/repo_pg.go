package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PTAIM/backend/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *repoPG) Counts(ctx context.Context, doctorID uuid.UUID, since *time.Time) (Summary, error) {
	var s Summary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM exam_requests
			  WHERE doctor_id = $1 AND ($2::timestamptz IS NULL OR requested_at >= $2)),
			(SELECT COUNT(*) FROM exam_results r
			   JOIN exam_requests q ON q.id = r.request_id
			  WHERE q.doctor_id = $1 AND ($2::timestamptz IS NULL OR r.uploaded_at >= $2)),
			(SELECT COUNT(*) FROM reports
			  WHERE doctor_id = $1 AND ($2::timestamptz IS NULL OR issued_at >= $2)),
			(SELECT COUNT(DISTINCT patient_id) FROM exam_requests
			  WHERE doctor_id = $1 AND ($2::timestamptz IS NULL OR requested_at >= $2))`,
		doctorID, since,
	).Scan(&s.TotalRequests, &s.ResultsReceived, &s.ReportsIssued, &s.TotalPatients)
	if err != nil {
		return Summary{}, fmt.Errorf("dashboard counts: %w", err)
	}
	return s, nil
}

func (r *repoPG) RequestsPerMonth(ctx context.Context, doctorID uuid.UUID, since *time.Time) ([]MonthCount, error) {
	return r.perMonth(ctx, `
		SELECT to_char(requested_at, 'YYYY-MM') AS mes, COUNT(*)
		FROM exam_requests
		WHERE doctor_id = $1 AND ($2::timestamptz IS NULL OR requested_at >= $2)
		GROUP BY mes ORDER BY mes`, doctorID, since)
}

func (r *repoPG) ReportsPerMonth(ctx context.Context, doctorID uuid.UUID, since *time.Time) ([]MonthCount, error) {
	return r.perMonth(ctx, `
		SELECT to_char(issued_at, 'YYYY-MM') AS mes, COUNT(*)
		FROM reports
		WHERE doctor_id = $1 AND ($2::timestamptz IS NULL OR issued_at >= $2)
		GROUP BY mes ORDER BY mes`, doctorID, since)
}

func (r *repoPG) perMonth(ctx context.Context, query string, doctorID uuid.UUID, since *time.Time) ([]MonthCount, error) {
	rows, err := r.conn(ctx).Query(ctx, query, doctorID, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MonthCount, error) {
		var m MonthCount
		err := row.Scan(&m.Month, &m.Total)
		return m, err
	})
}
