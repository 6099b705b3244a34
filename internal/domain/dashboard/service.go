package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Stats summarizes the doctor's exam and report activity over period.
func (s *Service) Stats(ctx context.Context, doctorID uuid.UUID, period Period) (*Stats, error) {
	since := period.Since(s.now().UTC())

	summary, err := s.repo.Counts(ctx, doctorID, since)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Period: period, Summary: summary}
	if stats.RequestsPerMonth, err = s.repo.RequestsPerMonth(ctx, doctorID, since); err != nil {
		return nil, err
	}
	if stats.ReportsPerMonth, err = s.repo.ReportsPerMonth(ctx, doctorID, since); err != nil {
		return nil, err
	}
	if stats.RequestsPerMonth == nil {
		stats.RequestsPerMonth = []MonthCount{}
	}
	if stats.ReportsPerMonth == nil {
		stats.ReportsPerMonth = []MonthCount{}
	}
	return stats, nil
}
