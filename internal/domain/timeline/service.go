package timeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/platform/apperr"
)

// Recorder appends to a patient's clinical record. Callers pass the ctx of
// the transaction that carries the state change being recorded.
type Recorder interface {
	Record(ctx context.Context, patientID uuid.UUID, typ EventType, refID uuid.UUID, description string) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Record(ctx context.Context, patientID uuid.UUID, typ EventType, refID uuid.UUID, description string) error {
	if patientID == uuid.Nil {
		return apperr.Validation("clinical log entry requires a patient")
	}
	if !typ.Valid() {
		return apperr.Validation("unknown event type %q", typ)
	}
	e := &Entry{PatientID: patientID, EventType: typ, Description: description}
	if refID != uuid.Nil {
		e.ReferenceID = &refID
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("record %s event for patient %s: %w", typ, patientID, err)
	}
	return nil
}

func (s *Service) Query(ctx context.Context, patientID uuid.UUID, f Filter) ([]*Entry, error) {
	if f.EventType != "" && !f.EventType.Valid() {
		return nil, apperr.Validation("unknown event type %q", f.EventType)
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return []*Entry{}, nil
	}
	items, err := s.repo.Query(ctx, patientID, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Entry{}
	}
	return items, nil
}

func (s *Service) Complete(ctx context.Context, patientID uuid.UUID) (*Record, error) {
	events, err := s.Query(ctx, patientID, Filter{})
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return &Record{PatientID: patientID, Events: events, Totals: totals, TotalEvents: len(events)}, nil
}

func (s *Service) Counts(ctx context.Context, patientID uuid.UUID) (map[EventType]int, error) {
	return s.repo.CountByType(ctx, patientID)
}
