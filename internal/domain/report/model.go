package report

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/domain/exam"
	"github.com/PTAIM/backend/internal/platform/apperr"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusFinalized Status = "finalized"
	StatusSent      Status = "sent"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusFinalized || s == StatusSent
}

type Event string

const (
	EventFinalize Event = "finalize"
	EventSend     Event = "send"
)

var transitions = map[Status]map[Event]Status{
	StatusDraft:     {EventFinalize: StatusFinalized},
	StatusFinalized: {EventSend: StatusSent},
}

// Next fails with InvalidState: a report only moves forward.
func (s Status) Next(e Event) (Status, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return "", apperr.InvalidState("laudo em status %s não permite %s", s, e)
}

// Report is a laudo. It has no patient column; the patient is reached
// through its exam results.
type Report struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"medico_id"`
	Title       string    `json:"titulo"`
	Description string    `json:"descricao"`
	Status      Status    `json:"status"`
	IssuedAt    time.Time `json:"data_emissao"`
	UpdatedAt   time.Time `json:"atualizado_em"`
}

type Detail struct {
	Report
	PatientID *uuid.UUID           `json:"paciente_id,omitempty"`
	Exams     []*exam.ResultDetail `json:"exames"`
}

type CreateRequest struct {
	PatientID   uuid.UUID   `json:"paciente_id"`
	DoctorID    uuid.UUID   `json:"medico_id"`
	Title       string      `json:"titulo"`
	Description string      `json:"descricao"`
	ResultIDs   []uuid.UUID `json:"exames_ids"`
}

func (r *CreateRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	switch {
	case r.PatientID == uuid.Nil:
		return apperr.Validation("paciente_id is required")
	case r.Title == "":
		return apperr.Validation("titulo is required")
	case r.Description == "":
		return apperr.Validation("descricao is required")
	case len(r.ResultIDs) == 0:
		return apperr.Validation("exames_ids must reference at least one exam result")
	}
	r.ResultIDs = dedupe(r.ResultIDs)
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type UpdateRequest struct {
	Title       *string `json:"titulo"`
	Description *string `json:"descricao"`
}

func (r UpdateRequest) apply(rep *Report) error {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return apperr.Validation("titulo cannot be empty")
		}
		rep.Title = t
	}
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		if d == "" {
			return apperr.Validation("descricao cannot be empty")
		}
		rep.Description = d
	}
	return nil
}
