package exam

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/pkg/dateparam"
)

type Status string

const (
	StatusAwaitingResult  Status = "awaiting_result"
	StatusResultSubmitted Status = "result_submitted"
	StatusCancelled       Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingResult, StatusResultSubmitted, StatusCancelled:
		return true
	}
	return false
}

type Event string

const (
	EventSubmitResult Event = "submit_result"
	EventCancel       Event = "cancel"
)

// A request keeps accepting results once the first one arrives. Cancelled
// is terminal.
var transitions = map[Status]map[Event]Status{
	StatusAwaitingResult: {
		EventSubmitResult: StatusResultSubmitted,
		EventCancel:       StatusCancelled,
	},
	StatusResultSubmitted: {
		EventSubmitResult: StatusResultSubmitted,
	},
}

func (s Status) Next(e Event) (Status, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return "", apperr.InvalidTransition("exam request in status %s does not accept %s", s, e)
}

// Request is a doctor's order for an exam, identified out of band by Code.
type Request struct {
	ID            uuid.UUID  `json:"id"`
	Code          string     `json:"codigo_solicitacao"`
	PatientID     uuid.UUID  `json:"paciente_id"`
	DoctorID      uuid.UUID  `json:"medico_id"`
	AppointmentID *uuid.UUID `json:"consulta_id,omitempty"`
	ExamName      string     `json:"nome_exame"`
	Hypothesis    *string    `json:"hipotese_diagnostica,omitempty"`
	Preparation   *string    `json:"detalhes_preparo,omitempty"`
	Status        Status     `json:"status"`
	RequestedAt   time.Time  `json:"data_solicitacao"`
}

type Result struct {
	ID          uuid.UUID `json:"id"`
	RequestID   uuid.UUID `json:"solicitacao_id"`
	PerformedAt time.Time `json:"data_realizacao"`
	LabName     string    `json:"nome_laboratorio"`
	FileURL     string    `json:"url_arquivo"`
	FileName    string    `json:"nome_arquivo"`
	UploadedAt  time.Time `json:"data_upload"`
	Notes       *string   `json:"observacoes,omitempty"`
}

// ResultDetail is a result together with the request it answers.
type ResultDetail struct {
	Result
	Code      string    `json:"codigo_solicitacao"`
	ExamName  string    `json:"nome_exame"`
	PatientID uuid.UUID `json:"paciente_id"`
	DoctorID  uuid.UUID `json:"medico_id"`
}

type RequestFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
}

// -- Requests --

type CreateRequest struct {
	PatientID     uuid.UUID  `json:"paciente_id"`
	DoctorID      uuid.UUID  `json:"medico_id"`
	AppointmentID *uuid.UUID `json:"consulta_id"`
	ExamName      string     `json:"nome_exame"`
	Hypothesis    *string    `json:"hipotese_diagnostica"`
	Preparation   *string    `json:"detalhes_preparo"`
}

func (r *CreateRequest) Validate() error {
	r.ExamName = strings.TrimSpace(r.ExamName)
	if r.ExamName == "" {
		return apperr.Validation("nome_exame is required")
	}
	if r.PatientID == uuid.Nil {
		return apperr.Validation("paciente_id is required")
	}
	return nil
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// event maps a requested status onto the event that produces it. Results
// only arrive through SubmitResult, so cancellation is the one manual move.
func (r UpdateStatusRequest) event() (Event, error) {
	switch r.Status {
	case StatusCancelled:
		return EventCancel, nil
	case StatusAwaitingResult, StatusResultSubmitted:
		return "", apperr.Validation("status %s cannot be set directly", r.Status)
	}
	return "", apperr.Validation("unknown status %q", r.Status)
}

type SubmitResultRequest struct {
	Code        string  `json:"codigo_solicitacao"`
	PerformedAt string  `json:"data_realizacao"`
	LabName     string  `json:"nome_laboratorio"`
	FileURL     string  `json:"url_arquivo"`
	FileName    string  `json:"nome_arquivo"`
	Notes       *string `json:"observacoes"`
}

func (r *SubmitResultRequest) parse(now time.Time) (*Result, error) {
	r.Code = normalizeCode(r.Code)
	if r.Code == "" {
		return nil, apperr.Validation("codigo_solicitacao is required")
	}
	if strings.TrimSpace(r.LabName) == "" {
		return nil, apperr.Validation("nome_laboratorio is required")
	}
	if strings.TrimSpace(r.FileURL) == "" {
		return nil, apperr.Validation("url_arquivo is required")
	}
	performed, err := dateparam.ParseDateTime(r.PerformedAt, time.UTC)
	if err != nil {
		if performed, err = dateparam.ParseDate(r.PerformedAt, time.UTC); err != nil {
			return nil, apperr.Validation("data_realizacao must be a date or date-time")
		}
	}
	if performed.After(now) {
		return nil, apperr.Validation("data_realizacao cannot be in the future")
	}
	name := strings.TrimSpace(r.FileName)
	if name == "" {
		name = fileNameOf(r.FileURL)
	}
	return &Result{
		PerformedAt: performed.UTC(),
		LabName:     strings.TrimSpace(r.LabName),
		FileURL:     strings.TrimSpace(r.FileURL),
		FileName:    name,
		Notes:       r.Notes,
	}, nil
}

func fileNameOf(url string) string {
	url = strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(url, "/\\"); i >= 0 {
		return url[i+1:]
	}
	return url
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
