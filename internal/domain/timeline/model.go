package timeline

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAppointment EventType = "appointment"
	EventExam        EventType = "exam"
	EventReport      EventType = "report"
	EventExamRequest EventType = "exam_request"
)

var eventTypes = []EventType{EventAppointment, EventExam, EventReport, EventExamRequest}

func (t EventType) Valid() bool {
	for _, et := range eventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Entry is one immutable line of a patient's clinical record.
type Entry struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"paciente_id"`
	EventType   EventType  `json:"tipo_evento"`
	OccurredAt  time.Time  `json:"data_evento"`
	Description string     `json:"descricao"`
	ReferenceID *uuid.UUID `json:"referencia_id,omitempty"`
}

// Filter narrows a query. Every field is optional and they combine with AND.
type Filter struct {
	EventType EventType
	From      *time.Time
	To        *time.Time
}

func (f Filter) matches(e *Entry) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredAt.After(*f.To) {
		return false
	}
	return true
}

// Totals are the per-patient aggregates shown with the complete record.
type Totals struct {
	Appointments int `json:"total_consultas"`
	ExamRequests int `json:"total_exames"`
}

type Record struct {
	PatientID uuid.UUID `json:"paciente_id"`
	Events    []*Entry  `json:"eventos"`
	Totals
	TotalEvents int `json:"total_eventos"`
}
