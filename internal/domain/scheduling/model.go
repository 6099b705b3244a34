package scheduling

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/platform/apperr"
)

// Weekday is the tag stored on availability templates.
type Weekday string

const (
	Monday    Weekday = "Segunda"
	Tuesday   Weekday = "Terça"
	Wednesday Weekday = "Quarta"
	Thursday  Weekday = "Quinta"
	Friday    Weekday = "Sexta"
	Saturday  Weekday = "Sábado"
	Sunday    Weekday = "Domingo"
)

var weekdays = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

func WeekdayOf(t time.Time) Weekday {
	return weekdays[t.Weekday()]
}

func (w Weekday) Valid() bool {
	for _, v := range weekdays {
		if v == w {
			return true
		}
	}
	return false
}

var timeOfDayPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// TimeOfDay is a wall-clock time with minute precision, written "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return TimeOfDay{Hour: h, Minute: min}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute
}

// On places t on the calendar day of date.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, date.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Template is a doctor's recurring weekly slot.
type Template struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"medico_id"`
	Weekday   Weekday   `json:"dia_semana"`
	Time      TimeOfDay `json:"horario"`
	CreatedAt time.Time `json:"criado_em"`
}

type CreateTemplateRequest struct {
	DoctorID uuid.UUID `json:"medico_id"`
	Weekday  Weekday   `json:"dia_semana"`
	Time     string    `json:"horario"`
}

func (r *CreateTemplateRequest) parse() (*Template, error) {
	if !r.Weekday.Valid() {
		return nil, apperr.Validation("dia_semana must be one of Segunda, Terça, Quarta, Quinta, Sexta, Sábado, Domingo")
	}
	tod, err := ParseTimeOfDay(r.Time)
	if err != nil {
		return nil, apperr.Validation("horario must use the HH:MM format")
	}
	return &Template{DoctorID: r.DoctorID, Weekday: r.Weekday, Time: tod}, nil
}

// Availability is the response of a free-slot computation.
type Availability struct {
	DoctorID uuid.UUID   `json:"medico_id"`
	Slots    []time.Time `json:"horarios"`
}

// -- Appointments --

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Active appointments hold their slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

type Event string

const (
	EventConfirm  Event = "confirm"
	EventStart    Event = "start"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

var transitions = map[Status]map[Event]Status{
	StatusScheduled: {
		EventConfirm: StatusConfirmed,
		EventCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		EventStart:  StatusInProgress,
		EventCancel: StatusCancelled,
	},
	StatusInProgress: {
		EventComplete: StatusCompleted,
	},
}

// Next returns the status reached by applying e, or an invalid_transition
// error when e is not legal from s. Completed and cancelled are terminal.
func (s Status) Next(e Event) (Status, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return "", apperr.InvalidTransition("cannot %s an appointment that is %s", e, s)
}

type Appointment struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"paciente_id"`
	DoctorID        uuid.UUID `json:"medico_id"`
	DateTime        time.Time `json:"data_hora"`
	Status          Status    `json:"status"`
	Reason          *string   `json:"motivo_consulta,omitempty"`
	Notes           *string   `json:"observacoes,omitempty"`
	VirtualRoomLink *string   `json:"link_sala_virtual,omitempty"`
	CreatedAt       time.Time `json:"criado_em"`
	UpdatedAt       time.Time `json:"atualizado_em"`
}

type BookRequest struct {
	PatientID uuid.UUID `json:"paciente_id"`
	DoctorID  uuid.UUID `json:"medico_id"`
	DateTime  string    `json:"data_hora"`
	Reason    *string   `json:"motivo_consulta"`
}

type CompleteRequest struct {
	Notes *string `json:"observacoes"`
}

// LifecycleEvent is published to the appointment topic on every change.
type LifecycleEvent struct {
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	DateTime      time.Time `json:"date_time"`
	Status        Status    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}
