package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/domain/identity"
	"github.com/PTAIM/backend/internal/domain/profile"
	"github.com/PTAIM/backend/internal/domain/timeline"
	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/db"
	"github.com/PTAIM/backend/internal/platform/messaging"
	"github.com/PTAIM/backend/internal/platform/notification"
	"github.com/PTAIM/backend/pkg/dateparam"
)

// DoctorDirectory resolves doctor profiles.
type DoctorDirectory interface {
	GetDoctor(ctx context.Context, userID uuid.UUID) (*profile.Doctor, error)
}

type Deps struct {
	Templates    TemplateRepository
	Appointments AppointmentRepository
	Users        identity.Directory
	Doctors      DoctorDirectory
	Timeline     timeline.Recorder
	Tx           db.Transactor
	Notifier     notification.Notifier
	Events       messaging.EventStream
	Logger       zerolog.Logger
	Registerer   prometheus.Registerer
}

type Service struct {
	templates    TemplateRepository
	appointments AppointmentRepository
	users        identity.Directory
	doctors      DoctorDirectory
	timeline     timeline.Recorder
	tx           db.Transactor
	notifier     notification.Notifier
	events       messaging.EventStream
	logger       zerolog.Logger
	transitions  *prometheus.CounterVec
	now          func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		templates:    d.Templates,
		appointments: d.Appointments,
		users:        d.Users,
		doctors:      d.Doctors,
		timeline:     d.Timeline,
		tx:           d.Tx,
		notifier:     d.Notifier,
		events:       d.Events,
		logger:       d.Logger,
		now:          time.Now,
	}
	if d.Registerer != nil {
		s.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment lifecycle changes, by resulting status.",
		}, []string{"status"})
		d.Registerer.MustRegister(s.transitions)
	}
	return s
}

func (s *Service) requireUser(ctx context.Context, id uuid.UUID, role auth.Role) (*identity.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != role {
		return nil, apperr.Validation("user %s is not a %s", id, role)
	}
	return u, nil
}

// -- Templates --

func (s *Service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error) {
	t, err := req.parse()
	if err != nil {
		return nil, err
	}
	if _, err := s.requireUser(ctx, t.DoctorID, auth.RoleDoctor); err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.templates.GetByID(ctx, id)
}

func weekdayIndex(w Weekday) int {
	for wd, tag := range weekdays {
		if tag == w {
			return (int(wd) + 6) % 7
		}
	}
	return 7
}

// ListTemplates returns the doctor's weekly slots Monday first.
func (s *Service) ListTemplates(ctx context.Context, doctorID uuid.UUID) ([]*Template, error) {
	items, err := s.templates.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Template{}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := weekdayIndex(items[i].Weekday), weekdayIndex(items[j].Weekday)
		if a != b {
			return a < b
		}
		return items[i].Time.Duration() < items[j].Time.Duration()
	})
	return items, nil
}

// RemoveTemplate reports whether the slot existed. Appointments already
// booked against it are kept.
func (s *Service) RemoveTemplate(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.templates.Delete(ctx, id)
}

// Availability computes the doctor's free slots between the calendar days
// of start and end, both inclusive.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (*Availability, error) {
	out := &Availability{DoctorID: doctorID, Slots: []time.Time{}}
	if startOfDay(start).After(startOfDay(end)) {
		return out, nil
	}
	templates, err := s.templates.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return out, nil
	}
	occupied, err := s.appointments.Occupied(ctx, doctorID, startOfDay(start), endOfDay(end))
	if err != nil {
		return nil, err
	}
	out.Slots = FreeSlots(templates, occupied, start, end)
	return out, nil
}

// -- Appointments --

// Book reserves a slot. Only an exact collision with another active
// appointment of the same doctor is rejected; the slot need not appear in
// the doctor's published availability.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	at, err := dateparam.ParseDateTime(req.DateTime, time.UTC)
	if err != nil {
		return nil, apperr.Validation("data_hora must use the YYYY-MM-DD HH:MM format")
	}
	at = at.UTC()
	if at.Before(s.now()) {
		return nil, apperr.Validation("data_hora must be in the future")
	}
	patient, err := s.requireUser(ctx, req.PatientID, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	doctor, err := s.requireUser(ctx, req.DoctorID, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		DateTime:  at,
		Status:    StatusScheduled,
		Reason:    req.Reason,
	}
	// The room link is copied; later profile edits do not follow.
	prof, err := s.doctors.GetDoctor(ctx, doctor.ID)
	switch {
	case err == nil:
		a.VirtualRoomLink = prof.VirtualRoomLink
	case !apperr.Is(err, apperr.CategoryNotFound):
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.appointments.Create(ctx, a); err != nil {
			return err
		}
		return s.timeline.Record(ctx, a.PatientID, timeline.EventAppointment, a.ID,
			fmt.Sprintf("Consulta agendada com médico ID %s", a.DoctorID))
	})
	if err != nil {
		return nil, err
	}

	s.afterChange(ctx, a, "appointment.booked")
	s.notifier.Notify(ctx, notification.AppointmentBooked(patient.Name, patient.Email, doctor.Name, a.DateTime, deref(a.VirtualRoomLink)))
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, EventConfirm, nil)
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, EventStart, nil)
}

// Complete finishes the appointment, appending notes when given.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notes *string) (*Appointment, error) {
	return s.transition(ctx, id, EventComplete, notes)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.transition(ctx, id, EventCancel, nil)
	if err != nil {
		return nil, err
	}
	patient, perr := s.users.Get(ctx, a.PatientID)
	doctor, derr := s.users.Get(ctx, a.DoctorID)
	if perr != nil || derr != nil {
		s.logger.Warn().Str("appointment_id", a.ID.String()).Msg("cancellation email skipped: participant lookup failed")
		return a, nil
	}
	s.notifier.Notify(ctx, notification.AppointmentCanceled(patient.Name, patient.Email, doctor.Name, a.DateTime))
	return a, nil
}

var eventNames = map[Event]string{
	EventConfirm:  "appointment.confirmed",
	EventStart:    "appointment.started",
	EventComplete: "appointment.completed",
	EventCancel:   "appointment.cancelled",
}

var eventLogs = map[Event]string{
	EventComplete: "Consulta finalizada",
	EventCancel:   "Consulta cancelada",
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, ev Event, notes *string) (*Appointment, error) {
	var a *Appointment
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = s.appointments.GetForUpdate(ctx, id); err != nil {
			return err
		}
		next, err := a.Status.Next(ev)
		if err != nil {
			return err
		}
		a.Status = next
		if notes != nil && *notes != "" {
			a.Notes = appendNotes(a.Notes, *notes)
		}
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
		if desc, ok := eventLogs[ev]; ok {
			return s.timeline.Record(ctx, a.PatientID, timeline.EventAppointment, a.ID, desc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, a, eventNames[ev])
	return a, nil
}

func appendNotes(existing *string, add string) *string {
	if existing == nil || *existing == "" {
		return &add
	}
	joined := *existing + "\n" + add
	return &joined
}

// afterChange publishes the lifecycle event. The change is committed; a
// publish failure is logged only.
func (s *Service) afterChange(ctx context.Context, a *Appointment, typ string) {
	if s.transitions != nil {
		s.transitions.WithLabelValues(string(a.Status)).Inc()
	}
	if s.events == nil {
		return
	}
	ev := LifecycleEvent{
		Type:          typ,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		DateTime:      a.DateTime,
		Status:        a.Status,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Emit(ctx, a.ID.String(), ev); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Str("event", typ).Msg("appointment event not published")
	}
}

// ListByPatient returns the patient's appointments, latest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, onlyFuture bool) ([]*Appointment, error) {
	items, err := s.appointments.ListByPatient(ctx, patientID, s.futureBound(onlyFuture))
	return nonNil(items), err
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, onlyFuture bool) ([]*Appointment, error) {
	items, err := s.appointments.ListByDoctor(ctx, doctorID, s.futureBound(onlyFuture))
	return nonNil(items), err
}

func (s *Service) futureBound(onlyFuture bool) *time.Time {
	if !onlyFuture {
		return nil
	}
	now := s.now().UTC()
	return &now
}

// SendReminders emails every patient with an active appointment on day.
// It returns how many reminders were queued.
func (s *Service) SendReminders(ctx context.Context, day time.Time) (int, error) {
	items, err := s.appointments.ActiveBetween(ctx, startOfDay(day), endOfDay(day))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, a := range items {
		patient, err := s.users.Get(ctx, a.PatientID)
		if err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("reminder skipped")
			continue
		}
		doctor, err := s.users.Get(ctx, a.DoctorID)
		if err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("reminder skipped")
			continue
		}
		s.notifier.Notify(ctx, notification.AppointmentReminder(patient.Name, patient.Email, doctor.Name, a.DateTime, deref(a.VirtualRoomLink)))
		sent++
	}
	return sent, nil
}

func nonNil(items []*Appointment) []*Appointment {
	if items == nil {
		return []*Appointment{}
	}
	return items
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
