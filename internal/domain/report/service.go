package report

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/domain/exam"
	"github.com/PTAIM/backend/internal/domain/identity"
	"github.com/PTAIM/backend/internal/domain/profile"
	"github.com/PTAIM/backend/internal/domain/timeline"
	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/db"
	"github.com/PTAIM/backend/internal/platform/notification"
)

// ResultSource resolves exam results with their request data.
type ResultSource interface {
	ResultDetails(ctx context.Context, ids []uuid.UUID) ([]*exam.ResultDetail, error)
}

type DoctorDirectory interface {
	GetDoctor(ctx context.Context, userID uuid.UUID) (*profile.Doctor, error)
}

type Deps struct {
	Reports  Repository
	Results  ResultSource
	Users    identity.Directory
	Doctors  DoctorDirectory
	Timeline timeline.Recorder
	Tx       db.Transactor
	Notifier notification.Notifier
	Logger   zerolog.Logger
}

type Service struct {
	reports  Repository
	results  ResultSource
	users    identity.Directory
	doctors  DoctorDirectory
	timeline timeline.Recorder
	tx       db.Transactor
	notifier notification.Notifier
	logger   zerolog.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		reports:  d.Reports,
		results:  d.Results,
		users:    d.Users,
		doctors:  d.Doctors,
		timeline: d.Timeline,
		tx:       d.Tx,
		notifier: d.Notifier,
		logger:   d.Logger,
	}
}

// Create drafts a report over results that all belong to req.PatientID.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Detail, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	doctor, err := s.users.Get(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if doctor.Role != auth.RoleDoctor {
		return nil, apperr.Validation("user %s is not a doctor", doctor.ID)
	}

	exams, err := s.results.ResultDetails(ctx, req.ResultIDs)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]*exam.ResultDetail, len(exams))
	for _, e := range exams {
		found[e.ID] = e
	}
	ordered := make([]*exam.ResultDetail, 0, len(req.ResultIDs))
	for _, id := range req.ResultIDs {
		e, ok := found[id]
		if !ok {
			return nil, apperr.NotFound("Resultado de exame não encontrado: %s", id)
		}
		if e.PatientID != req.PatientID {
			return nil, apperr.Validation("exam result %s belongs to another patient", id)
		}
		ordered = append(ordered, e)
	}

	rep := &Report{
		DoctorID:    doctor.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      StatusDraft,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.reports.Create(ctx, rep, req.ResultIDs)
	})
	if err != nil {
		return nil, err
	}
	patientID := req.PatientID
	return &Detail{Report: *rep, PatientID: &patientID, Exams: ordered}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, rep)
}

func (s *Service) detail(ctx context.Context, rep *Report) (*Detail, error) {
	ids, err := s.reports.ResultIDs(ctx, rep.ID)
	if err != nil {
		return nil, err
	}
	exams, err := s.results.ResultDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	if exams == nil {
		exams = []*exam.ResultDetail{}
	}
	d := &Detail{Report: *rep, Exams: exams}
	if len(exams) > 0 {
		pid := exams[0].PatientID
		d.PatientID = &pid
	}
	return d, nil
}

// Update edits a draft. Any other status fails with InvalidState.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Report, error) {
	var rep *Report
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if rep, err = s.reports.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if rep.Status != StatusDraft {
			return apperr.InvalidState("Apenas laudos em rascunho podem ser editados")
		}
		if err := req.apply(rep); err != nil {
			return err
		}
		return s.reports.Update(ctx, rep)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// Finalize closes the draft and logs it on the patient's record. When no
// associated result leads to a patient the report stays finalized, no
// entry is written and NotFound is returned.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID) (*Report, error) {
	var (
		rep   *Report
		first *exam.ResultDetail
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if rep, err = s.reports.GetForUpdate(ctx, id); err != nil {
			return err
		}
		next, err := rep.Status.Next(EventFinalize)
		if err != nil {
			return err
		}
		rep.Status = next
		if err := s.reports.Update(ctx, rep); err != nil {
			return err
		}

		ids, err := s.reports.ResultIDs(ctx, rep.ID)
		if err != nil {
			return err
		}
		exams, err := s.results.ResultDetails(ctx, ids)
		if err != nil {
			return err
		}
		if len(exams) == 0 {
			return nil
		}
		first = exams[0]
		return s.timeline.Record(ctx, first.PatientID, timeline.EventReport, rep.ID,
			fmt.Sprintf("Laudo médico finalizado: %s", first.ExamName))
	})
	if err != nil {
		return nil, err
	}
	if first == nil {
		s.logger.Warn().Str("report_id", rep.ID.String()).Msg("finalized report has no patient to log against")
		return nil, apperr.NotFound("Paciente do laudo não encontrado")
	}

	s.notifyReady(ctx, rep, first.PatientID)
	return rep, nil
}

func (s *Service) notifyReady(ctx context.Context, rep *Report, patientID uuid.UUID) {
	patient, err := s.users.Get(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("report_id", rep.ID.String()).Msg("report email skipped")
		return
	}
	doctorName, crm := "", ""
	if doctor, err := s.users.Get(ctx, rep.DoctorID); err == nil {
		doctorName = doctor.Name
	}
	if prof, err := s.doctors.GetDoctor(ctx, rep.DoctorID); err == nil {
		crm = prof.CRM
	}
	s.notifier.Notify(ctx, notification.ReportReady(patient.Name, patient.Email, rep.Title, doctorName, crm, rep.IssuedAt))
}

// Send marks a finalized report as delivered to the patient.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (*Report, error) {
	var rep *Report
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if rep, err = s.reports.GetForUpdate(ctx, id); err != nil {
			return err
		}
		next, err := rep.Status.Next(EventSend)
		if err != nil {
			return err
		}
		rep.Status = next
		return s.reports.Update(ctx, rep)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status *Status) ([]*Detail, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	items, err := s.reports.ListByDoctor(ctx, doctorID, status)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, items)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status *Status) ([]*Detail, error) {
	if err := checkStatus(status); err != nil {
		return nil, err
	}
	items, err := s.reports.ListByPatient(ctx, patientID, status)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, items)
}

func (s *Service) details(ctx context.Context, items []*Report) ([]*Detail, error) {
	out := make([]*Detail, 0, len(items))
	for _, rep := range items {
		d, err := s.detail(ctx, rep)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func checkStatus(status *Status) error {
	if status != nil && !status.Valid() {
		return apperr.Validation("unknown status %q", *status)
	}
	return nil
}

// visibleToPatient hides drafts from the patient.
func visibleToPatient(d *Detail) bool {
	return d.Status != StatusDraft
}
