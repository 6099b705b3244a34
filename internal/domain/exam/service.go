package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/domain/identity"
	"github.com/PTAIM/backend/internal/domain/timeline"
	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/db"
	"github.com/PTAIM/backend/internal/platform/notification"
)

// maxCodeAttempts bounds regeneration after code collisions.
const maxCodeAttempts = 5

type Deps struct {
	Requests RequestRepository
	Results  ResultRepository
	Users    identity.Directory
	Timeline timeline.Recorder
	Tx       db.Transactor
	Notifier notification.Notifier
	Logger   zerolog.Logger
}

type Service struct {
	requests RequestRepository
	results  ResultRepository
	users    identity.Directory
	timeline timeline.Recorder
	tx       db.Transactor
	notifier notification.Notifier
	logger   zerolog.Logger
	newCode  func() (string, error)
	now      func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		requests: d.Requests,
		results:  d.Results,
		users:    d.Users,
		timeline: d.Timeline,
		tx:       d.Tx,
		notifier: d.Notifier,
		logger:   d.Logger,
		newCode:  NewCode,
		now:      time.Now,
	}
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

// -- Requests --

// CreateRequest orders an exam under a freshly generated code.
func (s *Service) CreateRequest(ctx context.Context, req CreateRequest) (*Request, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	patient, err := s.requireUser(ctx, req.PatientID, auth.RolePatient)
	if err != nil {
		return nil, err
	}
	doctor, err := s.requireUser(ctx, req.DoctorID, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}

	var q *Request
	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		q = &Request{
			Code:          code,
			PatientID:     patient.ID,
			DoctorID:      doctor.ID,
			AppointmentID: req.AppointmentID,
			ExamName:      req.ExamName,
			Hypothesis:    req.Hypothesis,
			Preparation:   req.Preparation,
			Status:        StatusAwaitingResult,
		}
		// A unique violation aborts the transaction, so each attempt runs in
		// its own.
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			if err := s.requests.Create(ctx, q); err != nil {
				return err
			}
			return s.timeline.Record(ctx, q.PatientID, timeline.EventExamRequest, q.ID,
				fmt.Sprintf("Solicitação de exame: %s", q.ExamName))
		})
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		if attempt == maxCodeAttempts {
			return nil, fmt.Errorf("exam code still colliding after %d attempts: %w", attempt, err)
		}
		s.logger.Warn().Str("code", code).Int("attempt", attempt).Msg("exam code collision, regenerating")
	}

	s.notifier.Notify(ctx, notification.ExamRequested(patient.Name, patient.Email, q.ExamName, doctor.Name, q.Code, q.Preparation))
	return q, nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) GetRequestByCode(ctx context.Context, code string) (*Request, error) {
	return s.requests.GetByCode(ctx, normalizeCode(code))
}

func (s *Service) ListRequests(ctx context.Context, f RequestFilter) ([]*Request, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", *f.Status)
	}
	items, err := s.requests.List(ctx, f)
	if items == nil {
		items = []*Request{}
	}
	return items, err
}

// UpdateStatus applies a manual status change through the transition table.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req UpdateStatusRequest) (*Request, error) {
	ev, err := req.event()
	if err != nil {
		return nil, err
	}
	var q *Request
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if q, err = s.requests.GetForUpdate(ctx, id); err != nil {
			return err
		}
		next, err := q.Status.Next(ev)
		if err != nil {
			return err
		}
		q.Status = next
		return s.requests.UpdateStatus(ctx, q.ID, q.Status)
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// -- Results --

// SubmitResult attaches a result to the request identified by code.
func (s *Service) SubmitResult(ctx context.Context, req SubmitResultRequest) (*ResultDetail, error) {
	res, err := req.parse(s.now())
	if err != nil {
		return nil, err
	}

	var q *Request
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if q, err = s.requests.GetByCodeForUpdate(ctx, req.Code); err != nil {
			return err
		}
		next, err := q.Status.Next(EventSubmitResult)
		if err != nil {
			return err
		}
		res.RequestID = q.ID
		if err := s.results.Create(ctx, res); err != nil {
			return err
		}
		if next != q.Status {
			q.Status = next
			if err := s.requests.UpdateStatus(ctx, q.ID, q.Status); err != nil {
				return err
			}
		}
		return s.timeline.Record(ctx, q.PatientID, timeline.EventExam, res.ID,
			fmt.Sprintf("Resultado de exame enviado: %s", q.ExamName))
	})
	if err != nil {
		return nil, err
	}

	s.notifyResult(ctx, q, res)
	return &ResultDetail{Result: *res, Code: q.Code, ExamName: q.ExamName, PatientID: q.PatientID, DoctorID: q.DoctorID}, nil
}

func (s *Service) notifyResult(ctx context.Context, q *Request, res *Result) {
	patient, err := s.users.Get(ctx, q.PatientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", q.ID.String()).Msg("result email to patient skipped")
	} else {
		s.notifier.Notify(ctx, notification.ExamResultReady(patient.Name, patient.Email, q.ExamName, q.Code))
	}
	doctor, err := s.users.Get(ctx, q.DoctorID)
	if err != nil {
		s.logger.Warn().Err(err).Str("request_id", q.ID.String()).Msg("result email to doctor skipped")
		return
	}
	patientName := ""
	if patient != nil {
		patientName = patient.Name
	}
	s.notifier.Notify(ctx, notification.ExamReadyForDoctor(doctor.Name, doctor.Email, patientName, q.ExamName, q.Code, res.PerformedAt))
}

func (s *Service) ResultsOfRequest(ctx context.Context, requestID uuid.UUID) ([]*Result, error) {
	items, err := s.results.ListByRequest(ctx, requestID)
	if items == nil {
		items = []*Result{}
	}
	return items, err
}

func (s *Service) ResultsOfPatient(ctx context.Context, patientID uuid.UUID) ([]*ResultDetail, error) {
	return nonNil(s.results.ListByPatient(ctx, patientID))
}

// ResultDetails resolves result ids with their request data. Unknown ids
// are left out.
func (s *Service) ResultDetails(ctx context.Context, ids []uuid.UUID) ([]*ResultDetail, error) {
	return nonNil(s.results.Details(ctx, ids))
}

// WorkQueue lists the results waiting for the doctor's report.
func (s *Service) WorkQueue(ctx context.Context, doctorID uuid.UUID) ([]*ResultDetail, error) {
	return nonNil(s.results.WorkQueue(ctx, doctorID))
}

func nonNil(items []*ResultDetail, err error) ([]*ResultDetail, error) {
	if items == nil {
		items = []*ResultDetail{}
	}
	return items, err
}
