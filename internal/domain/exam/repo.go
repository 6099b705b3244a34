package exam

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateCode is returned by RequestRepository.Create when the
// generated code is already taken.
var ErrDuplicateCode = errors.New("exam request code already in use")

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	GetByCode(ctx context.Context, code string) (*Request, error)
	// The ForUpdate variants lock the row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)
	GetByCodeForUpdate(ctx context.Context, code string) (*Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// List returns matching requests, latest first.
	List(ctx context.Context, f RequestFilter) ([]*Request, error)
}

type ResultRepository interface {
	Create(ctx context.Context, r *Result) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*Result, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ResultDetail, error)
	// Details resolves ids in one query; unknown ids are simply absent.
	Details(ctx context.Context, ids []uuid.UUID) ([]*ResultDetail, error)
	// WorkQueue lists results of the doctor's requests that no finalized
	// or sent report covers yet, oldest first.
	WorkQueue(ctx context.Context, doctorID uuid.UUID) ([]*ResultDetail, error)
}
