package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/notification"
)

const invalidCredentials = "Credenciais inválidas"

type Service struct {
	users       Repository
	hasher      auth.CredentialHasher
	tokens      auth.TokenIssuer
	revocations *auth.RevocationStore
	tokenTTL    time.Duration
	notifier    notification.Notifier
}

func NewService(users Repository, hasher auth.CredentialHasher, tokens auth.TokenIssuer,
	revocations *auth.RevocationStore, tokenTTL time.Duration, notifier notification.Notifier) *Service {
	return &Service{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		tokenTTL:    tokenTTL,
		notifier:    notifier,
	}
}

// Register creates a self-service account. Staff and admin accounts are
// provisioned from the command line.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if req.Role.Privileged() {
		return nil, apperr.Forbidden("%s accounts cannot self-register", req.Role)
	}
	return s.Provision(ctx, req)
}

// Provision creates an account of any role and sends the welcome email.
func (s *Service) Provision(ctx context.Context, req RegisterRequest) (*User, error) {
	req.normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		CPF:          req.CPF,
		PasswordHash: digest,
		Role:         req.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notification.Welcome(u.Name, u.Email))
	return u, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if apperr.Is(err, apperr.CategoryNotFound) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	token, exp, err := s.tokens.Issue(u.Identity(), s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(time.Until(exp).Round(time.Second).Seconds()),
		User:        u,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, p *auth.Principal) error {
	if s.revocations == nil || p.TokenID == "" {
		return nil
	}
	return s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt)
}
