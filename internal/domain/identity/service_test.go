package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/internal/platform/cache"
	"github.com/PTAIM/backend/internal/platform/notification"
)

// -- Mock Repository --

type mockUserRepo struct {
	users map[uuid.UUID]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Conflict("Email já cadastrado")
		}
		if existing.CPF == u.CPF {
			return apperr.Conflict("CPF já cadastrado")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.EmailRequest
}

func (n *recordingNotifier) Notify(_ context.Context, req notification.EmailRequest) {
	n.mu.Lock()
	n.sent = append(n.sent, req)
	n.mu.Unlock()
}

type testEnv struct {
	svc      *Service
	repo     *mockUserRepo
	issuer   *auth.JWTIssuer
	revoked  *auth.RevocationStore
	notifier *recordingNotifier
}

func newTestService() *testEnv {
	repo := newMockUserRepo()
	issuer := auth.NewJWTIssuer([]byte("identity-test-secret"), "telemed")
	revoked := auth.NewRevocationStore(cache.NewMemoryCache(time.Minute))
	n := &recordingNotifier{}
	svc := NewService(repo, auth.NewBcryptHasher(4), issuer, revoked, time.Hour, n)
	return &testEnv{svc: svc, repo: repo, issuer: issuer, revoked: revoked, notifier: n}
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Name:     "João Silva",
		Email:    "Joao@Email.com ",
		Password: "senha123",
		CPF:      "12345678900",
		Role:     auth.RolePatient,
	}
}

func TestRegister(t *testing.T) {
	env := newTestService()
	u, err := env.svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if u.Email != "joao@email.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "" || u.PasswordHash == "senha123" {
		t.Error("expected password to be hashed")
	}
	if len(env.notifier.sent) != 1 || env.notifier.sent[0].Kind != notification.KindUserRegistered {
		t.Errorf("expected one welcome email, got %+v", env.notifier.sent)
	}
}

func TestRegister_Validation(t *testing.T) {
	cases := map[string]func(r *RegisterRequest){
		"short name":     func(r *RegisterRequest) { r.Name = "Jo" },
		"bad email":      func(r *RegisterRequest) { r.Email = "not-an-email" },
		"short password": func(r *RegisterRequest) { r.Password = "12345" },
		"long password":  func(r *RegisterRequest) { r.Password = strings.Repeat("x", 73) },
		"short cpf":      func(r *RegisterRequest) { r.CPF = "123" },
		"non-digit cpf":  func(r *RegisterRequest) { r.CPF = "1234567890a" },
		"unknown role":   func(r *RegisterRequest) { r.Role = "nurse" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestService()
			req := validRegistration()
			mutate(&req)
			_, err := env.svc.Register(context.Background(), req)
			if !apperr.Is(err, apperr.CategoryValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if len(env.repo.users) != 0 {
				t.Error("expected no user persisted")
			}
		})
	}
}

func TestRegister_DuplicateEmailAndCPF(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	if _, err := env.svc.Register(ctx, validRegistration()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dupEmail := validRegistration()
	dupEmail.CPF = "99999999999"
	if _, err := env.svc.Register(ctx, dupEmail); !apperr.Is(err, apperr.CategoryConflict) {
		t.Errorf("expected conflict for duplicate email, got %v", err)
	}

	dupCPF := validRegistration()
	dupCPF.Email = "outro@email.com"
	if _, err := env.svc.Register(ctx, dupCPF); !apperr.Is(err, apperr.CategoryConflict) {
		t.Errorf("expected conflict for duplicate cpf, got %v", err)
	}
}

func TestRegister_PrivilegedRoleRejected(t *testing.T) {
	env := newTestService()
	req := validRegistration()
	req.Role = auth.RoleAdmin
	if _, err := env.svc.Register(context.Background(), req); !apperr.Is(err, apperr.CategoryForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}

	u, err := env.svc.Provision(context.Background(), req)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if u.Role != auth.RoleAdmin {
		t.Errorf("expected admin, got %s", u.Role)
	}
}

func TestLogin(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	u, _ := env.svc.Register(ctx, validRegistration())

	resp, err := env.svc.Login(ctx, LoginRequest{Email: "JOAO@email.com", Password: "senha123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TokenType != "bearer" {
		t.Errorf("expected bearer, got %s", resp.TokenType)
	}
	if resp.ExpiresIn < 3590 || resp.ExpiresIn > 3600 {
		t.Errorf("expected ~3600s expiry, got %d", resp.ExpiresIn)
	}

	p, err := env.issuer.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if p.UserID != u.ID || p.Role != auth.RolePatient || p.Email != u.Email {
		t.Errorf("unexpected principal %+v", p.Identity)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	env.svc.Register(ctx, validRegistration())

	for _, req := range []LoginRequest{
		{Email: "joao@email.com", Password: "wrong-password"},
		{Email: "ninguem@email.com", Password: "senha123"},
	} {
		_, err := env.svc.Login(ctx, req)
		if !apperr.Is(err, apperr.CategoryUnauthorized) {
			t.Errorf("%s: expected unauthorized, got %v", req.Email, err)
			continue
		}
		if !strings.Contains(err.Error(), invalidCredentials) {
			t.Errorf("expected %q message, got %q", invalidCredentials, err.Error())
		}
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestService()
	ctx := context.Background()
	env.svc.Register(ctx, validRegistration())
	resp, _ := env.svc.Login(ctx, LoginRequest{Email: "joao@email.com", Password: "senha123"})
	p, _ := env.issuer.Verify(resp.AccessToken)

	if err := env.svc.Logout(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	revoked, err := env.revoked.IsRevoked(ctx, p.TokenID)
	if err != nil || !revoked {
		t.Errorf("expected token to be revoked, got %v %v", revoked, err)
	}
}

func TestGet_NotFound(t *testing.T) {
	env := newTestService()
	if _, err := env.svc.Get(context.Background(), uuid.New()); !apperr.Is(err, apperr.CategoryNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
