package identity

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"nome"`
	Email        string    `json:"email"`
	Phone        *string   `json:"telefone,omitempty"`
	CPF          string    `json:"cpf"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"tipo"`
	CreatedAt    time.Time `json:"criado_em"`
}

func (u *User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name}
}

type RegisterRequest struct {
	Name     string    `json:"nome"`
	Email    string    `json:"email"`
	Password string    `json:"senha"`
	CPF      string    `json:"cpf"`
	Role     auth.Role `json:"tipo"`
	Phone    *string   `json:"telefone"`
}

const (
	minPasswordLen = 6
	maxPasswordLen = 72
	cpfLen         = 11
)

func (r *RegisterRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = normalizeEmail(r.Email)
	r.CPF = strings.TrimSpace(r.CPF)
	if r.Phone != nil {
		p := strings.TrimSpace(*r.Phone)
		if p == "" {
			r.Phone = nil
		} else {
			r.Phone = &p
		}
	}
}

func (r *RegisterRequest) Validate() error {
	if utf8.RuneCountInString(r.Name) < 3 {
		return apperr.Validation("nome must have at least 3 characters")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || !strings.Contains(r.Email, "@") {
		return apperr.Validation("email is invalid")
	}
	if len(r.Password) < minPasswordLen || len(r.Password) > maxPasswordLen {
		return apperr.Validation("senha must have between %d and %d characters", minPasswordLen, maxPasswordLen)
	}
	if len(r.CPF) != cpfLen || strings.Trim(r.CPF, "0123456789") != "" {
		return apperr.Validation("cpf must have exactly %d digits", cpfLen)
	}
	if !r.Role.Valid() {
		return apperr.Validation("tipo must be one of patient, doctor, staff, admin")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"usuario"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
