package profile

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/pkg/dateparam"
)

type Specialty struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"nome"`
}

// Doctor is the profile of a user with the doctor role, keyed by that
// user's id.
type Doctor struct {
	UserID              uuid.UUID   `json:"usuario_id"`
	Name                string      `json:"nome,omitempty"`
	CRM                 string      `json:"crm"`
	Biography           *string     `json:"biografia,omitempty"`
	ConsultationMinutes *float64    `json:"duracao_consulta,omitempty"`
	VirtualRoomLink     *string     `json:"link_sala_virtual,omitempty"`
	Specialties         []Specialty `json:"especialidades"`
	CreatedAt           time.Time   `json:"criado_em"`
	UpdatedAt           time.Time   `json:"atualizado_em"`
}

type Patient struct {
	UserID          uuid.UUID       `json:"usuario_id"`
	Name            string          `json:"nome,omitempty"`
	BirthDate       *dateparam.Date `json:"data_nascimento,omitempty"`
	Address         *string         `json:"endereco,omitempty"`
	HealthSummaryID *uuid.UUID      `json:"sumario_saude_id,omitempty"`
	CreatedAt       time.Time       `json:"criado_em"`
	UpdatedAt       time.Time       `json:"atualizado_em"`
}

// HealthSummary belongs to whichever patient links to it.
type HealthSummary struct {
	ID             uuid.UUID `json:"id"`
	DiseaseHistory *string   `json:"historico_doencas,omitempty"`
	Allergies      *string   `json:"alergias,omitempty"`
	Medications    *string   `json:"medicacoes,omitempty"`
	CreatedAt      time.Time `json:"criado_em"`
	UpdatedAt      time.Time `json:"atualizado_em"`
}

// -- Requests --

type CreateDoctorRequest struct {
	UserID              uuid.UUID `json:"usuario_id"`
	CRM                 string    `json:"crm"`
	Biography           *string   `json:"biografia"`
	ConsultationMinutes *float64  `json:"duracao_consulta"`
	VirtualRoomLink     *string   `json:"link_sala_virtual"`
}

func (r *CreateDoctorRequest) Validate() error {
	r.CRM = strings.TrimSpace(r.CRM)
	if r.CRM == "" {
		return apperr.Validation("crm is required")
	}
	return validateDoctorFields(r.ConsultationMinutes, r.VirtualRoomLink)
}

type UpdateDoctorRequest struct {
	Biography           *string  `json:"biografia"`
	ConsultationMinutes *float64 `json:"duracao_consulta"`
	VirtualRoomLink     *string  `json:"link_sala_virtual"`
}

func (r *UpdateDoctorRequest) Validate() error {
	return validateDoctorFields(r.ConsultationMinutes, r.VirtualRoomLink)
}

func (r *UpdateDoctorRequest) apply(d *Doctor) {
	if r.Biography != nil {
		d.Biography = r.Biography
	}
	if r.ConsultationMinutes != nil {
		d.ConsultationMinutes = r.ConsultationMinutes
	}
	if r.VirtualRoomLink != nil {
		d.VirtualRoomLink = r.VirtualRoomLink
	}
}

func validateDoctorFields(minutes *float64, link *string) error {
	if minutes != nil && *minutes <= 0 {
		return apperr.Validation("duracao_consulta must be positive")
	}
	if link != nil && *link != "" {
		u, err := url.ParseRequestURI(*link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return apperr.Validation("link_sala_virtual must be an http(s) URL")
		}
	}
	return nil
}

type AddSpecialtyRequest struct {
	SpecialtyID uuid.UUID `json:"especialidade_id"`
}

type CreateSpecialtyRequest struct {
	Name string `json:"nome"`
}

func (r *CreateSpecialtyRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if utf8.RuneCountInString(r.Name) < 3 {
		return apperr.Validation("nome must have at least 3 characters")
	}
	return nil
}

type CreatePatientRequest struct {
	UserID    uuid.UUID       `json:"usuario_id"`
	BirthDate *dateparam.Date `json:"data_nascimento"`
	Address   *string         `json:"endereco"`
}

func (r *CreatePatientRequest) Validate(now time.Time) error {
	return validateBirthDate(r.BirthDate, now)
}

type UpdatePatientRequest struct {
	BirthDate *dateparam.Date `json:"data_nascimento"`
	Address   *string         `json:"endereco"`
}

func (r *UpdatePatientRequest) Validate(now time.Time) error {
	return validateBirthDate(r.BirthDate, now)
}

func (r *UpdatePatientRequest) apply(p *Patient) {
	if r.BirthDate != nil {
		p.BirthDate = r.BirthDate
	}
	if r.Address != nil {
		p.Address = r.Address
	}
}

func validateBirthDate(d *dateparam.Date, now time.Time) error {
	if d != nil && d.After(now) {
		return apperr.Validation("data_nascimento cannot be in the future")
	}
	return nil
}

type SummaryRequest struct {
	DiseaseHistory *string `json:"historico_doencas"`
	Allergies      *string `json:"alergias"`
	Medications    *string `json:"medicacoes"`
}

func (r *SummaryRequest) apply(s *HealthSummary) {
	if r.DiseaseHistory != nil {
		s.DiseaseHistory = r.DiseaseHistory
	}
	if r.Allergies != nil {
		s.Allergies = r.Allergies
	}
	if r.Medications != nil {
		s.Medications = r.Medications
	}
}
