package profile

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctors := auth.RequireRole(auth.RoleDoctor, auth.RoleStaff)
	staff := auth.RequireRole(auth.RoleStaff)
	patients := auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff)

	api.GET("/medicos", h.ListDoctors)
	api.GET("/medicos/:id", h.GetDoctor)
	api.GET("/medicos/especialidade/:id", h.DoctorsBySpecialty)
	api.GET("/especialidades", h.ListSpecialties)

	api.POST("/medicos/perfil", h.CreateDoctor, doctors)
	api.PUT("/medicos/perfil/:id", h.UpdateDoctor, doctors)
	api.POST("/medicos/:id/especialidades", h.AddSpecialty, doctors)
	api.DELETE("/medicos/:id/especialidades/:especialidadeId", h.RemoveSpecialty, doctors)

	api.POST("/especialidades", h.CreateSpecialty, staff)

	api.POST("/pacientes/perfil", h.CreatePatient, patients)
	api.GET("/pacientes/:id", h.GetPatient, patients)
	api.PUT("/pacientes/perfil/:id", h.UpdatePatient, patients)
	api.POST("/pacientes/:id/sumario", h.CreateSummary, patients)
	api.GET("/pacientes/:id/sumario", h.GetSummary, patients)
	api.PUT("/sumarios/:id", h.UpdateSummary, patients)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// ownRecord resolves the :id path param and checks the caller may modify
// that user's profile.
func ownRecord(c echo.Context) (uuid.UUID, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return uuid.Nil, err
	}
	if !auth.CanActFor(p, id) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "cannot modify another user's profile")
	}
	return id, nil
}

// patientRecord resolves the :id path param. Patients only reach their
// own record; clinicians reach any.
func patientRecord(c echo.Context) (uuid.UUID, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return uuid.Nil, err
	}
	if p.Role == auth.RolePatient && p.UserID != id {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "patients can only access their own record")
	}
	return id, nil
}

// -- Doctors --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req CreateDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if req.UserID, err = auth.ResolveSubject(p, req.UserID); err != nil {
		return err
	}
	d, err := h.svc.CreateDoctor(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := ownRecord(c)
	if err != nil {
		return err
	}
	var req UpdateDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) AddSpecialty(c echo.Context) error {
	id, err := ownRecord(c)
	if err != nil {
		return err
	}
	var req AddSpecialtyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SpecialtyID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "especialidade_id is required")
	}
	d, err := h.svc.AddSpecialty(c.Request().Context(), id, req.SpecialtyID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) RemoveSpecialty(c echo.Context) error {
	id, err := ownRecord(c)
	if err != nil {
		return err
	}
	specID, err := parseID(c, "especialidadeId")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveSpecialty(c.Request().Context(), id, specID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DoctorsBySpecialty(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.DoctorsBySpecialty(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// -- Specialties --

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var req CreateSpecialtyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sp, err := h.svc.CreateSpecialty(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sp)
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	items, err := h.svc.ListSpecialties(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// -- Patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreatePatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if p.Role == auth.RoleDoctor {
		return echo.NewHTTPError(http.StatusForbidden, "doctors cannot create patient profiles")
	}
	if req.UserID, err = auth.ResolveSubject(p, req.UserID); err != nil {
		return err
	}
	pat, err := h.svc.CreatePatient(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pat)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := patientRecord(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := ownRecord(c)
	if err != nil {
		return err
	}
	var req UpdatePatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.UpdatePatient(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateSummary(c echo.Context) error {
	id, err := patientRecord(c)
	if err != nil {
		return err
	}
	var req SummaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sum, err := h.svc.CreateSummary(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sum)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := patientRecord(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.GetPatientSummary(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) UpdateSummary(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if p.Role == auth.RolePatient {
		owner, err := h.svc.SummaryOwner(ctx, id)
		if err != nil {
			return err
		}
		if owner != p.UserID {
			return echo.NewHTTPError(http.StatusForbidden, "patients can only access their own record")
		}
	}
	var req SummaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sum, err := h.svc.UpdateSummary(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}
