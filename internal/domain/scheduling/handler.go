package scheduling

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/PTAIM/backend/internal/platform/auth"
	"github.com/PTAIM/backend/pkg/dateparam"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctors := auth.RequireRole(auth.RoleDoctor, auth.RoleStaff)
	booking := auth.RequireRole(auth.RolePatient, auth.RoleStaff)

	api.GET("/agendas/medico/:id", h.ListTemplates)
	api.GET("/agendas/medico/:id/disponiveis", h.Availability)
	api.GET("/consultas/:id", h.GetAppointment)
	api.GET("/consultas/paciente/:id", h.ListByPatient)
	api.POST("/consultas/:id/cancelar", h.Cancel)

	api.POST("/agendas", h.CreateTemplate, doctors)
	api.DELETE("/agendas/:id", h.DeleteTemplate, doctors)
	api.GET("/consultas/medico/:id", h.ListByDoctor, doctors)
	api.POST("/consultas/:id/confirmar", h.Confirm, doctors)
	api.POST("/consultas/:id/iniciar", h.Start, doctors)
	api.POST("/consultas/:id/finalizar", h.Complete, doctors)

	api.POST("/consultas", h.Book, booking)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Templates --

func (h *Handler) CreateTemplate(c echo.Context) error {
	var req CreateTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if req.DoctorID, err = auth.ResolveSubject(p, req.DoctorID); err != nil {
		return err
	}
	t, err := h.svc.CreateTemplate(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTemplates(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListTemplates(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	t, err := h.svc.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanActFor(p, t.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "cannot change another doctor's schedule")
	}
	removed, err := h.svc.RemoveTemplate(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return echo.NewHTTPError(http.StatusNotFound, "Horário não encontrado")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Availability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if c.QueryParam("data_inicio") == "" || c.QueryParam("data_fim") == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "data_inicio and data_fim are required")
	}
	start, err := dateparam.ParseDate(c.QueryParam("data_inicio"), time.UTC)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	end, err := dateparam.ParseDate(c.QueryParam("data_fim"), time.UTC)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Availability(c.Request().Context(), id, start, end)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// -- Appointments --

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if req.PatientID, err = auth.ResolveSubject(p, req.PatientID); err != nil {
		return err
	}
	if req.DoctorID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "medico_id is required")
	}
	a, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// participant loads the appointment and checks the caller takes part in
// it. Staff and admins take part in every appointment.
func (h *Handler) participant(c echo.Context) (*Appointment, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return nil, err
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	if !p.Role.Privileged() && p.UserID != a.PatientID && p.UserID != a.DoctorID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not a participant of this appointment")
	}
	return a, nil
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.participant(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func onlyFuture(c echo.Context) (bool, error) {
	raw := c.QueryParam("apenas_futuras")
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, "apenas_futuras must be a boolean")
	}
	return v, nil
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if p.Role == auth.RolePatient && p.UserID != id {
		return echo.NewHTTPError(http.StatusForbidden, "patients can only list their own appointments")
	}
	future, err := onlyFuture(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListByPatient(c.Request().Context(), id, future)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if !auth.CanActFor(p, id) {
		return echo.NewHTTPError(http.StatusForbidden, "doctors can only list their own appointments")
	}
	future, err := onlyFuture(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListByDoctor(c.Request().Context(), id, future)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

type transitionFunc func(ctx context.Context, a *Appointment) (*Appointment, error)

// doctorTransition runs fn for the appointment's doctor or a privileged
// caller.
func (h *Handler) doctorTransition(c echo.Context, fn transitionFunc) error {
	a, err := h.participant(c)
	if err != nil {
		return err
	}
	p, _ := auth.MustPrincipal(c)
	if !auth.CanActFor(p, a.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the appointment's doctor can do this")
	}
	updated, err := fn(c.Request().Context(), a)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.doctorTransition(c, func(ctx context.Context, a *Appointment) (*Appointment, error) {
		return h.svc.Confirm(ctx, a.ID)
	})
}

func (h *Handler) Start(c echo.Context) error {
	return h.doctorTransition(c, func(ctx context.Context, a *Appointment) (*Appointment, error) {
		return h.svc.Start(ctx, a.ID)
	})
}

func (h *Handler) Complete(c echo.Context) error {
	var req CompleteRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	return h.doctorTransition(c, func(ctx context.Context, a *Appointment) (*Appointment, error) {
		return h.svc.Complete(ctx, a.ID, req.Notes)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	a, err := h.participant(c)
	if err != nil {
		return err
	}
	updated, err := h.svc.Cancel(c.Request().Context(), a.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}
