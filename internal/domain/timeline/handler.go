package timeline

import (
	"net/http"
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
	g := api.Group("/prontuario", auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleStaff))
	g.GET("/:pacienteId", h.Query)
	g.GET("/:pacienteId/completo", h.Complete)
	g.GET("/:pacienteId/contagem", h.Counts)
}

// patientParam resolves the path patient id. Patients only see their own
// record.
func patientParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("pacienteId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return uuid.Nil, err
	}
	if p.Role == auth.RolePatient && p.UserID != id {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "patients can only view their own record")
	}
	return id, nil
}

func (h *Handler) Query(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	f := Filter{EventType: EventType(c.QueryParam("tipo"))}
	if f.From, err = dateparam.Bound(c.QueryParam("data_inicio"), false, time.UTC); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if f.To, err = dateparam.Bound(c.QueryParam("data_fim"), true, time.UTC); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := h.svc.Query(c.Request().Context(), id, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Counts(c echo.Context) error {
	id, err := patientParam(c)
	if err != nil {
		return err
	}
	counts, err := h.svc.Counts(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}
