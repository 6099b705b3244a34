package report

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/PTAIM/backend/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	author := auth.RequireRole(auth.RoleDoctor)

	api.GET("/laudos", h.List)
	api.GET("/laudos/:id", h.Get)

	api.POST("/laudos", h.Create, author)
	api.PUT("/laudos/:id", h.Update, author)
	api.POST("/laudos/:id/finalizar", h.Finalize, author)
	api.POST("/laudos/:id/enviar", h.Send, author)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func queryID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
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
	d, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) List(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	patientID, err := queryID(c, "paciente_id")
	if err != nil {
		return err
	}
	doctorID, err := queryID(c, "medico_id")
	if err != nil {
		return err
	}
	var status *Status
	if s := c.QueryParam("status"); s != "" {
		st := Status(s)
		status = &st
	}
	ctx := c.Request().Context()

	var items []*Detail
	switch {
	case p.Role == auth.RolePatient:
		if patientID != uuid.Nil && patientID != p.UserID {
			return echo.NewHTTPError(http.StatusForbidden, "patients can only list their own reports")
		}
		all, err := h.svc.ListByPatient(ctx, p.UserID, status)
		if err != nil {
			return err
		}
		items = make([]*Detail, 0, len(all))
		for _, d := range all {
			if visibleToPatient(d) {
				items = append(items, d)
			}
		}
	case patientID != uuid.Nil:
		if items, err = h.svc.ListByPatient(ctx, patientID, status); err != nil {
			return err
		}
	default:
		if p.Role == auth.RoleDoctor {
			doctorID = p.UserID
		}
		if doctorID == uuid.Nil {
			return echo.NewHTTPError(http.StatusBadRequest, "paciente_id or medico_id is required")
		}
		if items, err = h.svc.ListByDoctor(ctx, doctorID, status); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if p.Role == auth.RolePatient {
		if d.PatientID == nil || *d.PatientID != p.UserID {
			return echo.NewHTTPError(http.StatusForbidden, "not your report")
		}
		if !visibleToPatient(d) {
			return echo.NewHTTPError(http.StatusNotFound, "Laudo não encontrado")
		}
	}
	return c.JSON(http.StatusOK, d)
}

// authored runs fn when the caller wrote the report or is privileged.
func (h *Handler) authored(c echo.Context, fn func(ctx context.Context, id uuid.UUID) (*Report, error)) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	d, err := h.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanActFor(p, d.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the authoring doctor can change this report")
	}
	rep, err := fn(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.authored(c, func(ctx context.Context, id uuid.UUID) (*Report, error) {
		return h.svc.Update(ctx, id, req)
	})
}

func (h *Handler) Finalize(c echo.Context) error {
	return h.authored(c, h.svc.Finalize)
}

func (h *Handler) Send(c echo.Context) error {
	return h.authored(c, h.svc.Send)
}
