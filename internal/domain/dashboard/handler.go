package dashboard

import (
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
	g := api.Group("/dashboard", auth.RequireRole(auth.RoleDoctor))
	g.GET("/stats", h.Stats)
}

// Stats serves the caller's statistics. Admins pick a doctor with medico_id.
func (h *Handler) Stats(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var requested uuid.UUID
	if raw := c.QueryParam("medico_id"); raw != "" {
		if requested, err = uuid.Parse(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid medico_id")
		}
	}
	doctorID, err := auth.ResolveSubject(p, requested)
	if err != nil {
		return err
	}
	period, err := ParsePeriod(c.QueryParam("periodo"))
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(), doctorID, period)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
