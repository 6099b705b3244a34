package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler exposes the dispatch history to operators.
type Handler struct {
	dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// RegisterRoutes mounts the dispatch history under /notificacoes. Callers
// pass the role check since this package does not know the service's roles.
func (h *Handler) RegisterRoutes(api *echo.Group, m ...echo.MiddlewareFunc) {
	g := api.Group("/notificacoes", m...)
	g.GET("", h.List)
	g.GET("/tipos", h.ListKinds)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.POST("/:id/reenviar", h.Retry)
}

func (h *Handler) List(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = n
	}
	status := Status(c.QueryParam("status"))
	if status != "" && status != StatusQueued && status != StatusFailed {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be queued or failed")
	}
	return c.JSON(http.StatusOK, h.dispatcher.Recent(status, limit))
}

func (h *Handler) ListKinds(c echo.Context) error {
	return c.JSON(http.StatusOK, Kinds())
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dispatcher.Stats())
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.dispatcher.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Retry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.dispatcher.Retry(c.Request().Context(), id)
	switch {
	case errors.Is(err, ErrDispatchNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case d == nil && err != nil:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, "email queue unavailable: "+err.Error())
	}
	return c.JSON(http.StatusOK, d)
}
