package exam

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
	doctorOnly := auth.RequireRole(auth.RoleDoctor)
	uploaders := auth.RequireRole(auth.RoleDoctor, auth.RoleStaff)

	api.GET("/solicitacoes", h.ListRequests)
	api.GET("/solicitacoes/:id", h.GetRequest)
	api.GET("/solicitacoes/:id/resultados", h.ListRequestResults)
	api.GET("/solicitacoes/codigo/:codigo", h.GetRequestByCode)
	api.GET("/exames", h.ListPatientResults)

	api.POST("/solicitacoes", h.CreateRequest, doctorOnly)
	api.PUT("/solicitacoes/:id", h.UpdateStatus, doctorOnly)
	api.GET("/exames/fila", h.WorkQueue, doctorOnly)

	api.POST("/resultados", h.SubmitResult, uploaders)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// queryID parses an optional uuid query parameter.
func queryID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// canRead lets patients see only their own requests. Clinicians and staff
// see every request.
func canRead(p *auth.Principal, q *Request) bool {
	return p.Role != auth.RolePatient || p.UserID == q.PatientID
}

func (h *Handler) CreateRequest(c echo.Context) error {
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
	q, err := h.svc.CreateRequest(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) ListRequests(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var f RequestFilter
	if f.PatientID, err = queryID(c, "paciente_id"); err != nil {
		return err
	}
	if s := c.QueryParam("status"); s != "" {
		st := Status(s)
		f.Status = &st
	}

	switch {
	case p.Role == auth.RolePatient:
		if f.PatientID != nil && *f.PatientID != p.UserID {
			return echo.NewHTTPError(http.StatusForbidden, "patients can only list their own requests")
		}
		f.PatientID = &p.UserID
	case p.Role == auth.RoleDoctor && f.PatientID == nil:
		f.DoctorID = &p.UserID
	case p.Role.Privileged():
		if f.DoctorID, err = queryID(c, "medico_id"); err != nil {
			return err
		}
	}

	items, err := h.svc.ListRequests(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) readable(c echo.Context, q *Request) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	if !canRead(p, q) {
		return echo.NewHTTPError(http.StatusForbidden, "not your exam request")
	}
	return nil
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	q, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if err := h.readable(c, q); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) GetRequestByCode(c echo.Context) error {
	q, err := h.svc.GetRequestByCode(c.Request().Context(), c.Param("codigo"))
	if err != nil {
		return err
	}
	if err := h.readable(c, q); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) ListRequestResults(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	q, err := h.svc.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if err := h.readable(c, q); err != nil {
		return err
	}
	items, err := h.svc.ResultsOfRequest(ctx, q.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	q, err := h.svc.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CanActFor(p, q.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the requesting doctor can change this request")
	}
	updated, err := h.svc.UpdateStatus(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) SubmitResult(c echo.Context) error {
	var req SubmitResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.SubmitResult(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListPatientResults(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	patientID, err := queryID(c, "paciente_id")
	if err != nil {
		return err
	}
	if p.Role == auth.RolePatient {
		if patientID != nil && *patientID != p.UserID {
			return echo.NewHTTPError(http.StatusForbidden, "patients can only list their own exams")
		}
		patientID = &p.UserID
	}
	if patientID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "paciente_id is required")
	}
	items, err := h.svc.ResultsOfPatient(c.Request().Context(), *patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) WorkQueue(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	requested, err := queryID(c, "medico_id")
	if err != nil {
		return err
	}
	var doctorID uuid.UUID
	if requested != nil {
		doctorID = *requested
	}
	if doctorID, err = auth.ResolveSubject(p, doctorID); err != nil {
		return err
	}
	items, err := h.svc.WorkQueue(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
