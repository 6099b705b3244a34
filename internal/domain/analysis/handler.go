package analysis

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/auth"
)

const maxImageBytes = 20 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/analises", auth.RequireRole(auth.RoleDoctor))
	g.POST("/imagem", h.AnalyzeImage)
}

func (h *Handler) AnalyzeImage(c echo.Context) error {
	fh, err := c.FormFile("imagem")
	if err != nil {
		return apperr.Validation("campo multipart 'imagem' é obrigatório")
	}
	if fh.Size > maxImageBytes {
		return apperr.Validation("imagem excede %d MB", maxImageBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.Validation("não foi possível ler a imagem")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		return apperr.Validation("não foi possível ler a imagem")
	}
	res, err := h.svc.Analyze(c.Request().Context(), data, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
