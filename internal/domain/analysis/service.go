// Package analysis forwards medical images to the remote analysis worker.
package analysis

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/platform/apperr"
	"github.com/PTAIM/backend/internal/platform/messaging"
)

// Analyzer is satisfied by messaging.ImageAnalysisClient.
type Analyzer interface {
	Analyze(ctx context.Context, req messaging.ImageAnalysisRequest) (*messaging.ImageAnalysisResponse, error)
}

type Result struct {
	Analysis string `json:"analise"`
}

type Service struct {
	analyzer Analyzer
	logger   zerolog.Logger
	calls    *prometheus.CounterVec
}

func NewService(a Analyzer, logger zerolog.Logger, reg prometheus.Registerer) *Service {
	s := &Service{analyzer: a, logger: logger}
	if reg != nil {
		s.calls = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "image_analysis",
			Name:      "requests_total",
			Help:      "Image analysis calls, by outcome.",
		}, []string{"outcome"})
		reg.MustRegister(s.calls)
	}
	return s
}

// mimeOf trusts the declared type only when it names an image; anything
// else is sniffed from the content.
func mimeOf(declared string, data []byte) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return http.DetectContentType(data)
}

func (s *Service) Analyze(ctx context.Context, data []byte, declaredType string) (*Result, error) {
	if len(data) == 0 {
		return nil, apperr.Validation("O arquivo de imagem está vazio")
	}
	mime := mimeOf(declaredType, data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, apperr.Validation("Arquivo enviado não é uma imagem (%s)", mime)
	}

	resp, err := s.analyzer.Analyze(ctx, messaging.ImageAnalysisRequest{ImageBytes: data, MimeType: mime})
	switch {
	case errors.Is(err, messaging.ErrTimeout):
		s.observe("timeout")
		s.logger.Warn().Int("bytes", len(data)).Msg("image analysis timed out")
		return nil, apperr.UpstreamTimeout("O serviço de análise não respondeu a tempo")
	case err != nil:
		s.observe("error")
		return nil, apperr.Wrap(apperr.CategoryInternal, err, "falha na análise de imagem")
	}
	s.observe("ok")
	return &Result{Analysis: resp.AnalysisText}, nil
}

func (s *Service) observe(outcome string) {
	if s.calls != nil {
		s.calls.WithLabelValues(outcome).Inc()
	}
}
