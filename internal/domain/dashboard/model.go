package dashboard

import (
	"time"

	"github.com/PTAIM/backend/internal/platform/apperr"
)

type Period string

const (
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
	Period1y  Period = "1y"
	PeriodAll Period = "all"
)

var periodDays = map[Period]int{
	Period7d:  7,
	Period30d: 30,
	Period90d: 90,
	Period1y:  365,
}

// ParsePeriod defaults to 30d.
func ParsePeriod(raw string) (Period, error) {
	if raw == "" {
		return Period30d, nil
	}
	p := Period(raw)
	if _, ok := periodDays[p]; ok || p == PeriodAll {
		return p, nil
	}
	return "", apperr.Validation("periodo inválido %q: use 7d, 30d, 90d, 1y ou all", raw)
}

// Since is the lower bound of the period, nil for "all".
func (p Period) Since(now time.Time) *time.Time {
	days, ok := periodDays[p]
	if !ok {
		return nil
	}
	t := now.AddDate(0, 0, -days)
	return &t
}

type MonthCount struct {
	Month string `json:"mes"`
	Total int    `json:"total"`
}

// Summary holds the period totals, served under "resumo".
type Summary struct {
	TotalRequests   int `json:"total_solicitacoes"`
	ResultsReceived int `json:"exames_recebidos"`
	ReportsIssued   int `json:"laudos_emitidos"`
	TotalPatients   int `json:"total_pacientes"`
}

type Stats struct {
	Period           Period       `json:"periodo"`
	Summary          Summary      `json:"resumo"`
	RequestsPerMonth []MonthCount `json:"solicitacoes_por_mes"`
	ReportsPerMonth  []MonthCount `json:"laudos_por_mes"`
}
