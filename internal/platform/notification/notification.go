// Package notification builds transactional email requests and hands them to
// the email queue. Delivery is done by a separate worker; this package only
// records whether the broker accepted each request.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/PTAIM/backend/internal/platform/messaging"
)

type Kind string

const (
	KindUserRegistered      Kind = "cadastro_usuario"
	KindPatientRegistered   Kind = "cadastro_paciente"
	KindAppointmentBooked   Kind = "confirmacao_consulta"
	KindExamRequested       Kind = "notificacao_solicitacao_exame"
	KindExamResultReady     Kind = "resultado_exame_disponivel"
	KindExamReadyForDoctor  Kind = "notificacao_exame_disponivel"
	KindReportReady         Kind = "laudo_disponivel"
	KindAppointmentReminder Kind = "lembrete_consulta"
	KindAppointmentCanceled Kind = "consulta_cancelada"
)

// defaultSubjects doubles as the set of kinds the email worker understands.
var defaultSubjects = map[Kind]string{
	KindUserRegistered:      "Bem-vindo ao Sistema de Telemedicina!",
	KindPatientRegistered:   "Bem-vindo ao Sistema de Telemedicina!",
	KindAppointmentBooked:   "Confirmação de Consulta",
	KindExamRequested:       "Notificação de Solicitação de Exame",
	KindExamResultReady:     "Seu Resultado de Exame Está Disponível",
	KindExamReadyForDoctor:  "Seu Exame Está Disponível",
	KindReportReady:         "Seu Laudo de Exame Está Disponível",
	KindAppointmentReminder: "Lembrete de Consulta",
	KindAppointmentCanceled: "Consulta Cancelada",
}

func (k Kind) Valid() bool {
	_, ok := defaultSubjects[k]
	return ok
}

// EmailRequest is the queue message. Field names on the wire are fixed by
// the email worker.
type EmailRequest struct {
	Kind    Kind           `json:"tipo"`
	To      string         `json:"destinatario"`
	ToName  string         `json:"nome_destinatario"`
	Data    map[string]any `json:"dados_personalizados"`
	Subject *string        `json:"assunto_personalizado,omitempty"`
}

type Status string

const (
	StatusQueued Status = "queued"
	StatusFailed Status = "failed"
)

// Dispatch records one attempt to enqueue an EmailRequest.
type Dispatch struct {
	ID        uuid.UUID    `json:"id"`
	Request   EmailRequest `json:"request"`
	Status    Status       `json:"status"`
	Attempts  int          `json:"attempts"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	QueuedAt  *time.Time   `json:"queued_at,omitempty"`
}

// Notifier is the side of Dispatcher domain services depend on.
type Notifier interface {
	Notify(ctx context.Context, req EmailRequest)
}

var ErrDispatchNotFound = errors.New("dispatch not found")

// Dispatcher publishes email requests and keeps the most recent dispatches
// in memory for inspection and retry.
type Dispatcher struct {
	publisher messaging.Publisher
	queue     string
	logger    zerolog.Logger
	published *prometheus.CounterVec

	mu       sync.RWMutex
	history  map[uuid.UUID]*Dispatch
	order    []uuid.UUID
	capacity int
}

type Option func(*Dispatcher)

func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) {
		d.published = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "email",
			Name:      "requests_total",
			Help:      "Email requests handed to the queue, by kind and outcome.",
		}, []string{"kind", "status"})
		reg.MustRegister(d.published)
	}
}

// WithCapacity bounds the dispatch history (default 1000).
func WithCapacity(n int) Option {
	return func(d *Dispatcher) { d.capacity = n }
}

func NewDispatcher(pub messaging.Publisher, queue string, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		publisher: pub,
		queue:     queue,
		logger:    logger,
		history:   make(map[uuid.UUID]*Dispatch),
		capacity:  1000,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Send validates req, fills the default subject and publishes it. The
// returned Dispatch carries the outcome even when err is non-nil.
func (d *Dispatcher) Send(ctx context.Context, req EmailRequest) (*Dispatch, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unknown email kind %q", req.Kind)
	}
	if req.To == "" {
		return nil, fmt.Errorf("email recipient is required")
	}
	if req.Subject == nil {
		s := defaultSubjects[req.Kind]
		req.Subject = &s
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}

	disp := &Dispatch{ID: uuid.New(), Request: req, CreatedAt: time.Now().UTC()}
	err := d.publish(ctx, disp)
	d.remember(disp)
	return disp, err
}

// Notify is Send for callers that only need failures logged: a state change
// that already committed must not fail because its email could not be queued.
func (d *Dispatcher) Notify(ctx context.Context, req EmailRequest) {
	if _, err := d.Send(ctx, req); err != nil {
		d.logger.Error().Err(err).
			Str("kind", string(req.Kind)).
			Str("recipient", req.To).
			Msg("email request not queued")
	}
}

func (d *Dispatcher) publish(ctx context.Context, disp *Dispatch) error {
	body, err := json.Marshal(disp.Request)
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	err = d.publisher.Publish(ctx, d.queue, body)

	d.mu.Lock()
	disp.Attempts++
	if err != nil {
		disp.Status = StatusFailed
		disp.Error = err.Error()
	} else {
		now := time.Now().UTC()
		disp.Status = StatusQueued
		disp.Error = ""
		disp.QueuedAt = &now
	}
	d.mu.Unlock()

	if d.published != nil {
		d.published.WithLabelValues(string(disp.Request.Kind), string(disp.Status)).Inc()
	}
	return err
}

func (d *Dispatcher) remember(disp *Dispatch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history[disp.ID] = disp
	d.order = append(d.order, disp.ID)
	for len(d.order) > d.capacity {
		delete(d.history, d.order[0])
		d.order = d.order[1:]
	}
}

func (d *Dispatcher) Get(id uuid.UUID) (*Dispatch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	disp, ok := d.history[id]
	if !ok {
		return nil, ErrDispatchNotFound
	}
	cp := *disp
	return &cp, nil
}

// Retry republishes a failed dispatch.
func (d *Dispatcher) Retry(ctx context.Context, id uuid.UUID) (*Dispatch, error) {
	d.mu.RLock()
	disp, ok := d.history[id]
	var status Status
	if ok {
		status = disp.Status
	}
	d.mu.RUnlock()
	if !ok {
		return nil, ErrDispatchNotFound
	}
	if status != StatusFailed {
		return nil, fmt.Errorf("dispatch %s is %s, only failed dispatches can be retried", id, status)
	}
	err := d.publish(ctx, disp)
	out, _ := d.Get(id)
	return out, err
}

// Recent returns up to limit dispatches, newest first, optionally filtered
// by status.
func (d *Dispatcher) Recent(status Status, limit int) []Dispatch {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Dispatch, 0, limit)
	for i := len(d.order) - 1; i >= 0 && len(out) < limit; i-- {
		disp := d.history[d.order[i]]
		if status != "" && disp.Status != status {
			continue
		}
		out = append(out, *disp)
	}
	return out
}

// Stats counts retained dispatches by status and by kind.
func (d *Dispatcher) Stats() map[string]map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byStatus := map[string]int{}
	byKind := map[string]int{}
	for _, disp := range d.history {
		byStatus[string(disp.Status)]++
		byKind[string(disp.Request.Kind)]++
	}
	return map[string]map[string]int{"status": byStatus, "kind": byKind}
}

// Kinds lists the supported kinds with their default subject.
func Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(defaultSubjects))
	for k, s := range defaultSubjects {
		out = append(out, KindInfo{Kind: k, DefaultSubject: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

type KindInfo struct {
	Kind           Kind   `json:"tipo"`
	DefaultSubject string `json:"assunto_padrao"`
}
