package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const directReplyTo = "amq.rabbitmq.reply-to"

// ErrNacked is returned when the broker refuses a published message.
var ErrNacked = errors.New("messaging: broker nacked publish")

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// publishChannel is the confirm-mode channel Publish writes to.
type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishConfirmed(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)
}

type confirmChannel struct {
	*amqp.Channel
}

func (c confirmChannel) PublishConfirmed(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("publish channel is not in confirm mode")
	}
	return dc, nil
}

// Rabbit publishes to durable queues on the default exchange and performs
// request/response calls over RabbitMQ direct reply-to.
type Rabbit struct {
	conn   *amqp.Connection
	logger zerolog.Logger

	pubMu    sync.Mutex
	pubCh    publishChannel
	declared map[string]bool

	rpcMu   sync.Mutex
	rpcCh   *amqp.Channel
	pending map[string]chan amqp.Delivery
	closed  bool
}

func DialRabbit(url string, logger zerolog.Logger) (*Rabbit, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := pubCh.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	rpcCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rpc channel: %w", err)
	}
	replies, err := rpcCh.Consume(directReplyTo, "", true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("consume reply-to: %w", err)
	}

	r := &Rabbit{
		conn:     conn,
		logger:   logger,
		pubCh:    confirmChannel{pubCh},
		declared: make(map[string]bool),
		rpcCh:    rpcCh,
		pending:  make(map[string]chan amqp.Delivery),
	}
	go r.dispatchReplies(replies)
	return r, nil
}

func (r *Rabbit) declare(queue string) error {
	if r.declared[queue] {
		return nil
	}
	if _, err := r.pubCh.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	r.declared[queue] = true
	return nil
}

// Publish waits for the broker's confirm. A nack yields ErrNacked and a ctx
// deadline before the confirm yields ErrTimeout.
func (r *Rabbit) Publish(ctx context.Context, queue string, body []byte) error {
	r.pubMu.Lock()
	if err := r.declare(queue); err != nil {
		r.pubMu.Unlock()
		return err
	}
	conf, err := r.pubCh.PublishConfirmed(ctx, queue, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	r.pubMu.Unlock()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("confirm from %s: %w", queue, ctxErr(ctx))
		}
		return fmt.Errorf("confirm from %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %s: %w", queue, ErrNacked)
	}
	return nil
}

// Request publishes body with a fresh correlation id and waits for the reply
// or for ctx to end. A deadline on ctx surfaces as ErrTimeout.
func (r *Rabbit) Request(ctx context.Context, queue string, body []byte) ([]byte, error) {
	corrID := uuid.NewString()
	reply := make(chan amqp.Delivery, 1)

	r.rpcMu.Lock()
	if r.closed {
		r.rpcMu.Unlock()
		return nil, ErrClosed
	}
	r.pending[corrID] = reply
	err := r.rpcCh.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       directReplyTo,
		Timestamp:     time.Now(),
		Body:          body,
	})
	r.rpcMu.Unlock()

	defer func() {
		r.rpcMu.Lock()
		delete(r.pending, corrID)
		r.rpcMu.Unlock()
	}()

	if err != nil {
		return nil, fmt.Errorf("publish request to %s: %w", queue, err)
	}

	select {
	case d, ok := <-reply:
		if !ok {
			return nil, ErrClosed
		}
		return d.Body, nil
	case <-ctx.Done():
		return nil, ctxErr(ctx)
	}
}

func (r *Rabbit) dispatchReplies(replies <-chan amqp.Delivery) {
	for d := range replies {
		r.rpcMu.Lock()
		ch, ok := r.pending[d.CorrelationId]
		r.rpcMu.Unlock()
		if !ok {
			r.logger.Warn().Str("correlation_id", d.CorrelationId).Msg("dropping reply with no waiting caller")
			continue
		}
		ch <- d
	}

	r.rpcMu.Lock()
	r.closed = true
	for id, ch := range r.pending {
		close(ch)
		delete(r.pending, id)
	}
	r.rpcMu.Unlock()
}

func (r *Rabbit) Close() error {
	return r.conn.Close()
}
