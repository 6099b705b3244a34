package messaging

import (
	"context"
	"fmt"
	"sync"
)

// Message is a published message retained by MemoryBroker.
type Message struct {
	Queue string
	Body  []byte
}

// ReplyFunc answers a request sent to a MemoryBroker queue.
type ReplyFunc func(ctx context.Context, body []byte) ([]byte, error)

// MemoryBroker keeps published messages in process. It backs local runs
// without RabbitMQ and the unit tests.
type MemoryBroker struct {
	mu        sync.Mutex
	messages  []Message
	responder map[string]ReplyFunc
	failWith  error
	closed    bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{responder: make(map[string]ReplyFunc)}
}

// Respond registers the handler used for requests sent to queue.
func (m *MemoryBroker) Respond(queue string, fn ReplyFunc) {
	m.mu.Lock()
	m.responder[queue] = fn
	m.mu.Unlock()
}

// FailPublishes makes subsequent publishes fail with err (nil restores).
func (m *MemoryBroker) FailPublishes(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

func (m *MemoryBroker) Publish(_ context.Context, queue string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.failWith != nil {
		return m.failWith
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	m.messages = append(m.messages, Message{Queue: queue, Body: cp})
	return nil
}

func (m *MemoryBroker) Request(ctx context.Context, queue string, body []byte) ([]byte, error) {
	m.mu.Lock()
	fn, ok := m.responder[queue]
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if !ok {
		<-ctx.Done()
		return nil, ctxErr(ctx)
	}

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		b, err := fn(ctx, body)
		done <- result{b, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, ctxErr(ctx)
			}
			return nil, fmt.Errorf("responder %s: %w", queue, r.err)
		}
		return r.body, nil
	case <-ctx.Done():
		return nil, ctxErr(ctx)
	}
}

// Messages returns a snapshot of everything published to queue.
func (m *MemoryBroker) Messages(queue string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.messages {
		if msg.Queue == queue {
			out = append(out, msg)
		}
	}
	return out
}

func (m *MemoryBroker) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
