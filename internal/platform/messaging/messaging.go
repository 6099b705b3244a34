// Package messaging connects the service to its brokers: a work queue for
// outbound email, a request/response call for image analysis, and an event
// stream for appointment lifecycle changes.
package messaging

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a request/response call gets no reply within
// its bound. It is distinct from any error carried in a reply.
var ErrTimeout = errors.New("messaging: reply timed out")

var ErrClosed = errors.New("messaging: broker closed")

// Publisher enqueues a message. It returns once the broker has accepted it;
// delivery to consumers is not awaited.
type Publisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Requester sends a message and waits for the correlated reply.
type Requester interface {
	Request(ctx context.Context, queue string, body []byte) ([]byte, error)
}

type Broker interface {
	Publisher
	Requester
	Close() error
}

func ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
