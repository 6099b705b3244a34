package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventStream appends keyed JSON events to a log-structured topic.
type EventStream interface {
	Emit(ctx context.Context, key string, event any) error
	Close() error
}

type KafkaStream struct {
	writer *kafka.Writer
}

// NewKafkaStream writes to topic, partitioning by key so all events of one
// entity stay ordered.
func NewKafkaStream(brokers []string, topic string) *KafkaStream {
	return &KafkaStream{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}}
}

func (k *KafkaStream) Emit(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("write to %s: %w", k.writer.Topic, err)
	}
	return nil
}

func (k *KafkaStream) Close() error {
	return k.writer.Close()
}

// MemoryStream records events in process. Used when no Kafka brokers are
// configured and in tests.
type MemoryStream struct {
	mu     sync.Mutex
	events []StreamEvent
}

type StreamEvent struct {
	Key   string
	Value []byte
}

func NewMemoryStream() *MemoryStream { return &MemoryStream{} }

func (m *MemoryStream) Emit(_ context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	m.mu.Lock()
	m.events = append(m.events, StreamEvent{Key: key, Value: value})
	m.mu.Unlock()
	return nil
}

func (m *MemoryStream) Events() []StreamEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StreamEvent(nil), m.events...)
}

func (m *MemoryStream) Close() error { return nil }
