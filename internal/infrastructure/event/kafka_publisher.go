// Package event publishes file outcome events to downstream consumers.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes FileEvents as JSON to one topic, keyed by source
// file so that events for the same file stay ordered within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		timeout: 10 * time.Second,
	}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, e appcert.FileEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.SourceFile),
		Value: data,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s event: %w", e.Type, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ appcert.EventPublisher = (*KafkaPublisher)(nil)
