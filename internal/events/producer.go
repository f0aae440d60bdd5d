package events

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes CloudEvents to Kafka. A single Writer serves all topics.
type Producer struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

// NewProducer creates a Kafka producer for the given brokers.
func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		// Topics are created by the platform; auto-creation stays off so a
		// typo'd topic name fails loudly.
		AllowAutoTopicCreation: false,
	}
	return &Producer{writer: writer, logger: logger}
}

// PublishEvent writes one CloudEvent to the topic, keyed by the event id for
// per-event ordering.
func (p *Producer) PublishEvent(ctx context.Context, topic string, ce CloudEvent) error {
	value, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("marshal cloud event: %w", err)
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(ce.ID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ce.Type, topic, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("type", ce.Type),
		zap.String("id", ce.ID),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
