package events

import (
	"context"
	"strings"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PendingPurchaseCanceller abandons a user's pending purchase for a program.
// Implemented by the checkout application service.
type PendingPurchaseCanceller interface {
	CancelPendingForRegistration(ctx context.Context, userID, programID uuid.UUID) error
}

// RegistrationEventConsumer listens to registration events and abandons
// pending purchases for withdrawn registrations.
type RegistrationEventConsumer struct {
	consumer  *Consumer
	canceller PendingPurchaseCanceller
	logger    *zap.Logger
}

// NewRegistrationEventConsumer creates a consumer for registration events.
func NewRegistrationEventConsumer(
	brokers []string,
	groupID string,
	canceller PendingPurchaseCanceller,
	logger *zap.Logger,
) *RegistrationEventConsumer {
	consumer := NewConsumer(brokers, groupID, TopicRegistrationEvents, logger)
	return &RegistrationEventConsumer{
		consumer:  consumer,
		canceller: canceller,
		logger:    logger,
	}
}

// Start begins consuming registration events. It blocks until the context is
// cancelled.
func (c *RegistrationEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

func (c *RegistrationEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	ce, err := ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from registration topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		// Malformed envelopes never become parseable; commit and move on.
		return nil
	}

	if !strings.EqualFold(ce.Type, RegistrationCancelled) {
		c.logger.Debug("ignoring unhandled registration event type",
			zap.String("type", ce.Type),
		)
		return nil
	}

	var event RegistrationCancelledEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse registration cancelled data", zap.Error(err))
		return nil
	}

	return c.canceller.CancelPendingForRegistration(ctx, event.UserID, event.ProgramID)
}

// Close closes the underlying Kafka consumer.
func (c *RegistrationEventConsumer) Close() error {
	return c.consumer.Close()
}
