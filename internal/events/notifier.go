package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher is the publishing dependency of the notifier.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, ce CloudEvent) error
}

// Notifier publishes purchase lifecycle events and notification requests.
// Delivery is best-effort; callers never fail a purchase over a lost
// notification, so every method logs instead of returning an error.
type Notifier struct {
	producer EventPublisher
	logger   *zap.Logger
}

// NewNotifier creates a notifier on top of the shared producer.
func NewNotifier(producer EventPublisher, logger *zap.Logger) *Notifier {
	return &Notifier{producer: producer, logger: logger}
}

// PurchaseCompleted publishes the lifecycle event and a confirmation
// notification for the user.
func (n *Notifier) PurchaseCompleted(ctx context.Context, ev PurchaseCompletedEvent) {
	ev.OccurredAt = time.Now().UTC()
	n.publish(ctx, TopicPurchaseEvents, PurchaseCompleted, ev)
	n.NotifyUser(ctx, ev.UserID, "purchase_confirmation", map[string]string{
		"order_number": ev.OrderNumber,
	})
}

// PurchaseFailed publishes the lifecycle event for a failed payment.
func (n *Notifier) PurchaseFailed(ctx context.Context, ev PurchaseFailedEvent) {
	ev.OccurredAt = time.Now().UTC()
	n.publish(ctx, TopicPurchaseEvents, PurchaseFailed, ev)
}

// PurchaseRefunded publishes the lifecycle event for a refund outcome.
func (n *Notifier) PurchaseRefunded(ctx context.Context, ev PurchaseRefundedEvent) {
	ev.OccurredAt = time.Now().UTC()
	n.publish(ctx, TopicPurchaseEvents, PurchaseRefunded, ev)
}

// NotifyUser requests a templated notification for one user.
func (n *Notifier) NotifyUser(ctx context.Context, userID uuid.UUID, template string, params map[string]string) {
	n.publish(ctx, TopicNotificationRequests, NotificationRequested, NotificationRequest{
		Audience:   "user",
		UserID:     &userID,
		Template:   template,
		Params:     params,
		OccurredAt: time.Now().UTC(),
	})
}

// NotifyAdmins requests a templated notification for the staff audience.
func (n *Notifier) NotifyAdmins(ctx context.Context, template string, params map[string]string) {
	n.publish(ctx, TopicNotificationRequests, NotificationRequested, NotificationRequest{
		Audience:   "admins",
		Template:   template,
		Params:     params,
		OccurredAt: time.Now().UTC(),
	})
}

func (n *Notifier) publish(ctx context.Context, topic, eventType string, data any) {
	ce, err := NewCloudEvent(Source, eventType, data)
	if err != nil {
		n.logger.Error("failed to build cloud event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}
	if err := n.producer.PublishEvent(ctx, topic, ce); err != nil {
		n.logger.Error("failed to publish event",
			zap.String("type", eventType),
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}
