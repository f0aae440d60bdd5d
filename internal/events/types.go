package events

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies this service in CloudEvent envelopes.
const Source = "service-enrollment"

// Kafka topics this service produces to or consumes from.
const (
	TopicPurchaseEvents       = "enrollment.purchase.events"
	TopicNotificationRequests = "notification.requests"
	TopicRegistrationEvents   = "registration.events"
)

// Event type identifiers.
const (
	PurchaseCompleted     = "enrollment.purchase.completed"
	PurchaseFailed        = "enrollment.purchase.failed"
	PurchaseRefunded      = "enrollment.purchase.refunded"
	NotificationRequested = "notification.requested"
	RegistrationCancelled = "registration.cancelled"
)

// PurchaseCompletedEvent announces a purchase reaching its completed state.
type PurchaseCompletedEvent struct {
	PurchaseID      uuid.UUID `json:"purchase_id"`
	UserID          uuid.UUID `json:"user_id"`
	ProgramID       uuid.UUID `json:"program_id"`
	OrderNumber     string    `json:"order_number"`
	FinalPriceCents int64     `json:"final_price_cents"`
	IsClassRep      bool      `json:"is_class_rep"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// PurchaseFailedEvent announces a failed payment attempt.
type PurchaseFailedEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	UserID     uuid.UUID `json:"user_id"`
	ProgramID  uuid.UUID `json:"program_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PurchaseRefundedEvent announces a refund reaching a terminal state.
type PurchaseRefundedEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	UserID     uuid.UUID `json:"user_id"`
	ProgramID  uuid.UUID `json:"program_id"`
	RefundID   string    `json:"refund_id"`
	Succeeded  bool      `json:"succeeded"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NotificationRequest asks the notification service to deliver a message.
// Audience "user" targets the user id; "admins" fans out to staff.
type NotificationRequest struct {
	Audience   string            `json:"audience"`
	UserID     *uuid.UUID        `json:"user_id,omitempty"`
	Template   string            `json:"template"`
	Params     map[string]string `json:"params,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// RegistrationCancelledEvent arrives from the registration service when a
// user withdraws from a program before paying.
type RegistrationCancelledEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	ProgramID  uuid.UUID `json:"program_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
