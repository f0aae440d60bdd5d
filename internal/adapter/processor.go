package adapter

import (
	"context"
)

// CheckoutSessionInput carries everything needed to open a processor-hosted
// payment collection flow. Metadata is round-tripped through the processor
// and comes back on webhook events; it must contain the purchase id, order
// number, and user id used for reconciliation.
type CheckoutSessionInput struct {
	AmountCents   int64
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the created external session.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentIntent is the slice of the processor's payment intent this service
// cares about.
type PaymentIntent struct {
	ID            string
	MethodSummary string // e.g. "visa ****4242"
}

// Refund is the created external refund.
type Refund struct {
	ID string
}

// EventType is the closed set of webhook event variants this service
// understands. Unknown processor event types map to EventUnknown, which the
// reconciler treats as a logged no-op.
type EventType string

const (
	EventCheckoutCompleted EventType = "checkout_completed"
	EventPaymentFailed     EventType = "payment_failed"
	EventRefundUpdated     EventType = "refund_updated"
	EventUnknown           EventType = "unknown"
)

// RefundStatus mirrors the processor's refund lifecycle.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
	RefundCanceled  RefundStatus = "canceled"
)

// CheckoutCompletedData is the payload of a checkout-completion event.
type CheckoutCompletedData struct {
	PurchaseID      string // from metadata; may be empty on legacy events
	SessionID       string
	PaymentIntentID string
	CustomerName    string
	CustomerEmail   string
	AddressLine     string
	City            string
	Country         string
	PostalCode      string
}

// PaymentFailureData is the payload of a payment-failure event.
type PaymentFailureData struct {
	PurchaseID      string
	PaymentIntentID string
	Reason          string
}

// RefundUpdateData is the payload of a refund lifecycle event.
type RefundUpdateData struct {
	RefundID        string
	PaymentIntentID string
	PurchaseID      string
	Status          RefundStatus
	FailureReason   string
}

// Event is the tagged union of webhook events. Exactly one of the data
// pointers matching Type is non-nil.
type Event struct {
	ID             string
	Type           EventType
	RawType        string
	Checkout       *CheckoutCompletedData
	PaymentFailure *PaymentFailureData
	Refund         *RefundUpdateData
}

// Processor is the Anti-Corruption Layer interface for the external payment
// processor. It decouples the purchase lifecycle from the Stripe API.
type Processor interface {
	// CreateCheckoutSession opens a hosted payment page for the amount.
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error)

	// RetrievePaymentIntent fetches payment-method details for a captured
	// payment. Best-effort callers tolerate failure.
	RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)

	// ConstructWebhookEvent verifies the payload signature and parses the
	// event. Fails on signature mismatch.
	ConstructWebhookEvent(payload []byte, signature string) (*Event, error)

	// IssueRefund refunds a captured payment intent.
	IssueRefund(ctx context.Context, paymentIntentID string, amountCents int64, metadata map[string]string) (*Refund, error)

	// ExpireSession invalidates a still-open checkout session.
	ExpireSession(ctx context.Context, id string) error
}
