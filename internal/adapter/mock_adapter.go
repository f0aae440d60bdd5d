package adapter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockProcessor is a development implementation of Processor. It fabricates
// identifiers and logs every call so the purchase flow can be exercised
// without a Stripe account. Webhook delivery cannot be simulated here; use
// the Stripe CLI against a real test key for that.
type MockProcessor struct {
	logger *zap.Logger
}

// NewMockProcessor creates a mock payment processor for development.
func NewMockProcessor(logger *zap.Logger) *MockProcessor {
	return &MockProcessor{logger: logger}
}

// CreateCheckoutSession fabricates a session id and hosted-page URL.
func (m *MockProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	sessionID := fmt.Sprintf("cs_mock_%s", uuid.New().String()[:8])

	m.logger.Info("[MOCK PROCESSOR] checkout session created",
		zap.String("session_id", sessionID),
		zap.Int64("amount_cents", in.AmountCents),
		zap.String("currency", in.Currency),
		zap.String("customer_email", in.CustomerEmail),
		zap.Any("metadata", in.Metadata),
	)

	return &CheckoutSession{
		ID:  sessionID,
		URL: fmt.Sprintf("https://checkout.example.test/pay/%s", sessionID),
	}, nil
}

// RetrievePaymentIntent fabricates a card summary.
func (m *MockProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	m.logger.Info("[MOCK PROCESSOR] payment intent retrieved",
		zap.String("payment_intent_id", id),
	)
	return &PaymentIntent{ID: id, MethodSummary: "visa ****4242"}, nil
}

// ConstructWebhookEvent always rejects; mock sessions never emit webhooks.
func (m *MockProcessor) ConstructWebhookEvent(payload []byte, signature string) (*Event, error) {
	return nil, fmt.Errorf("mock processor does not verify webhooks")
}

// IssueRefund fabricates a refund id.
func (m *MockProcessor) IssueRefund(ctx context.Context, paymentIntentID string, amountCents int64, metadata map[string]string) (*Refund, error) {
	refundID := fmt.Sprintf("re_mock_%s", uuid.New().String()[:8])

	m.logger.Info("[MOCK PROCESSOR] refund issued",
		zap.String("refund_id", refundID),
		zap.String("payment_intent_id", paymentIntentID),
		zap.Int64("amount_cents", amountCents),
	)
	return &Refund{ID: refundID}, nil
}

// ExpireSession logs the expiry.
func (m *MockProcessor) ExpireSession(ctx context.Context, id string) error {
	m.logger.Info("[MOCK PROCESSOR] session expired",
		zap.String("session_id", id),
	)
	return nil
}
