package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/paymentintent"
	striperefund "github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// StripeProcessor implements Processor against the Stripe API.
type StripeProcessor struct {
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeProcessor configures the Stripe client key and returns a processor.
func NewStripeProcessor(secretKey, webhookSecret string, logger *zap.Logger) *StripeProcessor {
	stripelib.Key = secretKey
	return &StripeProcessor{webhookSecret: webhookSecret, logger: logger}
}

// CreateCheckoutSession opens a one-time-payment Checkout session. Metadata
// is attached both to the session and to its payment intent so every later
// webhook carries the purchase identifiers.
func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*CheckoutSession, error) {
	params := &stripelib.CheckoutSessionParams{
		Mode:          stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		SuccessURL:    stripelib.String(in.SuccessURL),
		CancelURL:     stripelib.String(in.CancelURL),
		CustomerEmail: stripelib.String(in.CustomerEmail),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripelib.String(in.Currency),
					UnitAmount: stripelib.Int64(in.AmountCents),
					ProductData: &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripelib.String(in.ProductName),
					},
				},
				Quantity: stripelib.Int64(1),
			},
		},
		PaymentIntentData: &stripelib.CheckoutSessionPaymentIntentDataParams{},
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
		params.PaymentIntentData.AddMetadata(k, v)
	}

	sess, err := stripesession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// RetrievePaymentIntent fetches the intent with its payment method expanded
// and summarizes the card, if any.
func (p *StripeProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripelib.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("payment_method")

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent %s: %w", id, err)
	}

	summary := ""
	if pi.PaymentMethod != nil && pi.PaymentMethod.Card != nil {
		summary = fmt.Sprintf("%s ****%s", pi.PaymentMethod.Card.Brand, pi.PaymentMethod.Card.Last4)
	}
	return &PaymentIntent{ID: pi.ID, MethodSummary: summary}, nil
}

// IssueRefund refunds a captured payment intent.
func (p *StripeProcessor) IssueRefund(ctx context.Context, paymentIntentID string, amountCents int64, metadata map[string]string) (*Refund, error) {
	params := &stripelib.RefundParams{
		PaymentIntent: stripelib.String(paymentIntentID),
		Amount:        stripelib.Int64(amountCents),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	r, err := striperefund.New(params)
	if err != nil {
		return nil, fmt.Errorf("issue refund for %s: %w", paymentIntentID, err)
	}
	return &Refund{ID: r.ID}, nil
}

// ExpireSession invalidates a still-open checkout session. Stripe rejects
// expiring a session that already completed, so callers treat failures as
// best-effort.
func (p *StripeProcessor) ExpireSession(ctx context.Context, id string) error {
	params := &stripelib.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := stripesession.Expire(id, params); err != nil {
		return fmt.Errorf("expire session %s: %w", id, err)
	}
	return nil
}

// ConstructWebhookEvent verifies the signature and maps the Stripe event
// onto the closed Event union.
func (p *StripeProcessor) ConstructWebhookEvent(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}

	event := &Event{ID: stripeEvent.ID, RawType: string(stripeEvent.Type), Type: EventUnknown}

	switch stripeEvent.Type {
	case "checkout.session.completed":
		var sess stripelib.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout session payload: %w", err)
		}
		data := &CheckoutCompletedData{
			PurchaseID: sess.Metadata["purchase_id"],
			SessionID:  sess.ID,
		}
		if sess.PaymentIntent != nil {
			data.PaymentIntentID = sess.PaymentIntent.ID
		}
		if cd := sess.CustomerDetails; cd != nil {
			data.CustomerName = cd.Name
			data.CustomerEmail = cd.Email
			if cd.Address != nil {
				data.AddressLine = cd.Address.Line1
				data.City = cd.Address.City
				data.Country = cd.Address.Country
				data.PostalCode = cd.Address.PostalCode
			}
		}
		event.Type = EventCheckoutCompleted
		event.Checkout = data

	case "payment_intent.payment_failed":
		var pi stripelib.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent payload: %w", err)
		}
		data := &PaymentFailureData{
			PurchaseID:      pi.Metadata["purchase_id"],
			PaymentIntentID: pi.ID,
		}
		if pi.LastPaymentError != nil {
			data.Reason = pi.LastPaymentError.Msg
		}
		event.Type = EventPaymentFailed
		event.PaymentFailure = data

	case "refund.created", "refund.updated", "refund.failed":
		var r stripelib.Refund
		if err := json.Unmarshal(stripeEvent.Data.Raw, &r); err != nil {
			return nil, fmt.Errorf("decode refund payload: %w", err)
		}
		data := &RefundUpdateData{
			RefundID:      r.ID,
			PurchaseID:    r.Metadata["purchase_id"],
			Status:        RefundStatus(r.Status),
			FailureReason: string(r.FailureReason),
		}
		if r.PaymentIntent != nil {
			data.PaymentIntentID = r.PaymentIntent.ID
		}
		event.Type = EventRefundUpdated
		event.Refund = data

	default:
		p.logger.Info("ignoring unhandled stripe event type",
			zap.String("type", string(stripeEvent.Type)),
			zap.String("event_id", stripeEvent.ID),
		)
	}

	return event, nil
}
