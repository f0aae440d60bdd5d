package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/adapter"
	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/promocode"
	"github.com/ministry-platform/service-enrollment/internal/domain/purchase"
	"github.com/ministry-platform/service-enrollment/internal/events"
	"github.com/ministry-platform/service-enrollment/internal/lock"
)

// WebhookConfig tunes webhook reconciliation.
type WebhookConfig struct {
	LockTimeout         time.Duration
	BundlePromoEnabled  bool
	BundleDiscountCents int64
	BundleValidity      time.Duration
}

// WebhookService reconciles asynchronous payment-processor events against
// purchase state. Completion runs under the same lock key the checkout flow
// used, and every transition is idempotent against redelivery.
type WebhookService struct {
	purchases purchase.Repository
	programs  programSlots
	promos    promocode.Repository
	processor adapter.Processor
	locker    lock.Locker
	notifier  *events.Notifier
	cfg       WebhookConfig
	logger    *zap.Logger
}

// programSlots is the slice of program.Repository the reconciler needs.
type programSlots interface {
	ReleaseClassRepSlot(ctx context.Context, id uuid.UUID) error
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(
	purchases purchase.Repository,
	programs programSlots,
	promos promocode.Repository,
	processor adapter.Processor,
	locker lock.Locker,
	notifier *events.Notifier,
	cfg WebhookConfig,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		purchases: purchases,
		programs:  programs,
		promos:    promos,
		processor: processor,
		locker:    locker,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// HandleEvent dispatches one verified processor event. Unknown event types
// and unresolvable purchases are logged no-ops: the processor retries on
// non-2xx, and retrying those can never succeed.
func (s *WebhookService) HandleEvent(ctx context.Context, event *adapter.Event) error {
	switch event.Type {
	case adapter.EventCheckoutCompleted:
		return s.handleCheckoutCompleted(ctx, event.Checkout)
	case adapter.EventPaymentFailed:
		return s.handlePaymentFailed(ctx, event.PaymentFailure)
	case adapter.EventRefundUpdated:
		return s.handleRefundUpdate(ctx, event.Refund)
	default:
		s.logger.Info("ignoring unhandled event",
			zap.String("event_id", event.ID),
			zap.String("raw_type", event.RawType),
		)
		return nil
	}
}

// resolvePurchase finds the purchase for an event: by embedded purchase id
// when present, falling back to session id for legacy events.
func (s *WebhookService) resolvePurchase(ctx context.Context, purchaseID, sessionID string) (*purchase.Purchase, error) {
	if purchaseID != "" {
		id, err := uuid.Parse(purchaseID)
		if err == nil {
			return s.purchases.FindByID(ctx, id)
		}
		s.logger.Warn("malformed purchase id in event metadata", zap.String("purchase_id", purchaseID))
	}
	if sessionID != "" {
		return s.purchases.FindBySessionID(ctx, sessionID)
	}
	return nil, domain.NewNotFoundError("Purchase", "(no identifiers in event)")
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, data *adapter.CheckoutCompletedData) error {
	p, err := s.resolvePurchase(ctx, data.PurchaseID, data.SessionID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			s.logger.Warn("no purchase for completed session, ignoring",
				zap.String("session_id", data.SessionID),
			)
			return nil
		}
		return err
	}

	return s.locker.WithLock(ctx, lock.PurchaseCompletionKey(p.ID()), s.cfg.LockTimeout, func(ctx context.Context) error {
		// Re-read inside the lock; the record may have changed while waiting.
		p, err := s.purchases.FindByID(ctx, p.ID())
		if err != nil {
			return err
		}

		if p.Status() == purchase.StatusCompleted {
			s.logger.Info("purchase already completed, idempotent replay",
				zap.String("purchase_id", p.ID().String()),
			)
			return nil
		}

		// Best-effort: the payment already succeeded, so a failed detail
		// fetch must not block completion.
		methodSummary := ""
		if data.PaymentIntentID != "" {
			if intent, err := s.processor.RetrievePaymentIntent(ctx, data.PaymentIntentID); err != nil {
				s.logger.Warn("failed to retrieve payment intent details",
					zap.String("payment_intent_id", data.PaymentIntentID),
					zap.Error(err),
				)
			} else {
				methodSummary = intent.MethodSummary
			}
		}

		billing := purchase.BillingSnapshot{
			Name:       data.CustomerName,
			Email:      data.CustomerEmail,
			Address:    data.AddressLine,
			City:       data.City,
			Country:    data.Country,
			PostalCode: data.PostalCode,
		}
		if err := p.Complete(billing, data.PaymentIntentID, methodSummary); err != nil {
			return err
		}
		p.IncrementVersion()
		if err := s.purchases.Update(ctx, p); err != nil {
			return err
		}

		s.logger.Info("purchase completed",
			zap.String("purchase_id", p.ID().String()),
			zap.String("order_number", p.OrderNumber()),
		)

		// Ordered post-commit effects. Each is isolated: a failure is logged
		// and never reverts the committed completion.
		s.markPromoUsed(ctx, p)
		s.generateBundleCode(ctx, p)
		s.notifier.PurchaseCompleted(ctx, events.PurchaseCompletedEvent{
			PurchaseID:      p.ID(),
			UserID:          p.UserID(),
			ProgramID:       p.ProgramID(),
			OrderNumber:     p.OrderNumber(),
			FinalPriceCents: p.FinalPriceCents(),
			IsClassRep:      p.IsClassRep(),
		})

		return nil
	})
}

// markPromoUsed consumes the purchase's promo code. A personal code already
// used is skipped; a general staff code triggers an admin alert.
func (s *WebhookService) markPromoUsed(ctx context.Context, p *purchase.Purchase) {
	if p.PromoCode() == "" {
		return
	}

	promo, err := s.promos.FindByCode(ctx, p.PromoCode())
	if err != nil {
		s.logger.Error("failed to load promo for completed purchase",
			zap.String("code", p.PromoCode()),
			zap.Error(err),
		)
		return
	}
	if promo.IsUsed() && !promo.IsGeneral() {
		s.logger.Warn("personal promo already used, skipping",
			zap.String("code", promo.Code()),
		)
		return
	}

	usedBy := promocode.UsedBy{UserID: p.UserID()}
	if billing := p.Billing(); billing != nil {
		usedBy.Name = billing.Name
		usedBy.Email = billing.Email
	}
	if err := promo.MarkUsed(p.ProgramID(), usedBy); err != nil {
		s.logger.Warn("promo could not be consumed", zap.String("code", promo.Code()), zap.Error(err))
		return
	}
	if err := s.promos.Update(ctx, promo); err != nil {
		s.logger.Error("failed to persist promo use", zap.String("code", promo.Code()), zap.Error(err))
		return
	}

	if promo.IsGeneral() && promo.Type() == promocode.TypeStaffAccess {
		s.notifier.NotifyAdmins(ctx, "general_staff_code_used", map[string]string{
			"code":         promo.Code(),
			"order_number": p.OrderNumber(),
			"user_id":      p.UserID().String(),
		})
	}
}

// generateBundleCode issues a one-time bundle discount to the purchaser,
// excluded from the program just bought.
func (s *WebhookService) generateBundleCode(ctx context.Context, p *purchase.Purchase) {
	if !s.cfg.BundlePromoEnabled || p.FinalPriceCents() <= 0 {
		return
	}
	if p.Bundle() != nil {
		return
	}

	expiresAt := time.Now().UTC().Add(s.cfg.BundleValidity)
	bundle, err := promocode.NewBundle(p.UserID(), p.ProgramID(), p.ID(), s.cfg.BundleDiscountCents, expiresAt)
	if err != nil {
		s.logger.Error("failed to build bundle code", zap.Error(err))
		return
	}
	if err := s.promos.Save(ctx, bundle); err != nil {
		s.logger.Error("failed to save bundle code", zap.Error(err))
		return
	}

	p.AttachBundleCode(bundle.Code(), bundle.DiscountCents(), expiresAt)
	p.IncrementVersion()
	if err := s.purchases.Update(ctx, p); err != nil {
		s.logger.Error("failed to attach bundle code to purchase",
			zap.String("purchase_id", p.ID().String()),
			zap.Error(err),
		)
	}
}

func (s *WebhookService) handlePaymentFailed(ctx context.Context, data *adapter.PaymentFailureData) error {
	p, err := s.resolvePurchase(ctx, data.PurchaseID, "")
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			s.logger.Warn("no purchase for failed payment, ignoring",
				zap.String("payment_intent_id", data.PaymentIntentID),
			)
			return nil
		}
		return err
	}

	return s.locker.WithLock(ctx, lock.PurchaseCompletionKey(p.ID()), s.cfg.LockTimeout, func(ctx context.Context) error {
		p, err := s.purchases.FindByID(ctx, p.ID())
		if err != nil {
			return err
		}
		if p.Status() != purchase.StatusPending {
			s.logger.Info("payment failure for non-pending purchase, ignoring",
				zap.String("purchase_id", p.ID().String()),
				zap.String("status", string(p.Status())),
			)
			return nil
		}

		// Give the slot back before the terminal transition so capacity is
		// never pinned by a dead purchase.
		if p.IsClassRep() {
			if err := s.programs.ReleaseClassRepSlot(ctx, p.ProgramID()); err != nil {
				s.logger.Error("failed to release slot of failed purchase",
					zap.String("program_id", p.ProgramID().String()),
					zap.Error(err),
				)
			}
		}

		if err := p.MarkFailed(); err != nil {
			return err
		}
		p.IncrementVersion()
		if err := s.purchases.Update(ctx, p); err != nil {
			return err
		}

		s.logger.Info("purchase marked failed",
			zap.String("purchase_id", p.ID().String()),
			zap.String("reason", data.Reason),
		)

		s.notifier.PurchaseFailed(ctx, events.PurchaseFailedEvent{
			PurchaseID: p.ID(),
			UserID:     p.UserID(),
			ProgramID:  p.ProgramID(),
			Reason:     data.Reason,
		})
		return nil
	})
}

func (s *WebhookService) handleRefundUpdate(ctx context.Context, data *adapter.RefundUpdateData) error {
	if data.Status == adapter.RefundPending {
		return nil
	}

	p, err := s.resolvePurchase(ctx, data.PurchaseID, "")
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			s.logger.Warn("no purchase for refund event, ignoring",
				zap.String("refund_id", data.RefundID),
			)
			return nil
		}
		return err
	}

	return s.locker.WithLock(ctx, lock.PurchaseCompletionKey(p.ID()), s.cfg.LockTimeout, func(ctx context.Context) error {
		p, err := s.purchases.FindByID(ctx, p.ID())
		if err != nil {
			return err
		}

		switch data.Status {
		case adapter.RefundSucceeded:
			return s.applyRefundSucceeded(ctx, p, data)
		case adapter.RefundFailed:
			return s.applyRefundFailed(ctx, p, data)
		case adapter.RefundCanceled:
			return s.applyRefundCanceled(ctx, p, data)
		default:
			s.logger.Info("ignoring refund status",
				zap.String("refund_id", data.RefundID),
				zap.String("status", string(data.Status)),
			)
			return nil
		}
	})
}

func (s *WebhookService) applyRefundSucceeded(ctx context.Context, p *purchase.Purchase, data *adapter.RefundUpdateData) error {
	if p.Status() == purchase.StatusRefunded {
		s.logger.Info("refund already applied, idempotent replay",
			zap.String("purchase_id", p.ID().String()),
		)
		return nil
	}

	if err := p.CompleteRefund(); err != nil {
		return err
	}
	p.IncrementVersion()
	if err := s.purchases.Update(ctx, p); err != nil {
		return err
	}

	s.logger.Info("purchase refunded",
		zap.String("purchase_id", p.ID().String()),
		zap.String("refund_id", data.RefundID),
	)

	// Post-commit effects, each isolated.
	s.recoverPromo(ctx, p)
	s.deleteBundleCode(ctx, p)
	s.notifier.PurchaseRefunded(ctx, events.PurchaseRefundedEvent{
		PurchaseID: p.ID(),
		UserID:     p.UserID(),
		ProgramID:  p.ProgramID(),
		RefundID:   data.RefundID,
		Succeeded:  true,
	})
	s.notifier.NotifyUser(ctx, p.UserID(), "refund_completed", map[string]string{
		"order_number": p.OrderNumber(),
	})
	s.notifier.NotifyAdmins(ctx, "refund_completed", map[string]string{
		"order_number": p.OrderNumber(),
		"refund_id":    data.RefundID,
	})
	return nil
}

// recoverPromo makes the purchase's promo code redeemable again.
func (s *WebhookService) recoverPromo(ctx context.Context, p *purchase.Purchase) {
	if p.PromoCode() == "" {
		return
	}
	promo, err := s.promos.FindByCode(ctx, p.PromoCode())
	if err != nil {
		s.logger.Error("failed to load promo for refund recovery",
			zap.String("code", p.PromoCode()),
			zap.Error(err),
		)
		return
	}
	promo.Recover()
	if err := s.promos.Update(ctx, promo); err != nil {
		s.logger.Error("failed to persist promo recovery",
			zap.String("code", promo.Code()),
			zap.Error(err),
		)
	}
}

// deleteBundleCode removes the bundle code spawned from a refunded purchase.
func (s *WebhookService) deleteBundleCode(ctx context.Context, p *purchase.Purchase) {
	bundle, err := s.promos.FindBySourcePurchase(ctx, p.ID())
	if err != nil {
		if !domain.IsCode(err, domain.CodeNotFound) {
			s.logger.Error("failed to look up bundle code", zap.Error(err))
		}
		return
	}
	if err := s.promos.Delete(ctx, bundle.ID()); err != nil {
		s.logger.Error("failed to delete bundle code",
			zap.String("code", bundle.Code()),
			zap.Error(err),
		)
		return
	}

	p.ClearBundleCode()
	p.IncrementVersion()
	if err := s.purchases.Update(ctx, p); err != nil {
		s.logger.Error("failed to clear bundle metadata",
			zap.String("purchase_id", p.ID().String()),
			zap.Error(err),
		)
	}
}

func (s *WebhookService) applyRefundFailed(ctx context.Context, p *purchase.Purchase, data *adapter.RefundUpdateData) error {
	if p.Status() == purchase.StatusRefundFailed {
		return nil
	}

	if err := p.FailRefund(data.FailureReason); err != nil {
		return err
	}
	p.IncrementVersion()
	if err := s.purchases.Update(ctx, p); err != nil {
		return err
	}

	s.logger.Warn("refund failed",
		zap.String("purchase_id", p.ID().String()),
		zap.String("refund_id", data.RefundID),
		zap.String("reason", data.FailureReason),
	)

	s.notifier.PurchaseRefunded(ctx, events.PurchaseRefundedEvent{
		PurchaseID: p.ID(),
		UserID:     p.UserID(),
		ProgramID:  p.ProgramID(),
		RefundID:   data.RefundID,
		Succeeded:  false,
		Reason:     data.FailureReason,
	})
	s.notifier.NotifyUser(ctx, p.UserID(), "refund_failed", map[string]string{
		"order_number": p.OrderNumber(),
		"reason":       data.FailureReason,
	})
	return nil
}

// applyRefundCanceled reverts to completed. The processor rarely emits this,
// so admins get an anomaly alert for investigation.
func (s *WebhookService) applyRefundCanceled(ctx context.Context, p *purchase.Purchase, data *adapter.RefundUpdateData) error {
	if p.Status() == purchase.StatusCompleted {
		return nil
	}

	if err := p.CancelRefund(); err != nil {
		return err
	}
	p.IncrementVersion()
	if err := s.purchases.Update(ctx, p); err != nil {
		return err
	}

	s.logger.Warn("refund cancelled by processor",
		zap.String("purchase_id", p.ID().String()),
		zap.String("refund_id", data.RefundID),
	)

	s.notifier.NotifyAdmins(ctx, "refund_cancelled_anomaly", map[string]string{
		"order_number": p.OrderNumber(),
		"refund_id":    data.RefundID,
		"purchase_id":  p.ID().String(),
	})
	return nil
}
