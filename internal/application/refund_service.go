package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/adapter"
	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/purchase"
	"github.com/ministry-platform/service-enrollment/internal/events"
	"github.com/ministry-platform/service-enrollment/internal/lock"
)

// RefundService handles user-initiated refund requests. The terminal refund
// state arrives later via the processor's refund webhook; this service only
// drives completed -> refund_processing.
type RefundService struct {
	purchases    purchase.Repository
	processor    adapter.Processor
	locker       lock.Locker
	notifier     *events.Notifier
	refundWindow time.Duration
	lockTimeout  time.Duration
	logger       *zap.Logger
}

// NewRefundService creates a new RefundService.
func NewRefundService(
	purchases purchase.Repository,
	processor adapter.Processor,
	locker lock.Locker,
	notifier *events.Notifier,
	refundWindow, lockTimeout time.Duration,
	logger *zap.Logger,
) *RefundService {
	return &RefundService{
		purchases:    purchases,
		processor:    processor,
		locker:       locker,
		notifier:     notifier,
		refundWindow: refundWindow,
		lockTimeout:  lockTimeout,
		logger:       logger,
	}
}

// RequestRefund issues a full refund for one of the user's completed
// purchases, provided it is still inside the refund window.
func (s *RefundService) RequestRefund(ctx context.Context, userID, purchaseID uuid.UUID) (*PurchaseDTO, error) {
	p, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.UserID() != userID {
		return nil, domain.NewNotFoundError("Purchase", purchaseID.String())
	}

	var dto PurchaseDTO
	err = s.locker.WithLock(ctx, lock.PurchaseCompletionKey(purchaseID), s.lockTimeout, func(ctx context.Context) error {
		p, err := s.purchases.FindByID(ctx, purchaseID)
		if err != nil {
			return err
		}

		if !p.EligibleForRefund(time.Now().UTC(), s.refundWindow) {
			return domain.NewValidationError("purchase is not eligible for a refund")
		}
		if p.PaymentIntentID() == "" {
			return domain.NewValidationError("purchase has no captured payment to refund")
		}

		refund, err := s.processor.IssueRefund(ctx, p.PaymentIntentID(), p.FinalPriceCents(), map[string]string{
			"purchase_id":  p.ID().String(),
			"order_number": p.OrderNumber(),
			"user_id":      p.UserID().String(),
		})
		if err != nil {
			s.logger.Error("refund issuance failed",
				zap.String("purchase_id", p.ID().String()),
				zap.Error(err),
			)
			return err
		}

		if err := p.BeginRefund(refund.ID); err != nil {
			return err
		}
		p.IncrementVersion()
		if err := s.purchases.Update(ctx, p); err != nil {
			return err
		}

		s.logger.Info("refund initiated",
			zap.String("purchase_id", p.ID().String()),
			zap.String("refund_id", refund.ID),
		)

		s.notifier.NotifyUser(ctx, p.UserID(), "refund_initiated", map[string]string{
			"order_number": p.OrderNumber(),
		})

		dto = toPurchaseDTO(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dto, nil
}
