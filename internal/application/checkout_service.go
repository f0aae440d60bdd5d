package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/adapter"
	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/program"
	"github.com/ministry-platform/service-enrollment/internal/domain/promocode"
	"github.com/ministry-platform/service-enrollment/internal/domain/purchase"
	"github.com/ministry-platform/service-enrollment/internal/events"
	"github.com/ministry-platform/service-enrollment/internal/lock"
	"github.com/ministry-platform/service-enrollment/internal/pricing"
	"github.com/ministry-platform/service-enrollment/internal/saga"
)

// CheckoutConfig tunes the checkout orchestration.
type CheckoutConfig struct {
	Currency           string
	MinimumChargeCents int64
	LockTimeout        time.Duration
	SuccessURL         string
	CancelURL          string
}

// CreateCheckoutRequest is the DTO for starting a purchase.
type CreateCheckoutRequest struct {
	ProgramID     uuid.UUID `json:"program_id" binding:"required"`
	IsClassRep    bool      `json:"is_class_rep"`
	PromoCode     string    `json:"promo_code"`
	CustomerEmail string    `json:"customer_email" binding:"required,email"`
}

// CheckoutResultDTO is the API response for a checkout attempt. Free is true
// on the zero-cost fast path; SessionURL is empty in that case and the
// purchase is already completed.
type CheckoutResultDTO struct {
	PurchaseID      uuid.UUID `json:"purchase_id"`
	OrderNumber     string    `json:"order_number"`
	Status          string    `json:"status"`
	FinalPriceCents int64     `json:"final_price_cents"`
	Free            bool      `json:"free"`
	SessionID       string    `json:"session_id,omitempty"`
	SessionURL      string    `json:"session_url,omitempty"`
}

// CheckoutService orchestrates purchase creation: validation, pending
// supersession, slot reservation, pricing, and checkout-session creation.
type CheckoutService struct {
	purchases purchase.Repository
	programs  program.Repository
	promos    promocode.Repository
	processor adapter.Processor
	locker    lock.Locker
	notifier  *events.Notifier
	cfg       CheckoutConfig
	logger    *zap.Logger
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	purchases purchase.Repository,
	programs program.Repository,
	promos promocode.Repository,
	processor adapter.Processor,
	locker lock.Locker,
	notifier *events.Notifier,
	cfg CheckoutConfig,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
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

// CreateCheckoutSession runs the full purchase-intent flow. Everything from
// pending-supersession to session creation happens under a lock keyed by a
// purchase id generated before any record exists; the webhook handler reuses
// the same key for completion, collapsing the two race windows into one.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, req CreateCheckoutRequest) (*CheckoutResultDTO, error) {
	s.logger.Info("creating checkout session",
		zap.String("user_id", userID.String()),
		zap.String("program_id", req.ProgramID.String()),
		zap.Bool("is_class_rep", req.IsClassRep),
	)

	prog, err := s.programs.FindByID(ctx, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if prog.IsFree() {
		return nil, domain.NewValidationError("program is free and requires no purchase")
	}

	completed, err := s.purchases.HasCompleted(ctx, userID, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if completed {
		return nil, domain.NewAlreadyPurchasedError(req.ProgramID.String())
	}

	var promo *promocode.PromoCode
	if req.PromoCode != "" {
		promo, err = s.validatePromo(ctx, userID, req.ProgramID, req.PromoCode)
		if err != nil {
			return nil, err
		}
	}

	purchaseID := uuid.New()

	var result *CheckoutResultDTO
	err = s.locker.WithLock(ctx, lock.PurchaseCompletionKey(purchaseID), s.cfg.LockTimeout, func(ctx context.Context) error {
		if err := s.supersedePending(ctx, userID, prog); err != nil {
			return err
		}

		now := time.Now().UTC()
		isEarlyBird := pricing.EarlyBirdApplies(now, prog.EarlyBirdDeadline())

		var classRepDiscount, earlyBirdDiscount int64
		if req.IsClassRep {
			classRepDiscount = prog.ClassRepDiscount()
		}
		if isEarlyBird {
			earlyBirdDiscount = prog.EarlyBirdDiscount()
		}

		var promoAmount int64
		var promoPercent float64
		var promoCode string
		if promo != nil {
			promoCode = promo.Code()
			promoAmount = promo.DiscountCents()
			promoPercent = promo.DiscountPercent()
		}

		finalPrice := pricing.FinalPrice(prog.PriceCents(), classRepDiscount, earlyBirdDiscount, promoAmount, promoPercent)
		breakdown := purchase.Pricing{
			FullPriceCents:       prog.PriceCents(),
			ClassRepDiscount:     classRepDiscount,
			EarlyBirdDiscount:    earlyBirdDiscount,
			PromoCode:            promoCode,
			PromoDiscountCents:   promoAmount,
			PromoDiscountPercent: promoPercent,
			FinalPriceCents:      finalPrice,
		}

		if finalPrice == 0 {
			dto, err := s.completeFreePurchase(ctx, purchaseID, userID, prog, breakdown, req.IsClassRep, isEarlyBird, promo)
			if err != nil {
				return err
			}
			result = dto
			return nil
		}

		if finalPrice < s.cfg.MinimumChargeCents {
			return domain.NewBelowMinimumChargeError(finalPrice, s.cfg.MinimumChargeCents)
		}

		dto, err := s.createPaidPurchase(ctx, purchaseID, userID, prog, breakdown, req, isEarlyBird)
		if err != nil {
			return err
		}
		result = dto
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// validatePromo checks existence, ownership, and program applicability.
func (s *CheckoutService) validatePromo(ctx context.Context, userID, programID uuid.UUID, code string) (*promocode.PromoCode, error) {
	promo, err := s.promos.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !promo.BelongsTo(userID) {
		return nil, domain.NewInvalidPromoCodeError("promo code belongs to another user")
	}
	if err := promo.CanBeUsedForProgram(programID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return promo, nil
}

// supersedePending removes the user's existing pending purchase for the
// program so the new attempt gets fresh options and pricing.
func (s *CheckoutService) supersedePending(ctx context.Context, userID uuid.UUID, prog *program.Program) error {
	stale, err := s.purchases.FindPendingByUserAndProgram(ctx, userID, prog.ID())
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil
		}
		return err
	}

	s.logger.Info("superseding pending purchase",
		zap.String("purchase_id", stale.ID().String()),
		zap.String("order_number", stale.OrderNumber()),
	)

	if stale.SessionID() != "" {
		if err := s.processor.ExpireSession(ctx, stale.SessionID()); err != nil {
			s.logger.Warn("failed to expire superseded session",
				zap.String("session_id", stale.SessionID()),
				zap.Error(err),
			)
		}
	}

	if stale.IsClassRep() && prog.HasBoundedClassRepCapacity() {
		if err := s.programs.ReleaseClassRepSlot(ctx, prog.ID()); err != nil {
			s.logger.Error("failed to release slot of superseded purchase",
				zap.String("program_id", prog.ID().String()),
				zap.Error(err),
			)
		}
	}

	return s.purchases.Delete(ctx, stale.ID())
}

// completeFreePurchase is the zero-cost fast path: the purchase is created
// directly as completed and no checkout session ever exists.
func (s *CheckoutService) completeFreePurchase(
	ctx context.Context,
	purchaseID, userID uuid.UUID,
	prog *program.Program,
	breakdown purchase.Pricing,
	isClassRep, isEarlyBird bool,
	promo *promocode.PromoCode,
) (*CheckoutResultDTO, error) {
	if isClassRep && prog.HasBoundedClassRepCapacity() {
		if _, err := s.programs.ReserveClassRepSlot(ctx, prog.ID()); err != nil {
			return nil, err
		}
	}

	p := purchase.NewCompleted(purchaseID, userID, prog.ID(), breakdown, isClassRep, isEarlyBird)
	if err := s.purchases.Save(ctx, p); err != nil {
		if isClassRep && prog.HasBoundedClassRepCapacity() {
			if relErr := s.programs.ReleaseClassRepSlot(ctx, prog.ID()); relErr != nil {
				s.logger.Error("failed to release slot after save failure", zap.Error(relErr))
			}
		}
		return nil, err
	}

	// Post-commit bookkeeping; failures here never unwind the purchase.
	if promo != nil {
		s.consumePromo(ctx, promo, p)
	}
	s.notifier.PurchaseCompleted(ctx, events.PurchaseCompletedEvent{
		PurchaseID:      p.ID(),
		UserID:          p.UserID(),
		ProgramID:       p.ProgramID(),
		OrderNumber:     p.OrderNumber(),
		FinalPriceCents: p.FinalPriceCents(),
		IsClassRep:      p.IsClassRep(),
	})

	s.logger.Info("free purchase completed",
		zap.String("purchase_id", p.ID().String()),
		zap.String("order_number", p.OrderNumber()),
	)

	return &CheckoutResultDTO{
		PurchaseID:      p.ID(),
		OrderNumber:     p.OrderNumber(),
		Status:          string(p.Status()),
		FinalPriceCents: 0,
		Free:            true,
	}, nil
}

// consumePromo marks a promo used and alerts admins when a general staff
// code is redeemed. Best-effort.
func (s *CheckoutService) consumePromo(ctx context.Context, promo *promocode.PromoCode, p *purchase.Purchase) {
	if err := promo.MarkUsed(p.ProgramID(), promocode.UsedBy{UserID: p.UserID()}); err != nil {
		s.logger.Warn("promo already consumed, skipping",
			zap.String("code", promo.Code()),
			zap.Error(err),
		)
		return
	}
	if err := s.promos.Update(ctx, promo); err != nil {
		s.logger.Error("failed to persist promo use",
			zap.String("code", promo.Code()),
			zap.Error(err),
		)
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

// createPaidPurchase runs slot reservation, purchase creation, and session
// creation as a compensating saga: any step failure unwinds the earlier
// steps so no orphaned pending purchase or leaked slot remains.
func (s *CheckoutService) createPaidPurchase(
	ctx context.Context,
	purchaseID, userID uuid.UUID,
	prog *program.Program,
	breakdown purchase.Pricing,
	req CreateCheckoutRequest,
	isEarlyBird bool,
) (*CheckoutResultDTO, error) {
	p := purchase.New(purchaseID, userID, prog.ID(), breakdown, req.IsClassRep, isEarlyBird)
	reserveSlot := req.IsClassRep && prog.HasBoundedClassRepCapacity()

	var session *adapter.CheckoutSession
	flow := saga.New("create_checkout", s.logger)

	if reserveSlot {
		flow.AddStep(saga.Step{
			Name: "reserve_class_rep_slot",
			Execute: func(ctx context.Context) error {
				_, err := s.programs.ReserveClassRepSlot(ctx, prog.ID())
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.programs.ReleaseClassRepSlot(ctx, prog.ID())
			},
		})
	}

	flow.AddStep(saga.Step{
		Name: "create_purchase",
		Execute: func(ctx context.Context) error {
			return s.purchases.Save(ctx, p)
		},
		Compensate: func(ctx context.Context) error {
			return s.purchases.Delete(ctx, p.ID())
		},
	})

	flow.AddStep(saga.Step{
		Name: "create_checkout_session",
		Execute: func(ctx context.Context) error {
			var err error
			session, err = s.processor.CreateCheckoutSession(ctx, adapter.CheckoutSessionInput{
				AmountCents:   p.FinalPriceCents(),
				Currency:      s.cfg.Currency,
				ProductName:   prog.Title(),
				CustomerEmail: req.CustomerEmail,
				SuccessURL:    s.cfg.SuccessURL,
				CancelURL:     s.cfg.CancelURL,
				Metadata: map[string]string{
					"purchase_id":  p.ID().String(),
					"order_number": p.OrderNumber(),
					"user_id":      userID.String(),
				},
			})
			if err != nil {
				return err
			}
			if err := p.AttachSession(session.ID); err != nil {
				return err
			}
			p.IncrementVersion()
			return s.purchases.Update(ctx, p)
		},
		Compensate: nil,
	})

	if err := flow.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("checkout session created",
		zap.String("purchase_id", p.ID().String()),
		zap.String("session_id", session.ID),
		zap.Int64("final_price_cents", p.FinalPriceCents()),
	)

	return &CheckoutResultDTO{
		PurchaseID:      p.ID(),
		OrderNumber:     p.OrderNumber(),
		Status:          string(p.Status()),
		FinalPriceCents: p.FinalPriceCents(),
		SessionID:       session.ID,
		SessionURL:      session.URL,
	}, nil
}

// CancelPendingPurchase abandons a user's own pending purchase: the session
// is expired, any reserved slot released, and the record deleted.
func (s *CheckoutService) CancelPendingPurchase(ctx context.Context, userID, purchaseID uuid.UUID) error {
	p, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return err
	}
	if p.UserID() != userID {
		return domain.NewNotFoundError("Purchase", purchaseID.String())
	}

	return s.locker.WithLock(ctx, lock.PurchaseCompletionKey(purchaseID), s.cfg.LockTimeout, func(ctx context.Context) error {
		return s.abandonPending(ctx, p)
	})
}

// CancelPendingForRegistration abandons the user's pending purchase for a
// program after a registration-cancelled event. A missing pending purchase
// is not an error.
func (s *CheckoutService) CancelPendingForRegistration(ctx context.Context, userID, programID uuid.UUID) error {
	p, err := s.purchases.FindPendingByUserAndProgram(ctx, userID, programID)
	if err != nil {
		if domain.IsCode(err, domain.CodeNotFound) {
			return nil
		}
		return err
	}

	return s.locker.WithLock(ctx, lock.PurchaseCompletionKey(p.ID()), s.cfg.LockTimeout, func(ctx context.Context) error {
		return s.abandonPending(ctx, p)
	})
}

func (s *CheckoutService) abandonPending(ctx context.Context, p *purchase.Purchase) error {
	if p.Status() != purchase.StatusPending {
		return domain.NewInvalidStateError(string(p.Status()), string(purchase.StatusPending))
	}

	if p.SessionID() != "" {
		if err := s.processor.ExpireSession(ctx, p.SessionID()); err != nil {
			s.logger.Warn("failed to expire session of cancelled purchase",
				zap.String("session_id", p.SessionID()),
				zap.Error(err),
			)
		}
	}

	if p.IsClassRep() {
		prog, err := s.programs.FindByID(ctx, p.ProgramID())
		if err == nil && prog.HasBoundedClassRepCapacity() {
			if err := s.programs.ReleaseClassRepSlot(ctx, p.ProgramID()); err != nil {
				s.logger.Error("failed to release slot of cancelled purchase",
					zap.String("program_id", p.ProgramID().String()),
					zap.Error(err),
				)
			}
		}
	}

	return s.purchases.Delete(ctx, p.ID())
}

// GetPurchase returns one of the user's purchases.
func (s *CheckoutService) GetPurchase(ctx context.Context, userID, purchaseID uuid.UUID) (*PurchaseDTO, error) {
	p, err := s.purchases.FindByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.UserID() != userID {
		return nil, domain.NewNotFoundError("Purchase", purchaseID.String())
	}
	dto := toPurchaseDTO(p)
	return &dto, nil
}

// ListPurchases returns all of the user's purchases, newest first.
func (s *CheckoutService) ListPurchases(ctx context.Context, userID uuid.UUID) ([]PurchaseDTO, error) {
	purchases, err := s.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	return dtos, nil
}

// --- Admin methods ---

// PurchaseStatsDTO holds purchase statistics for the admin dashboard.
type PurchaseStatsDTO struct {
	TotalRevenueCents int64            `json:"total_revenue_cents"`
	TotalPurchases    int64            `json:"total_purchases"`
	ByStatus          map[string]int64 `json:"by_status"`
}

// ListAllPurchases returns a paginated list of all purchases (admin).
func (s *CheckoutService) ListAllPurchases(ctx context.Context, page, limit int) ([]PurchaseDTO, int64, error) {
	purchases, total, err := s.purchases.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	return dtos, total, nil
}

// GetPurchaseStats returns aggregate purchase statistics (admin).
func (s *CheckoutService) GetPurchaseStats(ctx context.Context) (*PurchaseStatsDTO, error) {
	revenue, counts, err := s.purchases.GetRevenueStats(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &PurchaseStatsDTO{
		TotalRevenueCents: revenue,
		TotalPurchases:    total,
		ByStatus:          counts,
	}, nil
}
