package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ministry-platform/service-enrollment/internal/domain"
	"github.com/ministry-platform/service-enrollment/internal/domain/promocode"
)

// CreateStaffCodeRequest is the admin DTO for creating staff-access codes.
// OwnerID nil creates a shared (general) code.
type CreateStaffCodeRequest struct {
	Code              string      `json:"code" binding:"required"`
	DiscountPercent   float64     `json:"discount_percent" binding:"required,gt=0,lte=100"`
	OwnerID           *uuid.UUID  `json:"owner_id"`
	AllowedProgramIDs []uuid.UUID `json:"allowed_program_ids"`
	ExpiresAt         *time.Time  `json:"expires_at"`
}

// ValidatePromoRequest is the DTO for pre-checkout promo validation.
type ValidatePromoRequest struct {
	Code      string    `json:"code" binding:"required"`
	ProgramID uuid.UUID `json:"program_id" binding:"required"`
}

// PromoValidationDTO is the validation result returned to the frontend so it
// can preview discounted pricing.
type PromoValidationDTO struct {
	Code            string  `json:"code"`
	Type            string  `json:"type"`
	DiscountCents   int64   `json:"discount_cents,omitempty"`
	DiscountPercent float64 `json:"discount_percent,omitempty"`
}

// PromoService manages the promo code ledger's administrative surface.
type PromoService struct {
	promos promocode.Repository
	logger *zap.Logger
}

// NewPromoService creates a new PromoService.
func NewPromoService(promos promocode.Repository, logger *zap.Logger) *PromoService {
	return &PromoService{promos: promos, logger: logger}
}

// CreateStaffCode creates a staff-access percentage code (admin).
func (s *PromoService) CreateStaffCode(ctx context.Context, req CreateStaffCodeRequest) (*PromoCodeDTO, error) {
	code, err := promocode.NewStaffAccess(req.Code, req.DiscountPercent, req.OwnerID, req.AllowedProgramIDs, req.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := s.promos.Save(ctx, code); err != nil {
		return nil, err
	}

	s.logger.Info("staff promo code created",
		zap.String("code", code.Code()),
		zap.Bool("is_general", code.IsGeneral()),
		zap.Float64("discount_percent", code.DiscountPercent()),
	)

	dto := toPromoCodeDTO(code)
	return &dto, nil
}

// ListActiveCodes returns all currently redeemable codes (admin).
func (s *PromoService) ListActiveCodes(ctx context.Context) ([]PromoCodeDTO, error) {
	codes, err := s.promos.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]PromoCodeDTO, len(codes))
	for i, c := range codes {
		dtos[i] = toPromoCodeDTO(c)
	}
	return dtos, nil
}

// Validate checks whether the user can redeem a code for a program, without
// consuming it.
func (s *PromoService) Validate(ctx context.Context, userID uuid.UUID, req ValidatePromoRequest) (*PromoValidationDTO, error) {
	code, err := s.promos.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if !code.BelongsTo(userID) {
		return nil, domain.NewInvalidPromoCodeError("promo code belongs to another user")
	}
	if err := code.CanBeUsedForProgram(req.ProgramID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return &PromoValidationDTO{
		Code:            code.Code(),
		Type:            string(code.Type()),
		DiscountCents:   code.DiscountCents(),
		DiscountPercent: code.DiscountPercent(),
	}, nil
}
