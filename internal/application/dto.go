package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/ministry-platform/service-enrollment/internal/domain/promocode"
	"github.com/ministry-platform/service-enrollment/internal/domain/purchase"
)

// PurchaseDTO is the API response DTO for purchase data.
type PurchaseDTO struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	ProgramID            uuid.UUID  `json:"program_id"`
	OrderNumber          string     `json:"order_number"`
	FullPriceCents       int64      `json:"full_price_cents"`
	ClassRepDiscount     int64      `json:"class_rep_discount_cents,omitempty"`
	EarlyBirdDiscount    int64      `json:"early_bird_discount_cents,omitempty"`
	PromoCode            string     `json:"promo_code,omitempty"`
	PromoDiscountCents   int64      `json:"promo_discount_cents,omitempty"`
	PromoDiscountPercent float64    `json:"promo_discount_percent,omitempty"`
	FinalPriceCents      int64      `json:"final_price_cents"`
	IsClassRep           bool       `json:"is_class_rep"`
	IsEarlyBird          bool       `json:"is_early_bird"`
	SessionID            string     `json:"session_id,omitempty"`
	Status               string     `json:"status"`
	PaymentMethodSummary string     `json:"payment_method_summary,omitempty"`
	PurchaseDate         *time.Time `json:"purchase_date,omitempty"`
	RefundInitiatedAt    *time.Time `json:"refund_initiated_at,omitempty"`
	RefundedAt           *time.Time `json:"refunded_at,omitempty"`
	RefundFailureReason  string     `json:"refund_failure_reason,omitempty"`
	BundleCode           string     `json:"bundle_code,omitempty"`
	BundleDiscountCents  int64      `json:"bundle_discount_cents,omitempty"`
	BundleExpiresAt      *time.Time `json:"bundle_expires_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// toPurchaseDTO maps a domain Purchase to a PurchaseDTO.
func toPurchaseDTO(p *purchase.Purchase) PurchaseDTO {
	dto := PurchaseDTO{
		ID:                   p.ID(),
		UserID:               p.UserID(),
		ProgramID:            p.ProgramID(),
		OrderNumber:          p.OrderNumber(),
		FullPriceCents:       p.FullPriceCents(),
		ClassRepDiscount:     p.ClassRepDiscount(),
		EarlyBirdDiscount:    p.EarlyBirdDiscount(),
		PromoCode:            p.PromoCode(),
		PromoDiscountCents:   p.PromoDiscountCents(),
		PromoDiscountPercent: p.PromoDiscountPercent(),
		FinalPriceCents:      p.FinalPriceCents(),
		IsClassRep:           p.IsClassRep(),
		IsEarlyBird:          p.IsEarlyBird(),
		SessionID:            p.SessionID(),
		Status:               string(p.Status()),
		PaymentMethodSummary: p.PaymentMethodSummary(),
		PurchaseDate:         p.PurchaseDate(),
		RefundInitiatedAt:    p.RefundInitiatedAt(),
		RefundedAt:           p.RefundedAt(),
		RefundFailureReason:  p.RefundFailureReason(),
		CreatedAt:            p.CreatedAt(),
		UpdatedAt:            p.UpdatedAt(),
	}
	if bundle := p.Bundle(); bundle != nil {
		expires := bundle.ExpiresAt
		dto.BundleCode = bundle.Code
		dto.BundleDiscountCents = bundle.DiscountCents
		dto.BundleExpiresAt = &expires
	}
	return dto
}

// PromoCodeDTO is the API response DTO for promo code data.
type PromoCodeDTO struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	Type            string     `json:"type"`
	DiscountCents   int64      `json:"discount_cents,omitempty"`
	DiscountPercent float64    `json:"discount_percent,omitempty"`
	IsGeneral       bool       `json:"is_general"`
	OwnerID         *uuid.UUID `json:"owner_id,omitempty"`
	IsUsed          bool       `json:"is_used"`
	IsActive        bool       `json:"is_active"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// toPromoCodeDTO maps a domain PromoCode to a PromoCodeDTO.
func toPromoCodeDTO(p *promocode.PromoCode) PromoCodeDTO {
	return PromoCodeDTO{
		ID:              p.ID(),
		Code:            p.Code(),
		Type:            string(p.Type()),
		DiscountCents:   p.DiscountCents(),
		DiscountPercent: p.DiscountPercent(),
		IsGeneral:       p.IsGeneral(),
		OwnerID:         p.OwnerID(),
		IsUsed:          p.IsUsed(),
		IsActive:        p.IsActive(),
		ExpiresAt:       p.ExpiresAt(),
		CreatedAt:       p.CreatedAt(),
	}
}
