package promocode

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ministry-platform/service-enrollment/internal/domain"
)

// Type distinguishes the two kinds of discount codes.
type Type string

const (
	// TypeBundleDiscount is a fixed-amount code auto-issued after a
	// qualifying purchase.
	TypeBundleDiscount Type = "bundle_discount"
	// TypeStaffAccess is a percentage code issued to staff, optionally
	// restricted to an allowlist of programs.
	TypeStaffAccess Type = "staff_access"
)

// UsedBy is the snapshot of the consuming user recorded on use.
type UsedBy struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// PromoCode is the aggregate root for discount codes.
type PromoCode struct {
	id                uuid.UUID
	code              string
	typ               Type
	discountCents     int64
	discountPercent   float64
	isGeneral         bool
	ownerID           *uuid.UUID
	isUsed            bool
	isActive          bool
	usedAt            *time.Time
	usedForProgramID  *uuid.UUID
	usedBy            *UsedBy
	allowedProgramIDs []uuid.UUID
	excludedProgramID *uuid.UUID
	sourcePurchaseID  *uuid.UUID
	expiresAt         *time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

// NewStaffAccess creates a percentage staff code. A nil ownerID makes the
// code general (shared, reusable across purchases).
func NewStaffAccess(code string, percent float64, ownerID *uuid.UUID, allowedProgramIDs []uuid.UUID, expiresAt *time.Time) (*PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.NewValidationError("promo code is required")
	}
	if percent <= 0 || percent > 100 {
		return nil, domain.NewValidationError("percentage discount must be in (0, 100]")
	}
	now := time.Now().UTC()
	return &PromoCode{
		id:                uuid.New(),
		code:              code,
		typ:               TypeStaffAccess,
		discountPercent:   percent,
		isGeneral:         ownerID == nil,
		ownerID:           ownerID,
		isActive:          true,
		allowedProgramIDs: allowedProgramIDs,
		expiresAt:         expiresAt,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// NewBundle creates a personal one-time fixed-amount code issued to a user
// after a qualifying purchase, excluded from the program just bought.
func NewBundle(ownerID, excludedProgramID, sourcePurchaseID uuid.UUID, discountCents int64, expiresAt time.Time) (*PromoCode, error) {
	if discountCents <= 0 {
		return nil, domain.NewValidationError("bundle discount must be positive")
	}
	now := time.Now().UTC()
	return &PromoCode{
		id:                uuid.New(),
		code:              generateBundleCode(),
		typ:               TypeBundleDiscount,
		discountCents:     discountCents,
		ownerID:           &ownerID,
		isActive:          true,
		excludedProgramID: &excludedProgramID,
		sourcePurchaseID:  &sourcePurchaseID,
		expiresAt:         &expiresAt,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

const bundleCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateBundleCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("BUNDLE-%d", time.Now().UnixNano()%100000000)
	}
	for i, b := range buf {
		buf[i] = bundleCodeAlphabet[int(b)%len(bundleCodeAlphabet)]
	}
	return "BUNDLE-" + string(buf)
}

// --- Getters ---

func (p *PromoCode) ID() uuid.UUID                  { return p.id }
func (p *PromoCode) Code() string                   { return p.code }
func (p *PromoCode) Type() Type                     { return p.typ }
func (p *PromoCode) DiscountCents() int64           { return p.discountCents }
func (p *PromoCode) DiscountPercent() float64       { return p.discountPercent }
func (p *PromoCode) IsGeneral() bool                { return p.isGeneral }
func (p *PromoCode) OwnerID() *uuid.UUID            { return p.ownerID }
func (p *PromoCode) IsUsed() bool                   { return p.isUsed }
func (p *PromoCode) IsActive() bool                 { return p.isActive }
func (p *PromoCode) UsedAt() *time.Time             { return p.usedAt }
func (p *PromoCode) UsedForProgramID() *uuid.UUID   { return p.usedForProgramID }
func (p *PromoCode) UsedBy() *UsedBy                { return p.usedBy }
func (p *PromoCode) AllowedProgramIDs() []uuid.UUID { return p.allowedProgramIDs }
func (p *PromoCode) ExcludedProgramID() *uuid.UUID  { return p.excludedProgramID }
func (p *PromoCode) SourcePurchaseID() *uuid.UUID   { return p.sourcePurchaseID }
func (p *PromoCode) ExpiresAt() *time.Time          { return p.expiresAt }
func (p *PromoCode) CreatedAt() time.Time           { return p.createdAt }
func (p *PromoCode) UpdatedAt() time.Time           { return p.updatedAt }

// IsExpired reports whether the code is past its expiry.
func (p *PromoCode) IsExpired(now time.Time) bool {
	return p.expiresAt != nil && now.After(*p.expiresAt)
}

// BelongsTo reports whether the user may redeem this code. General codes
// belong to everyone.
func (p *PromoCode) BelongsTo(userID uuid.UUID) bool {
	if p.isGeneral {
		return true
	}
	return p.ownerID != nil && *p.ownerID == userID
}

// CanBeUsedForProgram checks applicability of the code to a program: the
// code must be active, unconsumed (personal codes only), unexpired, not
// excluded from the program, and within the staff allowlist if one is set.
func (p *PromoCode) CanBeUsedForProgram(programID uuid.UUID, now time.Time) error {
	if !p.isActive {
		return domain.NewInvalidPromoCodeError("promo code is no longer active")
	}
	if p.isUsed && !p.isGeneral {
		return domain.NewInvalidPromoCodeError("promo code has already been used")
	}
	if p.IsExpired(now) {
		return domain.NewInvalidPromoCodeError("promo code has expired")
	}
	if p.excludedProgramID != nil && *p.excludedProgramID == programID {
		return domain.NewInvalidPromoCodeError("promo code cannot be used for this program")
	}
	if p.typ == TypeStaffAccess && len(p.allowedProgramIDs) > 0 {
		for _, id := range p.allowedProgramIDs {
			if id == programID {
				return nil
			}
		}
		return domain.NewInvalidPromoCodeError("promo code is not valid for this program")
	}
	return nil
}

// MarkUsed consumes the code for a program. A personal code can be consumed
// by at most one completed purchase at a time.
func (p *PromoCode) MarkUsed(programID uuid.UUID, by UsedBy) error {
	if p.isUsed && !p.isGeneral {
		return domain.NewInvalidPromoCodeError("promo code has already been used")
	}
	now := time.Now().UTC()
	p.isUsed = true
	p.usedAt = &now
	p.usedForProgramID = &programID
	p.usedBy = &by
	if !p.isGeneral {
		p.isActive = false
	}
	p.updatedAt = now
	return nil
}

// Recover reverses a use on refund: the code becomes redeemable again.
func (p *PromoCode) Recover() {
	p.isUsed = false
	p.isActive = true
	p.usedAt = nil
	p.usedForProgramID = nil
	p.usedBy = nil
	p.updatedAt = time.Now().UTC()
}

// Reconstitute rebuilds a PromoCode from persisted data.
func Reconstitute(
	id uuid.UUID,
	code string,
	typ Type,
	discountCents int64,
	discountPercent float64,
	isGeneral bool,
	ownerID *uuid.UUID,
	isUsed, isActive bool,
	usedAt *time.Time,
	usedForProgramID *uuid.UUID,
	usedBy *UsedBy,
	allowedProgramIDs []uuid.UUID,
	excludedProgramID, sourcePurchaseID *uuid.UUID,
	expiresAt *time.Time,
	createdAt, updatedAt time.Time,
) *PromoCode {
	return &PromoCode{
		id:                id,
		code:              code,
		typ:               typ,
		discountCents:     discountCents,
		discountPercent:   discountPercent,
		isGeneral:         isGeneral,
		ownerID:           ownerID,
		isUsed:            isUsed,
		isActive:          isActive,
		usedAt:            usedAt,
		usedForProgramID:  usedForProgramID,
		usedBy:            usedBy,
		allowedProgramIDs: allowedProgramIDs,
		excludedProgramID: excludedProgramID,
		sourcePurchaseID:  sourcePurchaseID,
		expiresAt:         expiresAt,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}
