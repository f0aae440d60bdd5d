package promocode

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for promo codes.
type Repository interface {
	Save(ctx context.Context, p *PromoCode) error
	Update(ctx context.Context, p *PromoCode) error
	FindByCode(ctx context.Context, code string) (*PromoCode, error)
	FindByID(ctx context.Context, id uuid.UUID) (*PromoCode, error)
	// FindBySourcePurchase returns the bundle code spawned from a purchase.
	FindBySourcePurchase(ctx context.Context, purchaseID uuid.UUID) (*PromoCode, error)
	// ListActive returns all currently redeemable codes (admin).
	ListActive(ctx context.Context) ([]*PromoCode, error)
	// Delete removes a code outright (bundle codes of refunded purchases).
	Delete(ctx context.Context, id uuid.UUID) error
}
