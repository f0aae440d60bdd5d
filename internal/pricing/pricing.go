// Package pricing computes the final chargeable amount for an enrollment.
// All amounts are integer minor currency units (cents).
package pricing

import (
	"math"
	"time"
)

// FinalPrice applies discounts to the full price. Fixed discounts
// (class-rep, early-bird, fixed promo) are subtracted first and the result
// floored at 0; the percentage promo discount is then applied
// multiplicatively to the remainder, rounded to the nearest cent, and
// floored at 0 again.
func FinalPrice(fullPriceCents, classRepDiscount, earlyBirdDiscount, promoDiscountCents int64, promoDiscountPercent float64) int64 {
	remainder := fullPriceCents - classRepDiscount - earlyBirdDiscount - promoDiscountCents
	if remainder < 0 {
		remainder = 0
	}
	if promoDiscountPercent > 0 {
		remainder = int64(math.Round(float64(remainder) * (100 - promoDiscountPercent) / 100))
	}
	if remainder < 0 {
		remainder = 0
	}
	return remainder
}

// EarlyBirdApplies reports whether the early-bird discount is active: "now"
// must be on or before the program's deadline. A nil deadline means the
// program has no early-bird pricing.
func EarlyBirdApplies(now time.Time, deadline *time.Time) bool {
	if deadline == nil {
		return false
	}
	return !now.After(*deadline)
}
