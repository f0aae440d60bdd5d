package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name         string
		fullPrice    int64
		classRep     int64
		earlyBird    int64
		promoAmount  int64
		promoPercent float64
		want         int64
	}{
		{
			name:      "no discounts",
			fullPrice: 10000,
			want:      10000,
		},
		{
			name:      "class rep and early bird",
			fullPrice: 10000,
			classRep:  1000,
			earlyBird: 500,
			want:      8500,
		},
		{
			name:         "class rep, early bird, and ten percent staff promo",
			fullPrice:    10000,
			classRep:     1000,
			earlyBird:    500,
			promoPercent: 10,
			want:         7650,
		},
		{
			name:        "fixed discounts exceed full price floors at zero",
			fullPrice:   1000,
			classRep:    800,
			earlyBird:   300,
			promoAmount: 500,
			want:        0,
		},
		{
			name:         "percent applies after fixed discounts",
			fullPrice:    10000,
			promoAmount:  2000,
			promoPercent: 50,
			want:         4000,
		},
		{
			name:         "full percentage discount yields zero",
			fullPrice:    10000,
			promoPercent: 100,
			want:         0,
		},
		{
			name:         "rounding to nearest cent",
			fullPrice:    999,
			promoPercent: 10,
			// 999 * 0.9 = 899.1, rounds to 899
			want: 899,
		},
		{
			name:         "rounding half up",
			fullPrice:    1005,
			promoPercent: 50,
			// 1005 * 0.5 = 502.5, rounds to 503
			want: 503,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalPrice(tt.fullPrice, tt.classRep, tt.earlyBird, tt.promoAmount, tt.promoPercent)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFinalPrice_NeverNegative(t *testing.T) {
	got := FinalPrice(100, 500, 500, 500, 99)
	assert.GreaterOrEqual(t, got, int64(0))
}

func TestEarlyBirdApplies(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("nil deadline never applies", func(t *testing.T) {
		assert.False(t, EarlyBirdApplies(now, nil))
	})

	t.Run("before deadline applies", func(t *testing.T) {
		deadline := now.Add(24 * time.Hour)
		assert.True(t, EarlyBirdApplies(now, &deadline))
	})

	t.Run("exactly at deadline applies", func(t *testing.T) {
		deadline := now
		assert.True(t, EarlyBirdApplies(now, &deadline))
	})

	t.Run("after deadline does not apply", func(t *testing.T) {
		deadline := now.Add(-time.Second)
		assert.False(t, EarlyBirdApplies(now, &deadline))
	})
}
