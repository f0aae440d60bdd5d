package promocode

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministry-platform/service-enrollment/internal/domain"
)

func TestNewStaffAccess(t *testing.T) {
	t.Run("valid personal code", func(t *testing.T) {
		ownerID := uuid.New()
		pc, err := NewStaffAccess("  staff10 ", 10, &ownerID, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "STAFF10", pc.Code())
		assert.Equal(t, TypeStaffAccess, pc.Type())
		assert.Equal(t, float64(10), pc.DiscountPercent())
		assert.False(t, pc.IsGeneral())
		assert.True(t, pc.IsActive())
	})

	t.Run("nil owner makes the code general", func(t *testing.T) {
		pc, err := NewStaffAccess("TEAM2026", 25, nil, nil, nil)
		require.NoError(t, err)
		assert.True(t, pc.IsGeneral())
	})

	t.Run("empty code rejected", func(t *testing.T) {
		_, err := NewStaffAccess("   ", 10, nil, nil, nil)
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.CodeValidation))
	})

	t.Run("percent out of range rejected", func(t *testing.T) {
		for _, percent := range []float64{0, -5, 101} {
			_, err := NewStaffAccess("X", percent, nil, nil, nil)
			assert.Error(t, err)
		}
	})
}

func TestNewBundle(t *testing.T) {
	ownerID := uuid.New()
	excluded := uuid.New()
	source := uuid.New()
	expires := time.Now().UTC().Add(90 * 24 * time.Hour)

	pc, err := NewBundle(ownerID, excluded, source, 1000, expires)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(pc.Code(), "BUNDLE-"))
	assert.Len(t, pc.Code(), len("BUNDLE-")+8)
	assert.Equal(t, TypeBundleDiscount, pc.Type())
	assert.Equal(t, int64(1000), pc.DiscountCents())
	assert.False(t, pc.IsGeneral())
	require.NotNil(t, pc.OwnerID())
	assert.Equal(t, ownerID, *pc.OwnerID())
	require.NotNil(t, pc.ExcludedProgramID())
	assert.Equal(t, excluded, *pc.ExcludedProgramID())
	require.NotNil(t, pc.SourcePurchaseID())
	assert.Equal(t, source, *pc.SourcePurchaseID())

	_, err = NewBundle(ownerID, excluded, source, 0, expires)
	assert.Error(t, err)
}

func TestBelongsTo(t *testing.T) {
	ownerID := uuid.New()
	other := uuid.New()

	personal, err := NewStaffAccess("PERSONAL", 10, &ownerID, nil, nil)
	require.NoError(t, err)
	assert.True(t, personal.BelongsTo(ownerID))
	assert.False(t, personal.BelongsTo(other))

	general, err := NewStaffAccess("GENERAL", 10, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, general.BelongsTo(ownerID))
	assert.True(t, general.BelongsTo(other))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	noExpiry, err := NewStaffAccess("FOREVER", 10, nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, noExpiry.IsExpired(now))

	past := now.Add(-time.Minute)
	expired, err := NewStaffAccess("OLD", 10, nil, nil, &past)
	require.NoError(t, err)
	assert.True(t, expired.IsExpired(now))

	// Expiry instant itself is still valid.
	exact, err := NewStaffAccess("EDGE", 10, nil, nil, &now)
	require.NoError(t, err)
	assert.False(t, exact.IsExpired(now))
}

func TestCanBeUsedForProgram(t *testing.T) {
	now := time.Now().UTC()
	programID := uuid.New()
	ownerID := uuid.New()

	t.Run("active unrestricted code is usable", func(t *testing.T) {
		pc, err := NewStaffAccess("OK", 10, &ownerID, nil, nil)
		require.NoError(t, err)
		assert.NoError(t, pc.CanBeUsedForProgram(programID, now))
	})

	t.Run("used personal code is rejected", func(t *testing.T) {
		pc, err := NewStaffAccess("USED", 10, &ownerID, nil, nil)
		require.NoError(t, err)
		require.NoError(t, pc.MarkUsed(uuid.New(), UsedBy{UserID: ownerID}))

		err = pc.CanBeUsedForProgram(programID, now)
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.CodeInvalidPromoCode))
	})

	t.Run("used general code remains usable", func(t *testing.T) {
		pc, err := NewStaffAccess("GENERAL", 10, nil, nil, nil)
		require.NoError(t, err)
		require.NoError(t, pc.MarkUsed(uuid.New(), UsedBy{UserID: ownerID}))
		assert.NoError(t, pc.CanBeUsedForProgram(programID, now))
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		past := now.Add(-time.Hour)
		pc, err := NewStaffAccess("EXPIRED", 10, &ownerID, nil, &past)
		require.NoError(t, err)
		assert.Error(t, pc.CanBeUsedForProgram(programID, now))
	})

	t.Run("excluded program is rejected", func(t *testing.T) {
		pc, err := NewBundle(ownerID, programID, uuid.New(), 1000, now.Add(time.Hour))
		require.NoError(t, err)

		assert.Error(t, pc.CanBeUsedForProgram(programID, now))
		assert.NoError(t, pc.CanBeUsedForProgram(uuid.New(), now))
	})

	t.Run("staff allowlist restricts programs", func(t *testing.T) {
		allowed := uuid.New()
		pc, err := NewStaffAccess("SCOPED", 10, &ownerID, []uuid.UUID{allowed}, nil)
		require.NoError(t, err)

		assert.NoError(t, pc.CanBeUsedForProgram(allowed, now))
		assert.Error(t, pc.CanBeUsedForProgram(uuid.New(), now))
	})
}

func TestMarkUsedAndRecover(t *testing.T) {
	ownerID := uuid.New()
	programID := uuid.New()

	pc, err := NewStaffAccess("ONCE", 10, &ownerID, nil, nil)
	require.NoError(t, err)

	by := UsedBy{UserID: ownerID, Name: "Jan", Email: "jan@example.com"}
	require.NoError(t, pc.MarkUsed(programID, by))

	assert.True(t, pc.IsUsed())
	assert.False(t, pc.IsActive(), "a consumed personal code deactivates")
	require.NotNil(t, pc.UsedForProgramID())
	assert.Equal(t, programID, *pc.UsedForProgramID())
	require.NotNil(t, pc.UsedBy())
	assert.Equal(t, "jan@example.com", pc.UsedBy().Email)

	// Double consumption of a personal code is rejected.
	err = pc.MarkUsed(uuid.New(), by)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeInvalidPromoCode))

	// Refund recovery makes the code redeemable again.
	pc.Recover()
	assert.False(t, pc.IsUsed())
	assert.True(t, pc.IsActive())
	assert.Nil(t, pc.UsedAt())
	assert.Nil(t, pc.UsedForProgramID())
	assert.Nil(t, pc.UsedBy())
	assert.NoError(t, pc.CanBeUsedForProgram(programID, time.Now().UTC()))
}

func TestMarkUsed_GeneralStaysActive(t *testing.T) {
	pc, err := NewStaffAccess("SHARED", 10, nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, pc.MarkUsed(uuid.New(), UsedBy{UserID: uuid.New()}))
	assert.True(t, pc.IsActive())

	require.NoError(t, pc.MarkUsed(uuid.New(), UsedBy{UserID: uuid.New()}))
	assert.True(t, pc.IsActive())
}

func TestGenerateBundleCode_Charset(t *testing.T) {
	for i := 0; i < 20; i++ {
		code := generateBundleCode()
		suffix := strings.TrimPrefix(code, "BUNDLE-")
		require.Len(t, suffix, 8)
		for _, r := range suffix {
			assert.Contains(t, bundleCodeAlphabet, string(r))
		}
	}
}
