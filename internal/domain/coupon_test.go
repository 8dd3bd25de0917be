package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCouponCode(t *testing.T) {
	assert.Equal(t, "SAVE20", NormalizeCouponCode("save20"))
	assert.Equal(t, "SAVE20", NormalizeCouponCode("  Save20  "))
	assert.Equal(t, "", NormalizeCouponCode("   "))
}

func TestCoupon_IsExhausted(t *testing.T) {
	unlimited := &Coupon{CurrentUses: 1000}
	assert.False(t, unlimited.IsExhausted())

	limit := 5
	capped := &Coupon{MaxUses: &limit, CurrentUses: 4}
	assert.False(t, capped.IsExhausted())
	capped.CurrentUses = 5
	assert.True(t, capped.IsExhausted())
}

func TestCoupon_IsExpiredAt(t *testing.T) {
	now := time.Now().UTC()

	evergreen := &Coupon{}
	assert.False(t, evergreen.IsExpiredAt(now))

	future := now.Add(time.Hour)
	assert.False(t, (&Coupon{ExpiresAt: &future}).IsExpiredAt(now))

	past := now.Add(-time.Hour)
	assert.True(t, (&Coupon{ExpiresAt: &past}).IsExpiredAt(now))
}

func TestIsValidCouponType(t *testing.T) {
	assert.True(t, IsValidCouponType(CouponTypePercentage))
	assert.True(t, IsValidCouponType(CouponTypeFixedAmount))
	assert.False(t, IsValidCouponType("BOGO"))
}
