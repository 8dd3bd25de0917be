package domain

import (
	"strings"
	"time"
)

// Coupon type constants.
const (
	CouponTypePercentage  = "PERCENTAGE"
	CouponTypeFixedAmount = "FIXED_AMOUNT"
)

// Coupon is a discount code with usage accounting. CurrentUses is the only
// field in the engine mutated by concurrent writers; it is only ever changed
// through the repository's conditional increment/decrement primitives.
type Coupon struct {
	ID                    string     `json:"id"`
	Code                  string     `json:"code"`
	Type                  string     `json:"type"`
	Value                 float64    `json:"value"`
	ExpiresAt             *time.Time `json:"expires_at,omitempty"`
	MaxUses               *int       `json:"max_uses,omitempty"`
	CurrentUses           int        `json:"current_uses"`
	IsActive              bool       `json:"is_active"`
	MinimumPurchaseAmount *float64   `json:"minimum_purchase_amount,omitempty"`
	ApplicableProducts    []string   `json:"applicable_products,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NormalizeCouponCode uppercases and trims a coupon code for lookup.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsExhausted reports whether the coupon's usage limit has been reached.
// A nil MaxUses means unlimited.
func (c *Coupon) IsExhausted() bool {
	return c.MaxUses != nil && c.CurrentUses >= *c.MaxUses
}

// IsExpiredAt reports whether the coupon is expired at the given instant.
// A nil ExpiresAt means the coupon never expires.
func (c *Coupon) IsExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// ValidCouponTypes returns the set of valid coupon types.
func ValidCouponTypes() []string {
	return []string{CouponTypePercentage, CouponTypeFixedAmount}
}

// IsValidCouponType checks whether the given type string is a valid coupon type.
func IsValidCouponType(t string) bool {
	for _, v := range ValidCouponTypes() {
		if v == t {
			return true
		}
	}
	return false
}
