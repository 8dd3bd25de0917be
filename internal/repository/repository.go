package repository

import (
	"context"
	"time"

	"github.com/oakmart/checkout-engine/internal/domain"
)

// CouponRepository persists coupons and their usage counters. Counter
// mutations are conditional so concurrent redemptions cannot exceed a
// coupon's usage limit.
type CouponRepository interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// IncrementUses atomically bumps current_uses when the coupon is active
	// and under its usage limit. It returns ErrCouponInvalid when the
	// conditional update matches no row.
	IncrementUses(ctx context.Context, code string) error

	// DecrementUses lowers current_uses, flooring at zero. Releasing an
	// unredeemed coupon is a no-op, not an error.
	DecrementUses(ctx context.Context, code string) error
}

// SessionRepository persists checkout sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.CheckoutSession) error
	GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error)
	Update(ctx context.Context, session *domain.CheckoutSession) error

	// ListExpired returns pending sessions whose expiry is before the cutoff,
	// capped at limit rows.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.CheckoutSession, error)
}
