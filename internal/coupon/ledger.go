package coupon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"

	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/money"
	"github.com/oakmart/checkout-engine/internal/repository"
)

// Validation messages are part of the API contract and surface directly to
// shoppers. Checks run in a fixed order and short-circuit on the first
// failure so the message is deterministic.
const (
	msgNotFound     = "Coupon not found"
	msgInactive     = "Coupon is inactive"
	msgExpired      = "Coupon has expired"
	msgLimitReached = "Coupon usage limit reached"
)

// ValidationResult is the outcome of a soft coupon check. Coupon is set only
// when Valid is true.
type ValidationResult struct {
	Valid   bool           `json:"is_valid"`
	Message string         `json:"message,omitempty"`
	Coupon  *domain.Coupon `json:"coupon,omitempty"`
}

// Ledger validates, redeems and releases coupons. Redemption is a single
// conditional counter update in the repository, so concurrent redemptions of
// the same code cannot exceed its usage limit.
type Ledger struct {
	repo   repository.CouponRepository
	logger *slog.Logger
}

func NewLedger(repo repository.CouponRepository, logger *slog.Logger) *Ledger {
	return &Ledger{repo: repo, logger: logger}
}

// Validate runs the ordered coupon checks against the given subtotal without
// consuming usage. A failed check is a normal result, not an error; the error
// return is reserved for repository failures.
func (l *Ledger) Validate(ctx context.Context, code string, subtotal float64) (ValidationResult, error) {
	c, err := l.repo.GetByCode(ctx, domain.NormalizeCouponCode(code))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ValidationResult{Message: msgNotFound}, nil
		}
		return ValidationResult{}, fmt.Errorf("fetching coupon: %w", err)
	}
	if !c.IsActive {
		return ValidationResult{Message: msgInactive}, nil
	}
	if c.IsExpiredAt(time.Now().UTC()) {
		return ValidationResult{Message: msgExpired}, nil
	}
	if c.IsExhausted() {
		return ValidationResult{Message: msgLimitReached}, nil
	}
	if c.MinimumPurchaseAmount != nil && subtotal < *c.MinimumPurchaseAmount {
		return ValidationResult{Message: minimumPurchaseMessage(*c.MinimumPurchaseAmount)}, nil
	}
	return ValidationResult{Valid: true, Coupon: c}, nil
}

// DiscountAmount computes the discount a coupon grants on a subtotal.
// Fixed-amount coupons are capped at the subtotal so totals never go
// negative.
func DiscountAmount(c *domain.Coupon, subtotal float64) float64 {
	switch c.Type {
	case domain.CouponTypePercentage:
		return money.Round2(subtotal * c.Value / 100)
	case domain.CouponTypeFixedAmount:
		return money.Round2(money.Min(c.Value, subtotal))
	default:
		return 0
	}
}

// Apply redeems a coupon: it re-validates, then consumes one use through the
// repository's conditional increment. Any validation failure is returned as
// ErrCouponInvalid carrying the human-readable message. The increment itself
// can still lose a race for the last slot, which also maps to the usage
// limit message.
func (l *Ledger) Apply(ctx context.Context, code string, subtotal float64) (float64, *domain.Coupon, error) {
	normalized := domain.NormalizeCouponCode(code)
	result, err := l.Validate(ctx, normalized, subtotal)
	if err != nil {
		return 0, nil, err
	}
	if !result.Valid {
		return 0, nil, apperrors.CouponInvalid(result.Message)
	}

	if err := l.repo.IncrementUses(ctx, normalized); err != nil {
		if errors.Is(err, apperrors.ErrCouponInvalid) {
			return 0, nil, apperrors.CouponInvalid(msgLimitReached)
		}
		return 0, nil, fmt.Errorf("redeeming coupon %s: %w", normalized, err)
	}

	result.Coupon.CurrentUses++
	discount := DiscountAmount(result.Coupon, subtotal)
	l.logger.InfoContext(ctx, "coupon redeemed",
		slog.String("code", normalized),
		slog.Float64("discount", discount),
	)
	return discount, result.Coupon, nil
}

// Release returns one use to the coupon's pool, flooring at zero. It is a
// compensating action, not a rollback: the freed slot may be immediately
// consumed by another redemption.
func (l *Ledger) Release(ctx context.Context, code string) error {
	normalized := domain.NormalizeCouponCode(code)
	if err := l.repo.DecrementUses(ctx, normalized); err != nil {
		return fmt.Errorf("releasing coupon %s: %w", normalized, err)
	}
	l.logger.InfoContext(ctx, "coupon released", slog.String("code", normalized))
	return nil
}

// CreateCoupon validates and persists a new coupon. The code is normalized
// to uppercase so lookups are case-insensitive.
func (l *Ledger) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	c.Code = domain.NormalizeCouponCode(c.Code)
	if c.Code == "" {
		return apperrors.InvalidInput("coupon code is required")
	}
	if !domain.IsValidCouponType(c.Type) {
		return apperrors.InvalidInput(fmt.Sprintf("invalid coupon type %q", c.Type))
	}
	switch c.Type {
	case domain.CouponTypePercentage:
		if c.Value <= 0 || c.Value > 100 {
			return apperrors.InvalidInput("percentage value must be in (0, 100]")
		}
	case domain.CouponTypeFixedAmount:
		if c.Value <= 0 {
			return apperrors.InvalidInput("fixed amount value must be positive")
		}
	}
	if c.MaxUses != nil && *c.MaxUses < 1 {
		return apperrors.InvalidInput("max uses must be at least 1")
	}
	if c.MinimumPurchaseAmount != nil {
		if err := money.NonNegative("minimum purchase amount", *c.MinimumPurchaseAmount); err != nil {
			return err
		}
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CurrentUses = 0
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := l.repo.Create(ctx, c); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "coupon created",
		slog.String("code", c.Code),
		slog.String("type", c.Type),
	)
	return nil
}

func minimumPurchaseMessage(amount float64) string {
	return "Minimum purchase amount of " + strconv.FormatFloat(amount, 'f', -1, 64) + " required"
}
