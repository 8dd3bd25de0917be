package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"

	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/repository"
)

// CouponRepository is the Postgres-backed coupon store. Usage counters are
// mutated only through conditional updates so concurrent redemptions across
// instances cannot exceed max_uses.
type CouponRepository struct {
	db DB
}

func NewCouponRepository(db DB) *CouponRepository {
	return &CouponRepository{db: db}
}

var _ repository.CouponRepository = (*CouponRepository)(nil)

func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, type, value, expires_at, max_uses, current_uses,
			is_active, minimum_purchase_amount, applicable_products,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.Code, c.Type, c.Value, c.ExpiresAt, c.MaxUses, c.CurrentUses,
		c.IsActive, c.MinimumPurchaseAmount, c.ApplicableProducts,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("coupon", "code", c.Code)
		}
		return fmt.Errorf("inserting coupon: %w", err)
	}
	return nil
}

func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `
		SELECT id, code, type, value, expires_at, max_uses, current_uses,
		       is_active, minimum_purchase_amount, applicable_products,
		       created_at, updated_at
		FROM coupons
		WHERE code = $1`

	var c domain.Coupon
	err := r.db.QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.ExpiresAt, &c.MaxUses, &c.CurrentUses,
		&c.IsActive, &c.MinimumPurchaseAmount, &c.ApplicableProducts,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("coupon", code)
		}
		return nil, fmt.Errorf("querying coupon: %w", err)
	}
	return &c, nil
}

// IncrementUses bumps current_uses through a guarded update. The guard and
// the increment execute as one statement, so two racing redemptions of the
// last slot cannot both succeed.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	query := `
		UPDATE coupons
		SET current_uses = current_uses + 1, updated_at = NOW()
		WHERE code = $1
		  AND is_active
		  AND (max_uses IS NULL OR current_uses < max_uses)`

	tag, err := r.db.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("incrementing coupon uses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("coupon %s: %w", code, apperrors.ErrCouponInvalid)
	}
	return nil
}

// DecrementUses returns a redemption to the pool, flooring at zero.
func (r *CouponRepository) DecrementUses(ctx context.Context, code string) error {
	query := `
		UPDATE coupons
		SET current_uses = GREATEST(current_uses - 1, 0), updated_at = NOW()
		WHERE code = $1`

	tag, err := r.db.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("decrementing coupon uses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("coupon", code)
	}
	return nil
}
