package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"

	"github.com/oakmart/checkout-engine/internal/coupon"
	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/shipping"
)

type mockCouponRepo struct {
	mock.Mock
}

func (m *mockCouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepo) IncrementUses(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockCouponRepo) DecrementUses(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

type failingTaxProvider struct{}

func (failingTaxProvider) TaxAmount(context.Context, float64, *domain.Address) (float64, error) {
	return 0, errors.New("tax service unreachable")
}

func newTestCalculator(t *testing.T, tax TaxProvider, repo *mockCouponRepo) *Calculator {
	t.Helper()
	engine, err := shipping.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCalculator(tax, engine, coupon.NewLedger(repo, logger), logger)
}

func cartOf(unitPrice float64, qty int) []domain.CartItemSnapshot {
	return []domain.CartItemSnapshot{
		{ProductID: "p-1", Name: "Widget", UnitPrice: unitPrice, Quantity: qty},
	}
}

func TestPreview_NoAddressNoCoupon(t *testing.T) {
	calc := newTestCalculator(t, nil, &mockCouponRepo{})

	preview, err := calc.Preview(context.Background(), Request{
		UserID: "u-1",
		Items:  cartOf(25.00, 2),
	})
	require.NoError(t, err)

	assert.Equal(t, 50.00, preview.Totals.Subtotal)
	assert.Equal(t, 5.00, preview.Totals.Tax)
	assert.Equal(t, 10.00, preview.Totals.ShippingCost)
	assert.Equal(t, 0.00, preview.Totals.Discount)
	assert.Equal(t, 65.00, preview.Totals.Total)
}

func TestPreview_EmptyCart(t *testing.T) {
	calc := newTestCalculator(t, nil, &mockCouponRepo{})

	_, err := calc.Preview(context.Background(), Request{UserID: "u-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEmptyCart))
}

func TestPreview_NegativeUnitPrice(t *testing.T) {
	calc := newTestCalculator(t, nil, &mockCouponRepo{})

	_, err := calc.Preview(context.Background(), Request{
		UserID: "u-1",
		Items:  cartOf(-1.00, 1),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidAmount))
}

func TestPreview_FreeShippingAboveThreshold(t *testing.T) {
	calc := newTestCalculator(t, nil, &mockCouponRepo{})

	preview, err := calc.Preview(context.Background(), Request{
		UserID: "u-1",
		Items:  cartOf(60.00, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, 120.00, preview.Totals.Subtotal)
	assert.Equal(t, 0.00, preview.Totals.ShippingCost)
}

func TestPreview_AddressUsesZoneBasedShipping(t *testing.T) {
	calc := newTestCalculator(t, nil, &mockCouponRepo{})

	addr := &domain.Address{AddressLine: "1 Main St", City: "Atlanta", PostalCode: "30301", Country: "US"}
	preview, err := calc.Preview(context.Background(), Request{
		UserID:          "u-1",
		Items:           cartOf(25.00, 2),
		ShippingAddress: addr,
	})
	require.NoError(t, err)

	// Cheapest domestic option: STANDARD at 10.00 for the default unit weight
	// summed over 2 items.
	assert.Equal(t, 20.00, preview.Totals.ShippingCost)
}

func TestPreview_TaxProviderFailureFallsBack(t *testing.T) {
	calc := newTestCalculator(t, failingTaxProvider{}, &mockCouponRepo{})

	addr := &domain.Address{AddressLine: "1 Main St", City: "Atlanta", PostalCode: "30301", Country: "US"}
	preview, err := calc.Preview(context.Background(), Request{
		UserID:          "u-1",
		Items:           cartOf(25.00, 2),
		ShippingAddress: addr,
	})
	require.NoError(t, err)
	assert.Equal(t, 5.00, preview.Totals.Tax)
}

func TestPreview_InvalidCouponDegradesToZeroDiscount(t *testing.T) {
	repo := &mockCouponRepo{}
	repo.On("GetByCode", mock.Anything, "NOPE").Return(nil, apperrors.NotFound("coupon", "NOPE"))
	calc := newTestCalculator(t, nil, repo)

	preview, err := calc.Preview(context.Background(), Request{
		UserID:     "u-1",
		Items:      cartOf(25.00, 2),
		CouponCode: "NOPE",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.00, preview.Totals.Discount)
	assert.Equal(t, "Coupon not found", preview.CouponMessage)
	assert.Equal(t, 65.00, preview.Totals.Total)
	repo.AssertExpectations(t)
}

func TestPreview_ValidCouponApplied(t *testing.T) {
	repo := &mockCouponRepo{}
	repo.On("GetByCode", mock.Anything, "SAVE20").Return(&domain.Coupon{
		Code: "SAVE20", Type: domain.CouponTypePercentage, Value: 20, IsActive: true,
	}, nil)
	calc := newTestCalculator(t, nil, repo)

	preview, err := calc.Preview(context.Background(), Request{
		UserID:     "u-1",
		Items:      cartOf(25.00, 2),
		CouponCode: "save20",
	})
	require.NoError(t, err)
	assert.Equal(t, 10.00, preview.Totals.Discount)
	assert.Equal(t, 55.00, preview.Totals.Total)
	// Preview does not consume usage.
	repo.AssertNotCalled(t, "IncrementUses", mock.Anything, mock.Anything)
}

func TestPreview_IsDeterministic(t *testing.T) {
	calc := newTestCalculator(t, nil, &mockCouponRepo{})

	req := Request{UserID: "u-1", Items: cartOf(19.99, 3)}
	first, err := calc.Preview(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := calc.Preview(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Totals, again.Totals)
	}
}

func TestPriceAndRedeem_ConsumesCouponUse(t *testing.T) {
	repo := &mockCouponRepo{}
	repo.On("GetByCode", mock.Anything, "SAVE20").Return(&domain.Coupon{
		Code: "SAVE20", Type: domain.CouponTypePercentage, Value: 20, IsActive: true,
	}, nil)
	repo.On("IncrementUses", mock.Anything, "SAVE20").Return(nil)
	calc := newTestCalculator(t, nil, repo)

	preview, err := calc.PriceAndRedeem(context.Background(), Request{
		UserID:     "u-1",
		Items:      cartOf(25.00, 2),
		CouponCode: "SAVE20",
	})
	require.NoError(t, err)
	assert.Equal(t, 10.00, preview.Totals.Discount)
	repo.AssertExpectations(t)
}

func TestPriceAndRedeem_InvalidCouponFailsHard(t *testing.T) {
	repo := &mockCouponRepo{}
	repo.On("GetByCode", mock.Anything, "NOPE").Return(nil, apperrors.NotFound("coupon", "NOPE"))
	calc := newTestCalculator(t, nil, repo)

	_, err := calc.PriceAndRedeem(context.Background(), Request{
		UserID:     "u-1",
		Items:      cartOf(25.00, 2),
		CouponCode: "NOPE",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCouponInvalid))
}

func TestPriceAndRedeem_FixedCouponNeverExceedsSubtotal(t *testing.T) {
	repo := &mockCouponRepo{}
	repo.On("GetByCode", mock.Anything, "FLAT100").Return(&domain.Coupon{
		Code: "FLAT100", Type: domain.CouponTypeFixedAmount, Value: 100, IsActive: true,
	}, nil)
	repo.On("IncrementUses", mock.Anything, "FLAT100").Return(nil)
	calc := newTestCalculator(t, nil, repo)

	preview, err := calc.PriceAndRedeem(context.Background(), Request{
		UserID:     "u-1",
		Items:      cartOf(25.00, 2),
		CouponCode: "FLAT100",
	})
	require.NoError(t, err)
	assert.Equal(t, 50.00, preview.Totals.Discount)
	assert.GreaterOrEqual(t, preview.Totals.Total, 0.00)
}
