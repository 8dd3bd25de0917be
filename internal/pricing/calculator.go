package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"

	"github.com/oakmart/checkout-engine/internal/coupon"
	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/money"
	"github.com/oakmart/checkout-engine/internal/shipping"
)

// Request carries everything needed to price an order. CouponCode and
// ShippingAddress are optional.
type Request struct {
	UserID          string
	Items           []domain.CartItemSnapshot
	CouponCode      string
	ShippingAddress *domain.Address
}

// OrderPreview is the result of pricing a cart. CouponMessage is set when a
// supplied coupon was rejected and the discount degraded to zero.
type OrderPreview struct {
	Items         []domain.CartItemSnapshot `json:"items"`
	Totals        domain.PriceTotals        `json:"totals"`
	Coupon        *domain.Coupon            `json:"coupon,omitempty"`
	CouponMessage string                    `json:"coupon_message,omitempty"`
}

// Calculator turns a cart snapshot into authoritative order totals. Tax and
// shipping resolve concurrently once the subtotal is known; the discount is
// resolved last because it depends on the subtotal alone.
type Calculator struct {
	tax      TaxProvider
	shipping *shipping.Engine
	ledger   *coupon.Ledger
	logger   *slog.Logger
}

func NewCalculator(tax TaxProvider, engine *shipping.Engine, ledger *coupon.Ledger, logger *slog.Logger) *Calculator {
	return &Calculator{tax: tax, shipping: engine, ledger: ledger, logger: logger}
}

// Preview prices a cart with soft coupon handling: an invalid or unknown
// coupon degrades to zero discount with the rejection message attached,
// never failing the preview.
func (c *Calculator) Preview(ctx context.Context, req Request) (*OrderPreview, error) {
	subtotal, tax, shippingCost, err := c.base(ctx, req)
	if err != nil {
		return nil, err
	}

	preview := &OrderPreview{Items: req.Items}
	var discount float64
	if req.CouponCode != "" {
		result, err := c.ledger.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			c.logger.WarnContext(ctx, "coupon validation unavailable, pricing without discount",
				slog.String("code", req.CouponCode),
				slog.String("error", err.Error()),
			)
		} else if !result.Valid {
			c.logger.InfoContext(ctx, "coupon rejected in preview",
				slog.String("code", req.CouponCode),
				slog.String("reason", result.Message),
			)
			preview.CouponMessage = result.Message
		} else {
			discount = coupon.DiscountAmount(result.Coupon, subtotal)
			preview.Coupon = result.Coupon
		}
	}

	preview.Totals = combine(subtotal, tax, shippingCost, discount)
	return preview, nil
}

// PriceAndRedeem prices a cart with strict coupon handling: a supplied
// coupon is validated and redeemed atomically, and any coupon problem fails
// the whole calculation. Used when freezing totals into a checkout session.
func (c *Calculator) PriceAndRedeem(ctx context.Context, req Request) (*OrderPreview, error) {
	subtotal, tax, shippingCost, err := c.base(ctx, req)
	if err != nil {
		return nil, err
	}

	preview := &OrderPreview{Items: req.Items}
	var discount float64
	if req.CouponCode != "" {
		applied, cpn, err := c.ledger.Apply(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = applied
		preview.Coupon = cpn
	}

	preview.Totals = combine(subtotal, tax, shippingCost, discount)
	return preview, nil
}

// base validates the cart and resolves subtotal, tax and shipping cost.
func (c *Calculator) base(ctx context.Context, req Request) (subtotal, tax, shippingCost float64, err error) {
	if len(req.Items) == 0 {
		return 0, 0, 0, apperrors.EmptyCart()
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return 0, 0, 0, apperrors.InvalidInput(fmt.Sprintf("item %s has non-positive quantity", item.ProductID))
		}
		if err := money.NonNegative("unit price", item.UnitPrice); err != nil {
			return 0, 0, 0, err
		}
	}

	for _, item := range req.Items {
		subtotal += item.UnitPrice * float64(item.Quantity)
	}
	subtotal = money.Round2(subtotal)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tax = c.taxAmount(gctx, subtotal, req.ShippingAddress)
		return nil
	})
	g.Go(func() error {
		var serr error
		shippingCost, serr = c.shippingCost(req.ShippingAddress, req.Items, subtotal)
		return serr
	})
	if err := g.Wait(); err != nil {
		return 0, 0, 0, err
	}
	return subtotal, tax, shippingCost, nil
}

// taxAmount resolves tax through the configured provider and falls back to
// the flat default rate on any failure. The fallback is logged, never fatal.
func (c *Calculator) taxAmount(ctx context.Context, subtotal float64, addr *domain.Address) float64 {
	if c.tax == nil || addr == nil {
		return money.Round2(subtotal * DefaultTaxRate)
	}
	amount, err := c.tax.TaxAmount(ctx, subtotal, addr)
	if err != nil {
		c.logger.WarnContext(ctx, "tax provider failed, using default rate",
			slog.Float64("default_rate", DefaultTaxRate),
			slog.String("error", err.Error()),
		)
		return money.Round2(subtotal * DefaultTaxRate)
	}
	return amount
}

// shippingCost uses the zone-based engine when an address is available and
// the subtotal threshold fallback otherwise. The cheapest offered option is
// quoted.
func (c *Calculator) shippingCost(addr *domain.Address, items []domain.CartItemSnapshot, subtotal float64) (float64, error) {
	if addr == nil {
		return shipping.CostByThreshold(subtotal), nil
	}
	options, err := c.shipping.Options(addr, domain.OrderWeight(items))
	if err != nil {
		return 0, err
	}
	return options[0].Cost, nil
}

func combine(subtotal, tax, shippingCost, discount float64) domain.PriceTotals {
	total := money.Round2(subtotal + tax + shippingCost - discount)
	if total < 0 {
		total = 0
	}
	return domain.PriceTotals{
		Subtotal:     subtotal,
		Tax:          tax,
		ShippingCost: shippingCost,
		Discount:     discount,
		Total:        total,
	}
}
