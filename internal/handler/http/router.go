package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oakmart/checkout-engine/pkg/health"
	"github.com/oakmart/checkout-engine/pkg/middleware"

	"github.com/oakmart/checkout-engine/internal/coupon"
	"github.com/oakmart/checkout-engine/internal/service"
	"github.com/oakmart/checkout-engine/internal/shipping"
)

// NewRouter creates a chi router with all checkout engine routes registered.
func NewRouter(
	checkoutService *service.CheckoutService,
	ledger *coupon.Ledger,
	engine *shipping.Engine,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("checkout-engine"))

	// Health check and metrics endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	checkoutHandler := NewCheckoutHandler(checkoutService, logger)
	couponHandler := NewCouponHandler(ledger, logger)
	shippingHandler := NewShippingHandler(engine, logger)

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/preview", checkoutHandler.PreviewOrder)
		r.Post("/", checkoutHandler.CreateCheckout)
		r.Get("/{id}", checkoutHandler.GetCheckout)
		r.Post("/{id}/complete", checkoutHandler.CompleteCheckout)
		r.Post("/{id}/expire", checkoutHandler.ExpireCheckout)
		r.Post("/{id}/fail", checkoutHandler.FailCheckout)
	})

	r.Route("/api/v1/coupons", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", couponHandler.CreateCoupon)
		r.Post("/{code}/validate", couponHandler.ValidateCoupon)
	})

	r.Route("/api/v1/shipping", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/options", shippingHandler.GetOptions)
	})

	// Operational endpoint used by the expiry sweeper.
	r.Post("/internal/v1/checkout/expire-due", checkoutHandler.ExpireDue)

	return r
}
