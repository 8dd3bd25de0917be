package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oakmart/checkout-engine/pkg/httputil"
	"github.com/oakmart/checkout-engine/pkg/validator"

	"github.com/oakmart/checkout-engine/internal/coupon"
	"github.com/oakmart/checkout-engine/internal/domain"
)

// CouponHandler handles HTTP requests for coupon endpoints.
type CouponHandler struct {
	ledger *coupon.Ledger
	logger *slog.Logger
}

func NewCouponHandler(ledger *coupon.Ledger, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{ledger: ledger, logger: logger}
}

// CreateCouponRequest is the JSON request body for creating a coupon.
type CreateCouponRequest struct {
	Code                  string     `json:"code" validate:"required"`
	Type                  string     `json:"type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT"`
	Value                 float64    `json:"value" validate:"required,gt=0"`
	ExpiresAt             *time.Time `json:"expires_at"`
	MaxUses               *int       `json:"max_uses"`
	IsActive              *bool      `json:"is_active"`
	MinimumPurchaseAmount *float64   `json:"minimum_purchase_amount"`
	ApplicableProducts    []string   `json:"applicable_products"`
}

// ValidateCouponRequest is the JSON request body for validating a coupon
// against a subtotal.
type ValidateCouponRequest struct {
	Subtotal float64 `json:"subtotal" validate:"gte=0"`
}

// CreateCoupon handles POST /api/v1/coupons
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	c := &domain.Coupon{
		Code:                  req.Code,
		Type:                  req.Type,
		Value:                 req.Value,
		ExpiresAt:             req.ExpiresAt,
		MaxUses:               req.MaxUses,
		IsActive:              active,
		MinimumPurchaseAmount: req.MinimumPurchaseAmount,
		ApplicableProducts:    req.ApplicableProducts,
	}
	if err := h.ledger.CreateCoupon(r.Context(), c); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: c})
}

// ValidateCoupon handles POST /api/v1/coupons/{code}/validate. A rejected
// coupon is a 200 with is_valid=false, not an error: the caller is asking a
// question, not redeeming.
func (h *CouponHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ValidateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.ledger.Validate(r.Context(), code, req.Subtotal)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
