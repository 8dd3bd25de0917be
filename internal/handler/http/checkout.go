package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oakmart/checkout-engine/pkg/httputil"
	"github.com/oakmart/checkout-engine/pkg/validator"

	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/service"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CheckoutRequest is the JSON request body for previewing or creating a
// checkout session.
type CheckoutRequest struct {
	Items           []CartItemRequest `json:"items" validate:"required,min=1,dive"`
	CouponCode      string            `json:"coupon_code"`
	ShippingAddress *AddressRequest   `json:"shipping_address"`
	BillingAddress  *AddressRequest   `json:"billing_address"`
}

// CartItemRequest represents a single item in a checkout request.
type CartItemRequest struct {
	ProductID string         `json:"product_id" validate:"required"`
	Name      string         `json:"name" validate:"required"`
	UnitPrice float64        `json:"unit_price" validate:"gte=0"`
	Quantity  int            `json:"quantity" validate:"required,gt=0"`
	Metadata  map[string]any `json:"metadata"`
}

// AddressRequest is the JSON shape of a shipping or billing address.
type AddressRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	AddressLine string `json:"address_line" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code" validate:"required"`
	Country     string `json:"country" validate:"required,len=2"`
	Phone       string `json:"phone"`
}

// CompleteCheckoutRequest is the JSON request body for completing a session.
type CompleteCheckoutRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// FailCheckoutRequest is the JSON request body for failing a session.
type FailCheckoutRequest struct {
	Reason string `json:"reason"`
}

func (r CheckoutRequest) toInput(userID string) service.CreateSessionInput {
	items := make([]domain.CartItemSnapshot, len(r.Items))
	for i, item := range r.Items {
		items[i] = domain.CartItemSnapshot{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Metadata:  item.Metadata,
		}
	}
	return service.CreateSessionInput{
		UserID:          userID,
		Items:           items,
		CouponCode:      r.CouponCode,
		ShippingAddress: r.ShippingAddress.toDomain(),
		BillingAddress:  r.BillingAddress.toDomain(),
	}
}

func (a *AddressRequest) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		FullName:    a.FullName,
		AddressLine: a.AddressLine,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		Country:     a.Country,
		Phone:       a.Phone,
	}
}

// --- Handlers ---

// PreviewOrder handles POST /api/v1/checkout/preview
func (h *CheckoutHandler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		writeMissingUserID(w)
		return
	}

	req, ok := decodeCheckoutRequest(w, r)
	if !ok {
		return
	}

	preview, err := h.service.Preview(r.Context(), req.toInput(userID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: preview})
}

// CreateCheckout handles POST /api/v1/checkout
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID := getUserID(r)
	if userID == "" {
		writeMissingUserID(w)
		return
	}

	req, ok := decodeCheckoutRequest(w, r)
	if !ok {
		return
	}

	session, err := h.service.Create(r.Context(), req.toInput(userID))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: session})
}

// GetCheckout handles GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "checkout id is required"},
		})
		return
	}

	session, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if !authorizeSession(w, r, session) {
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// CompleteCheckout handles POST /api/v1/checkout/{id}/complete
func (h *CheckoutHandler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CompleteCheckoutRequest
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

	session, err := h.service.Complete(r.Context(), id, req.PaymentIntentID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// ExpireCheckout handles POST /api/v1/checkout/{id}/expire
func (h *CheckoutHandler) ExpireCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Expire(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// FailCheckout handles POST /api/v1/checkout/{id}/fail
func (h *CheckoutHandler) FailCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req FailCheckoutRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
			})
			return
		}
	}

	if err := h.service.Fail(r.Context(), id, req.Reason); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExpireDue handles POST /internal/v1/checkout/expire-due. Invoked by the
// periodic sweeper, not exposed to shoppers.
func (h *CheckoutHandler) ExpireDue(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ExpireDue(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"expired": count}})
}

// --- Helpers ---

func decodeCheckoutRequest(w http.ResponseWriter, r *http.Request) (CheckoutRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return req, false
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return req, false
	}
	return req, true
}

// getUserID extracts the authenticated user ID set by the API gateway.
func getUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeMissingUserID(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "X-User-ID header is required"},
	})
}

// authorizeSession checks that the requesting user owns the checkout session.
// Returns true if authorized, false if it wrote an error response.
func authorizeSession(w http.ResponseWriter, r *http.Request, session *domain.CheckoutSession) bool {
	userID := getUserID(r)
	if userID == "" {
		writeMissingUserID(w)
		return false
	}
	if session.UserID != userID {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "you do not have access to this checkout session"},
		})
		return false
	}
	return true
}
