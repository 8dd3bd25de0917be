package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/oakmart/checkout-engine/pkg/httputil"
	"github.com/oakmart/checkout-engine/pkg/validator"

	"github.com/oakmart/checkout-engine/internal/shipping"
)

// ShippingHandler handles HTTP requests for shipping quotes.
type ShippingHandler struct {
	engine *shipping.Engine
	logger *slog.Logger
}

func NewShippingHandler(engine *shipping.Engine, logger *slog.Logger) *ShippingHandler {
	return &ShippingHandler{engine: engine, logger: logger}
}

// ShippingOptionsRequest is the JSON request body for quoting shipping
// options to a destination.
type ShippingOptionsRequest struct {
	Address     AddressRequest `json:"address" validate:"required"`
	OrderWeight float64        `json:"order_weight" validate:"gte=0"`
}

// GetOptions handles POST /api/v1/shipping/options
func (h *ShippingHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ShippingOptionsRequest
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

	options, err := h.engine.Options(req.Address.toDomain(), req.OrderWeight)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: options})
}
