package domain

import (
	"time"
)

// Checkout session status constants.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
	StatusFailed    = "failed"
)

// CheckoutSession is a time-boxed, immutable snapshot of a cart's computed
// totals awaiting payment completion. Once in a terminal state it is never
// mutated again.
type CheckoutSession struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	Status          string             `json:"status"`
	Items           []CartItemSnapshot `json:"items"`
	Totals          PriceTotals        `json:"totals"`
	DiscountCode    string             `json:"discount_code,omitempty"`
	ShippingAddress *Address           `json:"shipping_address,omitempty"`
	BillingAddress  *Address           `json:"billing_address,omitempty"`
	PaymentIntentID string             `json:"payment_intent_id,omitempty"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	ExpiresAt       time.Time          `json:"expires_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// CartItemSnapshot is one cart line frozen at checkout time.
type CartItemSnapshot struct {
	ProductID string         `json:"product_id"`
	Name      string         `json:"name"`
	UnitPrice float64        `json:"unit_price"`
	Quantity  int            `json:"quantity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// defaultUnitWeight is assumed when an item carries no weight metadata.
const defaultUnitWeight = 1.0

// Weight returns the item's unit weight from its metadata, defaulting to 1.0
// when absent or malformed. JSON round-tripping stores numbers as float64.
func (i CartItemSnapshot) Weight() float64 {
	if i.Metadata == nil {
		return defaultUnitWeight
	}
	switch w := i.Metadata["weight"].(type) {
	case float64:
		if w > 0 {
			return w
		}
	case int:
		if w > 0 {
			return float64(w)
		}
	}
	return defaultUnitWeight
}

// OrderWeight returns the total shipping weight of the items (unit weight ×
// quantity, summed).
func OrderWeight(items []CartItemSnapshot) float64 {
	var total float64
	for _, item := range items {
		total += item.Weight() * float64(item.Quantity)
	}
	return total
}

// PriceTotals is the authoritative monetary breakdown of an order. Every
// field is rounded to 2 decimal places at its derivation step.
type PriceTotals struct {
	Subtotal     float64 `json:"subtotal"`
	Tax          float64 `json:"tax"`
	ShippingCost float64 `json:"shipping_cost"`
	Discount     float64 `json:"discount"`
	Total        float64 `json:"total"`
}

// Address represents a shipping or billing address.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// IsExpired checks whether the session has passed its expiry time.
func (s *CheckoutSession) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// IsTerminal returns true if the session is in a final state.
func (s *CheckoutSession) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusExpired || s.Status == StatusFailed
}

// ValidStatuses returns the set of valid checkout session statuses.
func ValidStatuses() []string {
	return []string{
		StatusPending,
		StatusCompleted,
		StatusExpired,
		StatusFailed,
	}
}

// IsValidStatus checks whether the given status string is a valid session status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
