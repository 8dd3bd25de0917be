package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oakmart/checkout-engine/pkg/httpclient"

	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/money"
)

// DefaultTaxRate is the flat rate applied whenever the external tax provider
// cannot produce an answer. Tax lookup failures are never fatal to pricing.
const DefaultTaxRate = 0.10

// TaxProvider resolves the tax owed on a subtotal shipped to an address.
// The address may be nil when the caller has not collected one yet.
type TaxProvider interface {
	TaxAmount(ctx context.Context, subtotal float64, addr *domain.Address) (float64, error)
}

// FlatTaxProvider taxes every order at a fixed rate. It backs the fallback
// path and standalone deployments without a tax service.
type FlatTaxProvider struct {
	Rate float64
}

func (p FlatTaxProvider) TaxAmount(_ context.Context, subtotal float64, _ *domain.Address) (float64, error) {
	return money.Round2(subtotal * p.Rate), nil
}

type taxRequest struct {
	Subtotal   float64 `json:"subtotal"`
	Country    string  `json:"country,omitempty"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
}

type taxResponse struct {
	TaxAmount float64 `json:"tax_amount"`
}

// HTTPTaxProvider calls an external tax service through a circuit-broken
// client. The request carries its own deadline so a slow provider cannot
// stall a price calculation.
type HTTPTaxProvider struct {
	client  *httpclient.CircuitBreakerClient
	baseURL string
	timeout time.Duration
}

func NewHTTPTaxProvider(client *httpclient.CircuitBreakerClient, baseURL string, timeout time.Duration) *HTTPTaxProvider {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPTaxProvider{client: client, baseURL: baseURL, timeout: timeout}
}

func (p *HTTPTaxProvider) TaxAmount(ctx context.Context, subtotal float64, addr *domain.Address) (float64, error) {
	req := taxRequest{Subtotal: subtotal}
	if addr != nil {
		req.Country = addr.Country
		req.State = addr.State
		req.PostalCode = addr.PostalCode
	}
	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshaling tax request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Post(ctx, p.baseURL+"/v1/tax/calculate", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("calling tax provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, httpclient.ParseResponseError(resp, "tax-provider")
	}

	var out taxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding tax response: %w", err)
	}
	if err := money.NonNegative("tax amount", out.TaxAmount); err != nil {
		return 0, err
	}
	return money.Round2(out.TaxAmount), nil
}
