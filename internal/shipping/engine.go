package shipping

import (
	"fmt"
	"sort"

	apperrors "github.com/oakmart/checkout-engine/pkg/errors"

	"github.com/oakmart/checkout-engine/internal/domain"
	"github.com/oakmart/checkout-engine/internal/money"
)

// Shipping methods. Domestic destinations are offered STANDARD, EXPRESS and
// OVERNIGHT; everywhere else gets STANDARD, EXPRESS and INTERNATIONAL.
const (
	MethodStandard      = "STANDARD"
	MethodExpress       = "EXPRESS"
	MethodOvernight     = "OVERNIGHT"
	MethodInternational = "INTERNATIONAL"
)

// premiumMultiplier is the surcharge applied to premium delivery pincodes.
const premiumMultiplier = 1.2

// FreeShippingThreshold and FlatShippingCost drive the threshold fallback
// used when no shipping address is available yet.
const (
	FreeShippingThreshold = 100.00
	FlatShippingCost      = 10.00
)

// Option is a priced shipping choice offered for a destination.
type Option struct {
	Method   string  `json:"method"`
	Carrier  string  `json:"carrier"`
	Cost     float64 `json:"cost"`
	Estimate string  `json:"estimate"`
	ZoneID   string  `json:"zone_id"`
}

type methodSpec struct {
	multiplier float64
	carriers   []string
	// estimates and ranges are keyed by the zone's Domestic flag. A method
	// absent for a key is not offered to that kind of destination.
	estimates map[bool]string
	ranges    map[bool]dayRange
}

// Engine computes shipping options from the zone table, the premium pincode
// set and the per-method rate multipliers.
type Engine struct {
	zones           []Zone
	defaultZone     Zone
	premiumPincodes map[string]struct{}
	methods         map[string]*methodSpec
	methodOrder     []string
	selector        CarrierSelector
}

// EngineOption customizes an Engine at construction time.
type EngineOption func(*Engine)

// WithZones replaces the built-in zone table. The last zone is used as the
// rest-of-world default.
func WithZones(zones []Zone) EngineOption {
	return func(e *Engine) {
		if len(zones) > 0 {
			e.zones = zones[:len(zones)-1]
			e.defaultZone = zones[len(zones)-1]
		}
	}
}

// WithPremiumPincodes replaces the premium surcharge pincode set.
func WithPremiumPincodes(codes []string) EngineOption {
	return func(e *Engine) {
		set := make(map[string]struct{}, len(codes))
		for _, c := range codes {
			set[c] = struct{}{}
		}
		e.premiumPincodes = set
	}
}

// WithCarrierSelector overrides the default first-candidate selector.
func WithCarrierSelector(s CarrierSelector) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.selector = s
		}
	}
}

// NewEngine builds a shipping engine. Estimate strings are parsed here so a
// malformed method table fails at startup rather than per request.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	zones := DefaultZones()
	e := &Engine{
		zones:           zones[:len(zones)-1],
		defaultZone:     zones[len(zones)-1],
		premiumPincodes: defaultPremiumPincodes(),
		selector:        FirstCarrierSelector{},
		methodOrder:     []string{MethodStandard, MethodExpress, MethodOvernight, MethodInternational},
		methods: map[string]*methodSpec{
			MethodStandard: {
				multiplier: 1.0,
				carriers:   []string{"UPS", "USPS", "FedEx"},
				estimates:  map[bool]string{true: "3-5 business days", false: "7-14 business days"},
			},
			MethodExpress: {
				multiplier: 1.5,
				carriers:   []string{"FedEx", "UPS"},
				estimates:  map[bool]string{true: "1-2 business days", false: "3-5 business days"},
			},
			MethodOvernight: {
				multiplier: 2.5,
				carriers:   []string{"FedEx"},
				estimates:  map[bool]string{true: "1-1 business days"},
			},
			MethodInternational: {
				multiplier: 2.0,
				carriers:   []string{"DHL", "FedEx"},
				estimates:  map[bool]string{false: "10-20 business days"},
			},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	for name, spec := range e.methods {
		spec.ranges = make(map[bool]dayRange, len(spec.estimates))
		for domestic, s := range spec.estimates {
			r, err := parseEstimate(s)
			if err != nil {
				return nil, fmt.Errorf("shipping method %s: %w", name, err)
			}
			spec.ranges[domestic] = r
		}
		if len(spec.carriers) == 0 {
			return nil, fmt.Errorf("shipping method %s has no carriers", name)
		}
	}
	return e, nil
}

// Options prices every shipping method available for the destination,
// sorted by ascending cost. Methods with equal cost keep their declaration
// order.
func (e *Engine) Options(addr *domain.Address, orderWeight float64) ([]Option, error) {
	if addr == nil {
		return nil, apperrors.InvalidInput("shipping address is required")
	}
	if !ValidatePincode(addr.Country, addr.PostalCode) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid pincode %q for country %s", addr.PostalCode, addr.Country))
	}
	if err := money.NonNegative("order weight", orderWeight); err != nil {
		return nil, err
	}
	if orderWeight == 0 {
		orderWeight = 1.0
	}

	zone := e.ResolveZone(addr.Country)
	premium := 1.0
	if e.IsPremiumLocation(addr.PostalCode) {
		premium = premiumMultiplier
	}

	options := make([]Option, 0, len(e.methodOrder))
	for _, name := range e.methodOrder {
		spec := e.methods[name]
		estimate, ok := spec.estimates[zone.Domestic]
		if !ok {
			continue
		}
		cost := money.Round2(zone.BaseRate * zone.RateMultiplier * premium * spec.multiplier * orderWeight)
		options = append(options, Option{
			Method:   name,
			Carrier:  e.selector.Select(name, spec.carriers),
			Cost:     cost,
			Estimate: estimate,
			ZoneID:   zone.ID,
		})
	}
	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Cost < options[j].Cost
	})
	return options, nil
}

// Cost prices a single named method for the destination.
func (e *Engine) Cost(addr *domain.Address, method string, orderWeight float64) (float64, error) {
	options, err := e.Options(addr, orderWeight)
	if err != nil {
		return 0, err
	}
	for _, o := range options {
		if o.Method == method {
			return o.Cost, nil
		}
	}
	return 0, apperrors.InvalidInput(fmt.Sprintf("shipping method %q not available for country %s", method, addr.Country))
}

// CostByThreshold is the address-less fallback: free shipping at or above
// the threshold, a flat rate below it.
func CostByThreshold(subtotal float64) float64 {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	return FlatShippingCost
}
