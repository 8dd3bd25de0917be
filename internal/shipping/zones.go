package shipping

// Zone is a geographic grouping used to price shipping via a base rate and
// multiplier. Zone resolution is total: countries that match no configured
// zone fall back to the default (highest-cost) rest-of-world zone.
type Zone struct {
	ID             string   `json:"id"`
	Countries      []string `json:"countries"`
	BaseRate       float64  `json:"base_rate"`
	RateMultiplier float64  `json:"rate_multiplier"`
	Domestic       bool     `json:"domestic"`
}

// DefaultZones returns the built-in zone table. The last entry is the
// rest-of-world default used for unmatched countries.
func DefaultZones() []Zone {
	return []Zone{
		{
			ID:             "zone-domestic",
			Countries:      []string{"US"},
			BaseRate:       10.00,
			RateMultiplier: 1.0,
			Domestic:       true,
		},
		{
			ID:             "zone-north-america",
			Countries:      []string{"CA", "MX"},
			BaseRate:       15.00,
			RateMultiplier: 1.2,
		},
		{
			ID:             "zone-europe",
			Countries:      []string{"GB", "DE", "FR", "IT", "ES", "NL", "BE", "SE", "PL"},
			BaseRate:       18.00,
			RateMultiplier: 1.4,
		},
		{
			ID:             "zone-asia-pacific",
			Countries:      []string{"JP", "KR", "SG", "AU", "NZ", "IN"},
			BaseRate:       22.00,
			RateMultiplier: 1.6,
		},
		{
			ID:             "zone-rest-of-world",
			Countries:      nil,
			BaseRate:       28.00,
			RateMultiplier: 2.0,
		},
	}
}

// ResolveZone returns the zone whose country list contains countryCode, or
// the default zone when no zone matches. It never fails.
func (e *Engine) ResolveZone(countryCode string) Zone {
	for _, z := range e.zones {
		for _, c := range z.Countries {
			if c == countryCode {
				return z
			}
		}
	}
	return e.defaultZone
}
