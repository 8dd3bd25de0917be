package shipping

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var estimatePattern = regexp.MustCompile(`^(\d+)-(\d+) business days$`)

// dayRange is the parsed form of an estimate string such as
// "3-5 business days".
type dayRange struct {
	min int
	max int
}

func parseEstimate(s string) (dayRange, error) {
	m := estimatePattern.FindStringSubmatch(s)
	if m == nil {
		return dayRange{}, fmt.Errorf("malformed delivery estimate %q", s)
	}
	lo, err := strconv.Atoi(m[1])
	if err != nil {
		return dayRange{}, fmt.Errorf("malformed delivery estimate %q: %w", s, err)
	}
	hi, err := strconv.Atoi(m[2])
	if err != nil {
		return dayRange{}, fmt.Errorf("malformed delivery estimate %q: %w", s, err)
	}
	if lo < 1 || hi < lo {
		return dayRange{}, fmt.Errorf("delivery estimate %q has invalid range", s)
	}
	return dayRange{min: lo, max: hi}, nil
}

// DeliveryWindow bounds the expected arrival of a shipment.
type DeliveryWindow struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// EstimateDelivery converts a method's estimate for the destination country
// into concrete dates. The bounding integers are added to now in calendar
// days; the "business days" wording in the estimate is presentational.
func (e *Engine) EstimateDelivery(method, countryCode string, now time.Time) (DeliveryWindow, error) {
	zone := e.ResolveZone(countryCode)
	spec, ok := e.methods[method]
	if !ok {
		return DeliveryWindow{}, fmt.Errorf("unknown shipping method %q", method)
	}
	r, ok := spec.ranges[zone.Domestic]
	if !ok {
		return DeliveryWindow{}, fmt.Errorf("shipping method %q not offered for destination %q", method, countryCode)
	}
	return DeliveryWindow{
		Earliest: now.AddDate(0, 0, r.min),
		Latest:   now.AddDate(0, 0, r.max),
	}, nil
}
