package shipping

import "regexp"

// Pincode validation is advisory. Countries without a configured pattern
// accept any value rather than rejecting addresses we cannot verify.
var pincodePatterns = map[string]*regexp.Regexp{
	"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
	"CA": regexp.MustCompile(`^[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d$`),
	"GB": regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]?\s?\d[A-Za-z]{2}$`),
	"DE": regexp.MustCompile(`^\d{5}$`),
	"FR": regexp.MustCompile(`^\d{5}$`),
	"IN": regexp.MustCompile(`^\d{6}$`),
	"AU": regexp.MustCompile(`^\d{4}$`),
	"JP": regexp.MustCompile(`^\d{3}-?\d{4}$`),
	"MX": regexp.MustCompile(`^\d{5}$`),
}

// ValidatePincode reports whether pincode is plausible for countryCode.
// Unknown countries always validate.
func ValidatePincode(countryCode, pincode string) bool {
	pattern, ok := pincodePatterns[countryCode]
	if !ok {
		return true
	}
	return pattern.MatchString(pincode)
}

// defaultPremiumPincodes lists high-demand delivery areas that carry a
// delivery surcharge.
func defaultPremiumPincodes() map[string]struct{} {
	codes := []string{
		"10001", "10011", "10012", // Manhattan
		"90210", "90211", // Beverly Hills
		"94105", "94107", // San Francisco SoMa
		"60611",          // Chicago Magnificent Mile
		"33109", "33139", // Miami Beach
	}
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// IsPremiumLocation reports whether pincode is in the premium surcharge set.
func (e *Engine) IsPremiumLocation(pincode string) bool {
	_, ok := e.premiumPincodes[pincode]
	return ok
}
