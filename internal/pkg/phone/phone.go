// Package phone normalizes phone numbers typed into the contact form.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// unknownRegion makes the parser accept only numbers carrying a "+" prefix.
const unknownRegion = "ZZ"

// Normalize returns the E.164 form of raw when it parses as a valid number
// for region (an ISO country code, possibly empty). Otherwise the trimmed
// input is returned unchanged with ok=false.
func Normalize(raw, region string) (normalized string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = unknownRegion
	}

	parsed, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return raw, false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}

// Region reports the country a valid number belongs to.
func Region(raw string) string {
	parsed, err := phonenumbers.Parse(strings.TrimSpace(raw), unknownRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(parsed)
}
