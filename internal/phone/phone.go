// Package phone canonicalizes raw phone numbers into one comparable
// international form. The canonical string is the join key for conversation
// lookup, so normalization is pure and total: inconsistent output would
// silently fragment message history across duplicate threads.
package phone

import "strings"

// Default dialing plan applied when no country is configured.
const (
	DefaultCountryCode = "+61"
	DefaultTrunkPrefix = "0"
)

// Normalizer rewrites raw numbers against a single national dialing plan.
//
// Rules, in order:
//   - formatting characters (whitespace, dots, dashes, parentheses) are dropped
//   - a number already carrying "+" is kept as-is (digits only after the plus)
//   - a leading trunk digit is replaced by the country code
//   - anything else is treated as domestic and prefixed with the country code
//
// Normalize never fails and is idempotent: feeding its output back in returns
// the same string.
type Normalizer struct {
	CountryCode string // e.g. "+61"
	TrunkPrefix string // e.g. "0"
}

// NewNormalizer builds a Normalizer for the given country code, falling back
// to the default plan when countryCode is blank.
func NewNormalizer(countryCode string) Normalizer {
	cc := strings.TrimSpace(countryCode)
	if cc == "" {
		cc = DefaultCountryCode
	}
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	return Normalizer{CountryCode: cc, TrunkPrefix: DefaultTrunkPrefix}
}

// Normalize returns the canonical international form of raw.
func (n Normalizer) Normalize(raw string) string {
	plus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	digits := keepDigits(raw)
	if digits == "" {
		return ""
	}
	if plus {
		return "+" + digits
	}
	cc := n.CountryCode
	if cc == "" {
		cc = DefaultCountryCode
	}
	trunk := n.TrunkPrefix
	if trunk == "" {
		trunk = DefaultTrunkPrefix
	}
	if strings.HasPrefix(digits, strings.TrimPrefix(cc, "+")) {
		// Dialed with the country code but without "+" (e.g. "61412…").
		return "+" + digits
	}
	if strings.HasPrefix(digits, trunk) {
		return cc + digits[len(trunk):]
	}
	return cc + digits
}

// keepDigits strips everything except decimal digits.
func keepDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
