package domain

import (
	"regexp"
	"strings"
)

// VIN format: 17 alphanumeric characters, excluding I, O, Q.
var vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// NormalizeVIN upper-cases v and strips whitespace and separators.
func NormalizeVIN(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	return strings.NewReplacer(" ", "", "-", "").Replace(v)
}

// ValidVIN reports whether v is a well-formed 17-character VIN.
func ValidVIN(v string) bool {
	return vinRegex.MatchString(NormalizeVIN(v))
}

// CurrencyFor returns the display currency of a country, defaulting to USD.
func CurrencyFor(country string) string {
	switch strings.ToUpper(country) {
	case "CA":
		return "CAD"
	default:
		return "USD"
	}
}
