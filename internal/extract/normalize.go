package extract

import (
	"strconv"
	"strings"
)

// NormalizeRate canonicalizes a rate value or string to a fixed-point key
// with trailing zeros stripped, so "2.700" and "2.7" compare equal
// everywhere the rate is used as a lookup key.
func NormalizeRate(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	return trimRateString(s)
}

// NormalizeRateString canonicalizes a textual rate ("4.50", "4.5000").
// Unparseable input returns the trimmed original, which will simply never
// match a real key.
func NormalizeRateString(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	return NormalizeRate(v)
}

func trimRateString(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// RateVariants returns the textual forms of a rate that may appear in a
// document: the canonical form plus common fixed-precision renderings
// ("4.5", "4.50", "4.500").
func RateVariants(v float64) []string {
	canonical := NormalizeRate(v)
	variants := []string{canonical}
	for _, prec := range []int{2, 3} {
		s := strconv.FormatFloat(v, 'f', prec, 64)
		if s != canonical {
			variants = append(variants, s)
		}
	}
	return variants
}
