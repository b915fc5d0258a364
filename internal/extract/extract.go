// Package extract pulls matchable identifiers out of free text: coupon
// rates, maturity years, facility keywords, and dollar amounts. Extraction
// is deliberately conservative — text with no reliable identifier yields
// empty fields, and the caller leaves the instrument unlinked rather than
// force-matching.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Identifiers is the result of running extraction over a text.
type Identifiers struct {
	// Rate is the coupon percentage (e.g. 4.5 for "4.50%"), nil when no
	// in-range rate was found.
	Rate *float64
	// MaturityYear is the four-digit year from a maturity context, 0 when
	// absent.
	MaturityYear int
	// FacilityKeywords holds the canonical facility terms found in the
	// text. A document may match several facility types at once.
	FacilityKeywords map[string]bool
	// AmountsCents lists every $X billion/million amount found, one per
	// tranche, in document order. Callers compare against sums of
	// candidate tranches, so the list is never reduced here.
	AmountsCents []int64
}

// ratePattern matches a decimal immediately followed by a percent sign,
// e.g. "4.50%" or "2.7 %".
var ratePattern = regexp.MustCompile(`(\d{1,2}(?:\.\d{1,4})?)\s*%`)

// rateContextWords are instrument-type words a rate must sit next to.
// Bare percentages elsewhere (ownership stakes, ratios) are ignored.
var rateContextWords = []string{"notes", "bonds", "debentures", "senior"}

// yearDuePattern matches a "due 2029"-style maturity mention, tolerating
// an intervening full date ("due June 1, 2029").
var yearDuePattern = regexp.MustCompile(`(?i)due\s+(?:[A-Za-z]+\s+\d{1,2},?\s+)?(20\d{2})`)

// yearMaturityPattern matches other maturity contexts: "maturing 2028",
// "maturity date of ... 2028", "matures in 2028".
var yearMaturityPattern = regexp.MustCompile(`(?i)matur\w*\s+(?:date\s+)?(?:of\s+|in\s+|on\s+)?(?:[A-Za-z]+\s+\d{1,2},?\s+)?(20\d{2})`)

// facilityPatterns maps canonical facility keywords to the regexes that
// detect them. Sub-variants (term loan A/B) also record the base keyword.
var facilityPatterns = map[string]*regexp.Regexp{
	"revolver":        regexp.MustCompile(`(?i)\brevolv(?:er|ing)\b`),
	"term_loan":       regexp.MustCompile(`(?i)\bterm\s+loan\b`),
	"term_loan_a":     regexp.MustCompile(`(?i)\bterm\s+loan\s+a\b|\btranche\s+a\s+term\b`),
	"term_loan_b":     regexp.MustCompile(`(?i)\bterm\s+loan\s+b\b|\btranche\s+b\s+term\b`),
	"abl":             regexp.MustCompile(`(?i)\babl\b|\basset[- ]based\b`),
	"delayed_draw":    regexp.MustCompile(`(?i)\bdelayed[- ]draw\b`),
	"credit_facility": regexp.MustCompile(`(?i)\bcredit\s+(?:facility|agreement)\b`),
}

// amountPattern matches "$1.5 billion" / "$750 million" style amounts.
var amountPattern = regexp.MustCompile(`(?i)\$\s*([\d,]+(?:\.\d+)?)\s*(billion|million)`)

const (
	minRate = 0.1
	maxRate = 20.0
)

// FromText extracts all identifier kinds from a document excerpt or
// instrument name.
func FromText(text string) Identifiers {
	return Identifiers{
		Rate:             ExtractRate(text),
		MaturityYear:     ExtractMaturityYear(text),
		FacilityKeywords: ExtractFacilityKeywords(text),
		AmountsCents:     ExtractAmountsCents(text),
	}
}

// ExtractRate returns the first percentage adjacent to an instrument-type
// word, rejecting values outside 0.1–20.0 so page numbers and section IDs
// never read as coupons.
func ExtractRate(text string) *float64 {
	lower := strings.ToLower(text)
	for _, loc := range ratePattern.FindAllStringSubmatchIndex(text, -1) {
		if !nearContextWord(lower, loc[0], loc[1]) {
			continue
		}
		raw := text[loc[2]:loc[3]]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if v < minRate || v > maxRate {
			continue
		}
		return &v
	}
	return nil
}

// nearContextWord reports whether an instrument-type word appears within
// 40 characters of the rate occurrence.
func nearContextWord(lower string, start, end int) bool {
	windowStart := start - 40
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := end + 40
	if windowEnd > len(lower) {
		windowEnd = len(lower)
	}
	window := lower[windowStart:windowEnd]
	for _, w := range rateContextWords {
		if strings.Contains(window, w) {
			return true
		}
	}
	return false
}

// ExtractMaturityYear returns the first four-digit 20xx year found in a
// "due ..." or maturity context, or 0.
func ExtractMaturityYear(text string) int {
	if m := yearDuePattern.FindStringSubmatch(text); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	if m := yearMaturityPattern.FindStringSubmatch(text); m != nil {
		if y, err := strconv.Atoi(m[1]); err == nil {
			return y
		}
	}
	return 0
}

// ExtractFacilityKeywords returns the set of canonical facility terms
// present in the text.
func ExtractFacilityKeywords(text string) map[string]bool {
	found := make(map[string]bool)
	for keyword, re := range facilityPatterns {
		if re.MatchString(text) {
			found[keyword] = true
		}
	}
	// Sub-variants imply the base facility type.
	if found["term_loan_a"] || found["term_loan_b"] {
		found["term_loan"] = true
	}
	return found
}

// ExtractAmountsCents returns every $X billion/million amount as integer
// cents, in document order.
func ExtractAmountsCents(text string) []int64 {
	var amounts []int64
	for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		var mult float64
		switch strings.ToLower(m[2]) {
		case "billion":
			mult = 1e9
		case "million":
			mult = 1e6
		}
		amounts = append(amounts, int64(v*mult*100+0.5))
	}
	return amounts
}
