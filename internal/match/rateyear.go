package match

import (
	"context"
	"strconv"
	"strings"

	"github.com/sells-group/debtlink/internal/extract"
	"github.com/sells-group/debtlink/internal/model"
)

// RateYear matches when the instrument's normalized coupon rate and its
// maturity year both appear in a candidate document, with the year
// occurrence inside a bounded window of the rate occurrence. The window
// keeps long indentures that mention many tranches from cross-matching.
type RateYear struct {
	// Window is the maximum distance in bytes between a rate occurrence
	// and a year occurrence. Zero means the default of 1000.
	Window int
}

const defaultRateYearWindow = 1000

func (RateYear) Method() model.MatchMethod { return model.MethodRateYear }

func (s RateYear) Score(_ context.Context, inst *model.Instrument, docs []model.Document) (*Result, error) {
	rate, year := instrumentRateYear(inst)
	if rate == nil || year == 0 {
		return nil, nil
	}

	window := s.Window
	if window <= 0 {
		window = defaultRateYearWindow
	}

	variants := extract.RateVariants(*rate)
	yearStr := strconv.Itoa(year)

	for i := range docs {
		doc := &docs[i]
		if rateYearCooccur(doc.Content, variants, yearStr, window) {
			return &Result{
				DocumentID: doc.ID,
				Method:     model.MethodRateYear,
				Confidence: 0.85,
				Evidence: map[string]any{
					"rate":          extract.NormalizeRate(*rate),
					"maturity_year": year,
				},
			}, nil
		}
	}
	return nil, nil
}

// instrumentRateYear resolves the coupon percentage and maturity year from
// structured fields, falling back to extraction from the free-text name.
func instrumentRateYear(inst *model.Instrument) (*float64, int) {
	rate := inst.CouponPct()
	if rate == nil {
		rate = extract.ExtractRate(inst.Name)
	}
	year := inst.MaturityYear()
	if year == 0 {
		year = extract.ExtractMaturityYear(inst.Name)
	}
	return rate, year
}

// rateYearCooccur reports whether any rate-variant occurrence (followed by
// a percent sign) sits within window bytes of a year occurrence.
func rateYearCooccur(content string, rateVariants []string, year string, window int) bool {
	var ratePositions []int
	for _, v := range rateVariants {
		ratePositions = append(ratePositions, occurrences(content, v+"%")...)
		ratePositions = append(ratePositions, occurrences(content, v+" %")...)
	}
	if len(ratePositions) == 0 {
		return false
	}

	yearPositions := occurrences(content, year)
	for _, rp := range ratePositions {
		for _, yp := range yearPositions {
			d := rp - yp
			if d < 0 {
				d = -d
			}
			if d <= window {
				return true
			}
		}
	}
	return false
}

// occurrences returns every index of needle in haystack.
func occurrences(haystack, needle string) []int {
	var out []int
	offset := 0
	for {
		i := strings.Index(haystack[offset:], needle)
		if i < 0 {
			return out
		}
		out = append(out, offset+i)
		offset += i + len(needle)
	}
}
