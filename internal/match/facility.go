package match

import (
	"context"
	"math"
	"sort"

	"github.com/sells-group/debtlink/internal/extract"
	"github.com/sells-group/debtlink/internal/model"
)

// FacilityAmount matches credit facilities by keyword overlap plus a
// commitment amount inside a tolerance band. The band absorbs amendments
// that resized the facility after the instrument record was extracted.
// Confidence grades from 0.8 (exact amount) down to 0.6 (band edge).
type FacilityAmount struct {
	// Tolerance is the relative amount band, e.g. 0.20 for ±20%.
	// Zero means the default of 0.20.
	Tolerance float64
}

const defaultAmountTolerance = 0.20

// creditFacilityTypes limits this strategy to loan-side instruments.
// Indenture-governed paper never matches on facility keywords.
var creditFacilityTypes = map[model.InstrumentType]bool{
	model.TypeRevolver:       true,
	model.TypeTermLoan:       true,
	model.TypeTermLoanA:      true,
	model.TypeTermLoanB:      true,
	model.TypeABL:            true,
	model.TypeCreditFacility: true,
}

func (FacilityAmount) Method() model.MatchMethod { return model.MethodFacilityAmount }

func (s FacilityAmount) Score(_ context.Context, inst *model.Instrument, docs []model.Document) (*Result, error) {
	if !creditFacilityTypes[inst.Type] {
		return nil, nil
	}

	instKeywords := extract.ExtractFacilityKeywords(inst.Name)
	// The type itself implies a keyword even when the name is generic.
	instKeywords[string(inst.Type)] = true

	amount := instrumentAmount(inst)
	if amount == 0 {
		return nil, nil
	}

	tolerance := s.Tolerance
	if tolerance <= 0 {
		tolerance = defaultAmountTolerance
	}

	for i := range docs {
		doc := &docs[i]
		docKeywords := extract.ExtractFacilityKeywords(doc.Content)
		shared := intersectKeywords(instKeywords, docKeywords)
		if len(shared) == 0 {
			continue
		}

		best, ok := closestAmount(extract.ExtractAmountsCents(doc.Content), amount, tolerance)
		if !ok {
			continue
		}

		relDiff := math.Abs(float64(best-amount)) / float64(amount)
		confidence := 0.8 - 0.2*(relDiff/tolerance)

		return &Result{
			DocumentID: doc.ID,
			Method:     model.MethodFacilityAmount,
			Confidence: confidence,
			Evidence: map[string]any{
				"keywords":          shared,
				"instrument_cents":  amount,
				"document_cents":    best,
				"relative_diff_pct": relDiff * 100,
			},
		}, nil
	}
	return nil, nil
}

// instrumentAmount prefers the commitment (principal) over the drawn
// outstanding balance, since agreements state commitments.
func instrumentAmount(inst *model.Instrument) int64 {
	if inst.PrincipalCents != nil && *inst.PrincipalCents > 0 {
		return *inst.PrincipalCents
	}
	if inst.OutstandingCents != nil && *inst.OutstandingCents > 0 {
		return *inst.OutstandingCents
	}
	return 0
}

func intersectKeywords(a, b map[string]bool) []string {
	var shared []string
	for k := range a {
		if b[k] {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)
	return shared
}

// closestAmount returns the document amount nearest the target that falls
// within the tolerance band.
func closestAmount(amounts []int64, target int64, tolerance float64) (int64, bool) {
	var best int64
	bestDiff := math.Inf(1)
	for _, a := range amounts {
		diff := math.Abs(float64(a - target))
		if diff/float64(target) > tolerance {
			continue
		}
		if diff < bestDiff {
			bestDiff = diff
			best = a
		}
	}
	return best, !math.IsInf(bestDiff, 1)
}
