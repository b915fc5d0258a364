package match

import (
	"context"

	"github.com/sells-group/debtlink/internal/model"
)

// SingleCandidate fires when the company has exactly one document of the
// required category: that document is taken as the governing one. This
// resolves the long tail of generically named facilities ("Credit
// Facility", "Term Loan") that carry no distinguishing text.
type SingleCandidate struct{}

func (SingleCandidate) Method() model.MatchMethod { return model.MethodSingleCA }

func (SingleCandidate) Score(_ context.Context, _ *model.Instrument, docs []model.Document) (*Result, error) {
	if len(docs) != 1 {
		return nil, nil
	}
	return &Result{
		DocumentID: docs[0].ID,
		Method:     model.MethodSingleCA,
		Confidence: 0.85,
		Evidence: map[string]any{
			"sole_category_document": docs[0].Title,
		},
	}, nil
}
