package match

import (
	"context"
	"strings"

	"github.com/sells-group/debtlink/internal/model"
)

// ExactName matches when the instrument's full name appears verbatim in a
// candidate document's title or content. Comparison is case-insensitive
// with whitespace collapsed, since filing text re-wraps lines arbitrarily.
type ExactName struct{}

func (ExactName) Method() model.MatchMethod { return model.MethodExactName }

func (ExactName) Score(_ context.Context, inst *model.Instrument, docs []model.Document) (*Result, error) {
	needle := foldSpace(inst.Name)
	if needle == "" {
		return nil, nil
	}

	for i := range docs {
		doc := &docs[i]
		if strings.Contains(foldSpace(doc.Title), needle) || strings.Contains(foldSpace(doc.Content), needle) {
			return &Result{
				DocumentID: doc.ID,
				Method:     model.MethodExactName,
				Confidence: 1.0,
				Evidence: map[string]any{
					"matched_name": inst.Name,
				},
			}, nil
		}
	}
	return nil, nil
}

// foldSpace lowercases and collapses all whitespace runs to single spaces.
func foldSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
