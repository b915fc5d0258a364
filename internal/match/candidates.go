package match

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/rules"
	"github.com/sells-group/debtlink/internal/store"
)

// Skip reasons reported in batch summaries.
const (
	SkipNoDocumentExpected = "no_document_expected"
	SkipUnclassifiable     = "unclassifiable_type"
	SkipNoCandidates       = "no_candidate_documents"
)

// Generator produces the candidate document list for an unlinked
// instrument: same company, category routed from the instrument type.
type Generator struct {
	store store.Store
	rules *rules.RuleSet

	// MinContentChars drops stub documents (cover pages, exhibit lists)
	// whose text is too short to match against.
	MinContentChars int
}

// NewGenerator builds a Generator over a store and ruleset.
func NewGenerator(s store.Store, rs *rules.RuleSet) *Generator {
	return &Generator{store: s, rules: rs, MinContentChars: 200}
}

// Candidates returns the plausible governing documents for an instrument:
// the matchable list with stubs removed, plus every same-category document
// so callers can count the category without the stub filter. A non-empty
// skip reason means the instrument is out of matching scope; an instrument
// expected to carry no document is never passed further.
func (g *Generator) Candidates(ctx context.Context, inst *model.Instrument) (matchable, category []model.Document, skip string, err error) {
	if reason, ok := g.rules.NoDocumentReason(inst); ok {
		return nil, nil, SkipNoDocumentExpected + ": " + reason, nil
	}

	cat, ok := g.rules.RouteCategory(inst.Type)
	if !ok {
		// Never default to a category: a wrong-category match is worse
		// than no match.
		return nil, nil, SkipUnclassifiable, nil
	}

	docs, err := g.store.ListDocumentsByCategory(ctx, inst.CompanyID, cat)
	if err != nil {
		return nil, nil, "", eris.Wrapf(err, "match: list candidates for instrument %d", inst.ID)
	}
	if len(docs) == 0 {
		return nil, nil, SkipNoCandidates, nil
	}

	matchable = make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.ContentLength >= g.MinContentChars || len(doc.Content) >= g.MinContentChars {
			matchable = append(matchable, doc)
		}
	}
	return matchable, docs, "", nil
}

// ExpectsNoDocument reports whether the instrument is excluded from
// matching and from adjusted coverage, with its single rule-based reason.
func (g *Generator) ExpectsNoDocument(inst *model.Instrument) (string, bool) {
	return g.rules.NoDocumentReason(inst)
}
