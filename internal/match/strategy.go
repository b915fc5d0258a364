// Package match implements the ordered-strategy scorer that decides which
// legal document governs a debt instrument. Strategies run in strict
// precedence order; the first to accept wins and lower-precedence
// strategies are not attempted.
package match

import (
	"context"

	"github.com/sells-group/debtlink/internal/model"
)

// Result is an accepted match: the winning document plus the method,
// confidence, and evidence that produced it.
type Result struct {
	DocumentID int64
	Method     model.MatchMethod
	Confidence float64
	Evidence   map[string]any
}

// Strategy scores an instrument against the candidate documents of its
// routed category. A nil Result with nil error means the strategy found
// no acceptable match and the next strategy in precedence order runs.
type Strategy interface {
	Method() model.MatchMethod
	Score(ctx context.Context, inst *model.Instrument, docs []model.Document) (*Result, error)
}
