package match

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/store"
)

// Engine runs the matching pipeline: candidate generation, strategy
// precedence, and link persistence. Companies are independent, so the
// batch runs them in parallel; within a company the only write is the
// final link upsert, which the store makes idempotent.
type Engine struct {
	store      store.Store
	generator  *Generator
	strategies []Strategy

	// MaxConcurrentCompanies bounds company-level parallelism. Zero
	// means the default of 5.
	MaxConcurrentCompanies int
}

// NewEngine assembles the engine with strategies in precedence order.
// Pass a nil llm to run heuristics only.
func NewEngine(s store.Store, gen *Generator, rateYear RateYear, facility FacilityAmount, llm *LLMAssisted) *Engine {
	strategies := []Strategy{
		ExactName{},
		rateYear,
		facility,
		SingleCandidate{},
	}
	if llm != nil {
		strategies = append(strategies, llm)
	}
	return &Engine{store: s, generator: gen, strategies: strategies}
}

// MatchCompany evaluates every unlinked active instrument of one company.
// Per-instrument failures are isolated and counted, never fatal.
func (e *Engine) MatchCompany(ctx context.Context, companyID int64) (model.BatchSummary, error) {
	var summary model.BatchSummary

	instruments, err := e.store.ListUnlinkedInstruments(ctx, companyID)
	if err != nil {
		return summary, eris.Wrapf(err, "match: list unlinked instruments for company %d", companyID)
	}

	for i := range instruments {
		inst := &instruments[i]
		created, reason, err := e.matchInstrument(ctx, inst)
		switch {
		case err != nil:
			summary.Failed++
			summary.AddReason("error")
			zap.L().Error("instrument match failed",
				zap.Int64("company_id", companyID),
				zap.Int64("instrument_id", inst.ID),
				zap.Error(err),
			)
		case reason != "":
			summary.Skipped++
			summary.AddReason(reason)
		case created:
			summary.Succeeded++
		default:
			// Re-run over an already-linked pair, or no strategy accepted.
			summary.Skipped++
			summary.AddReason("unmatched")
		}
	}

	return summary, nil
}

// matchInstrument runs the strategy cascade for one instrument. Returns
// whether a link row was created and a skip reason when out of scope.
func (e *Engine) matchInstrument(ctx context.Context, inst *model.Instrument) (bool, string, error) {
	docs, category, skipReason, err := e.generator.Candidates(ctx, inst)
	if err != nil {
		return false, "", err
	}
	if skipReason != "" {
		return false, skipReason, nil
	}

	for _, strategy := range e.strategies {
		input := docs
		if strategy.Method() == model.MethodSingleCA {
			// The shortcut counts every same-category document; a stub
			// must not make a two-document category look unique.
			input = category
		}
		result, err := strategy.Score(ctx, inst, input)
		if err != nil {
			return false, "", eris.Wrapf(err, "match: strategy %s", strategy.Method())
		}
		if result == nil {
			continue
		}

		created, err := e.store.UpsertLink(ctx, &model.Link{
			InstrumentID:     inst.ID,
			DocumentID:       result.DocumentID,
			RelationshipType: model.RelGoverns,
			Method:           result.Method,
			Confidence:       result.Confidence,
			Evidence:         result.Evidence,
		})
		if err != nil {
			return false, "", err
		}

		zap.L().Info("link accepted",
			zap.Int64("instrument_id", inst.ID),
			zap.Int64("document_id", result.DocumentID),
			zap.String("method", string(result.Method)),
			zap.Float64("confidence", result.Confidence),
			zap.Bool("created", created),
		)
		return created, "", nil
	}

	// Extraction ambiguity: leave unlinked, never force-match.
	return false, "", nil
}

// MatchAll runs MatchCompany across companies with bounded parallelism.
// One bad company never aborts the run.
func (e *Engine) MatchAll(ctx context.Context, companyIDs []int64) (model.BatchSummary, error) {
	limit := e.MaxConcurrentCompanies
	if limit <= 0 {
		limit = 5
	}

	var (
		mu    sync.Mutex
		total model.BatchSummary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, companyID := range companyIDs {
		g.Go(func() error {
			summary, err := e.MatchCompany(ctx, companyID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				total.Failed++
				total.AddReason("company_error")
				zap.L().Error("company match failed",
					zap.Int64("company_id", companyID),
					zap.Error(err),
				)
				return nil
			}
			total.Merge(summary)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total, eris.Wrap(err, "match: batch")
	}
	return total, nil
}
