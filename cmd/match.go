package main

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/match"
	"github.com/sells-group/debtlink/pkg/anthropic"
)

var (
	matchCompanyID   int64
	matchConcurrency int
	matchNoLLM       bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Link instruments to their governing documents",
	Long:  "Runs the strategy cascade (exact name, rate+year, facility amount, single-candidate shortcut, model-assisted fallback) over unlinked instruments and upserts accepted links.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !matchNoLLM {
			if err := cfg.Validate("match"); err != nil {
				return err
			}
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		rs, err := loadRules()
		if err != nil {
			return err
		}

		gen := match.NewGenerator(s, rs)
		if cfg.Match.MinDocumentChars > 0 {
			gen.MinContentChars = cfg.Match.MinDocumentChars
		}

		var llm *match.LLMAssisted
		if !matchNoLLM && !cfg.Match.DisableLLM {
			llm = match.NewLLMAssisted(anthropic.NewClient(cfg.Anthropic.Key), match.LLMOptions{
				Model:         cfg.Anthropic.Model,
				AcceptMin:     cfg.Match.LLMAcceptMin,
				ExcerptChars:  cfg.Anthropic.ExcerptChars,
				MaxConcurrent: int64(cfg.Anthropic.MaxConcurrent),
			})
		}

		engine := match.NewEngine(s, gen,
			match.RateYear{Window: cfg.Match.RateYearWindow},
			match.FacilityAmount{Tolerance: cfg.Match.AmountTolerance},
			llm,
		)
		engine.MaxConcurrentCompanies = cfg.Batch.MaxConcurrentCompanies
		if matchConcurrency > 0 {
			engine.MaxConcurrentCompanies = matchConcurrency
		}

		companies, err := resolveCompanies(ctx, s, matchCompanyID)
		if err != nil {
			return err
		}

		runID := uuid.NewString()
		zap.L().Info("match run starting",
			zap.String("run_id", runID),
			zap.Int("companies", len(companies)),
			zap.Bool("llm_enabled", llm != nil),
		)

		summary, err := engine.MatchAll(ctx, companies)
		if err != nil {
			return eris.Wrap(err, "match run")
		}

		zap.L().Info("match run complete",
			zap.String("run_id", runID),
			zap.Int("linked", summary.Succeeded),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
			zap.Any("reasons", summary.Reasons),
		)
		return nil
	},
}

func init() {
	matchCmd.Flags().Int64Var(&matchCompanyID, "company", 0, "limit to one company id (default all)")
	matchCmd.Flags().IntVar(&matchConcurrency, "concurrency", 0, "company-level parallelism (default from config)")
	matchCmd.Flags().BoolVar(&matchNoLLM, "no-llm", false, "skip the model-assisted fallback strategy")
	rootCmd.AddCommand(matchCmd)
}
