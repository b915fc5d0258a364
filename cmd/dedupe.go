package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/dedupe"
)

var (
	dedupeCompanyID int64
	dedupeDryRun    bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Merge duplicate instrument extractions",
	Long:  "Groups instruments by identity keys, keeps the most complete record of each group, merges missing fields from the rest, and deactivates the duplicates. Divergent-issuer groups are reported for manual review instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		rs, err := loadRules()
		if err != nil {
			return err
		}

		d := dedupe.New(s, rs)
		d.DryRun = dedupeDryRun || cfg.Dedupe.DryRun
		d.MaxConcurrentCompanies = cfg.Batch.MaxConcurrentCompanies

		companies, err := resolveCompanies(ctx, s, dedupeCompanyID)
		if err != nil {
			return err
		}

		reports, err := d.DedupeAll(ctx, companies)
		if err != nil {
			return eris.Wrap(err, "dedupe run")
		}

		var merged, review int
		for _, r := range reports {
			merged += len(r.Merged)
			review += len(r.ManualReview)
			for _, g := range r.ManualReview {
				zap.L().Warn("manual review required: issuers diverge",
					zap.Int64("company_id", r.CompanyID),
					zap.Int64("survivor_id", g.SurvivorID),
					zap.Int64s("duplicate_ids", g.DuplicateIDs),
				)
			}
		}

		zap.L().Info("dedupe complete",
			zap.Int("companies", len(reports)),
			zap.Int("merged_groups", merged),
			zap.Int("manual_review_groups", review),
			zap.Bool("dry_run", d.DryRun),
		)
		return nil
	},
}

func init() {
	dedupeCmd.Flags().Int64Var(&dedupeCompanyID, "company", 0, "limit to one company id (default all)")
	dedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", false, "plan merges without writing")
	rootCmd.AddCommand(dedupeCmd)
}
