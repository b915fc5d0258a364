package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/reconcile"
)

var reconcileCompanyID int64

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Classify companies by instrument-sum vs reported debt",
	Long:  "Compares each company's active-instrument sum to its latest positive reported total debt, buckets the gap, and flags anomalies. Diagnostic only; nothing is mutated.",
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

		r := reconcile.New(s, rs)
		if cfg.Reconcile.ScaleRatio > 0 {
			r.ScaleRatio = cfg.Reconcile.ScaleRatio
		}
		r.MaxConcurrentCompanies = cfg.Batch.MaxConcurrentCompanies

		companies, err := resolveCompanies(ctx, s, reconcileCompanyID)
		if err != nil {
			return err
		}

		snaps, summary, err := r.SnapshotAll(ctx, companies)
		if err != nil {
			return eris.Wrap(err, "reconcile run")
		}

		formatSnapshots(os.Stdout, snaps)

		zap.L().Info("reconcile complete",
			zap.Int("companies", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
		return nil
	},
}

// dollars renders integer cents as a grouped dollar amount.
func dollars(cents int64) string {
	p := message.NewPrinter(language.AmericanEnglish)
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}
	return p.Sprintf("$%d.%02d", whole, frac)
}

// formatSnapshots writes a tabular reconciliation report to w.
func formatSnapshots(out io.Writer, snaps []model.DebtSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tINSTRUMENT SUM\tREPORTED\tPERIOD\tCLASS\tANOMALIES")
	_, _ = fmt.Fprintln(w, "-------\t--------------\t--------\t------\t-----\t---------")

	for _, s := range snaps {
		period := s.FiscalPeriod
		if period == "" {
			period = "-"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.CompanyID,
			dollars(s.InstrumentSum),
			dollars(s.ReportedTotalDebt),
			period,
			s.Classification,
			strings.Join(s.Anomalies, ","),
		)
	}
	_ = w.Flush()
}

func init() {
	reconcileCmd.Flags().Int64Var(&reconcileCompanyID, "company", 0, "limit to one company id (default all)")
	rootCmd.AddCommand(reconcileCmd)
}
