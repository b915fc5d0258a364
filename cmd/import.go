package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/ingest"
	"github.com/sells-group/debtlink/internal/store"
)

var (
	importFile   string
	importSource string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a filing-extraction export into the store",
	Long:  "Reads a JSON export of companies, instruments, documents, and reported financials and bulk-upserts it. Re-importing the same file is a no-op.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		ps, ok := s.(*store.PostgresStore)
		if !ok {
			return eris.New("import requires the postgres store (bulk COPY)")
		}

		export, err := ingest.ReadExport(importFile)
		if err != nil {
			return err
		}

		sum, err := ingest.Load(ctx, ps.Pool(), export, importSource)
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.Int64("companies", sum.Companies),
			zap.Int64("instruments", sum.Instruments),
			zap.Int64("documents", sum.Documents),
			zap.Int64("financials", sum.Financials),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to export JSON (required)")
	importCmd.Flags().StringVar(&importSource, "source", "", "override provenance tag on imported instruments")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
