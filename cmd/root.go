package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "debtlink",
	Short: "Debt instrument to document linkage engine",
	Long:  "Links extracted debt instruments to their governing indentures and credit agreements, merges duplicate extractions, and reconciles instrument sums against reported total debt.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
