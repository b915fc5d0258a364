package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <link-id>",
	Short: "Mark a link as human-verified",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		linkID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid link id %q", args[0])
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.VerifyLink(ctx, linkID); err != nil {
			return eris.Wrapf(err, "verify link %d", linkID)
		}

		zap.L().Info("link verified", zap.Int64("link_id", linkID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
