package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/model"
	"github.com/sells-group/debtlink/internal/store"
	"github.com/sells-group/debtlink/pkg/notion"
)

var (
	reviewMaxConfidence float64
	reviewLimit         int
	reviewPushNotion    bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List low-confidence unverified links",
	Long:  "Shows unverified links below the confidence threshold so a human can confirm or reject them. With --push-notion, each one becomes a page in the review database.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if reviewPushNotion {
			if err := cfg.Validate("review"); err != nil {
				return err
			}
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		links, err := s.ListReviewQueue(ctx, store.ReviewFilter{
			MaxConfidence: reviewMaxConfidence,
			Limit:         reviewLimit,
		})
		if err != nil {
			return eris.Wrap(err, "review queue")
		}

		if len(links) == 0 {
			zap.L().Info("review queue is empty")
			return nil
		}

		items := make([]notion.ReviewItem, 0, len(links))
		for _, link := range links {
			item := notion.ReviewItem{Link: link}
			if inst, err := s.GetInstrument(ctx, link.InstrumentID); err == nil && inst != nil {
				item.InstrumentName = inst.Name
				item.IssuerName = inst.IssuerName
			}
			if doc, err := s.GetDocument(ctx, link.DocumentID); err == nil && doc != nil {
				item.DocumentTitle = doc.Title
			}
			items = append(items, item)
		}

		formatReviewQueue(os.Stdout, items)

		if reviewPushNotion {
			client := notion.NewClient(cfg.Notion.Token)
			pushed := 0
			for _, item := range items {
				if _, err := client.CreatePage(ctx, notion.BuildReviewPage(cfg.Notion.ReviewDB, item)); err != nil {
					zap.L().Error("notion push failed",
						zap.Int64("link_id", item.Link.ID),
						zap.Error(err),
					)
					continue
				}
				pushed++
			}
			zap.L().Info("review queue pushed", zap.Int("pushed", pushed), zap.Int("total", len(items)))
		}
		return nil
	},
}

// formatReviewQueue writes the pending links as a table.
func formatReviewQueue(out io.Writer, items []notion.ReviewItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LINK\tINSTRUMENT\tDOCUMENT\tMETHOD\tCONFIDENCE")
	_, _ = fmt.Fprintln(w, "----\t----------\t--------\t------\t----------")

	for _, item := range items {
		name := item.InstrumentName
		if name == "" {
			name = fmt.Sprintf("instrument %d", item.Link.InstrumentID)
		}
		title := item.DocumentTitle
		if title == "" {
			title = fmt.Sprintf("document %d", item.Link.DocumentID)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\n",
			item.Link.ID,
			truncate(name, 48),
			truncate(title, 48),
			item.Link.Method,
			item.Link.Confidence,
		)
	}
	_ = w.Flush()
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	reviewCmd.Flags().Float64Var(&reviewMaxConfidence, "max-confidence", model.ReviewThreshold, "only list links below this confidence")
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 100, "maximum links to list")
	reviewCmd.Flags().BoolVar(&reviewPushNotion, "push-notion", false, "create a review page per link")
	rootCmd.AddCommand(reviewCmd)
}
