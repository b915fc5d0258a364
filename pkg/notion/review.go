package notion

import (
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/sells-group/debtlink/internal/model"
)

// ReviewItem carries a low-confidence link plus display context for export.
type ReviewItem struct {
	Link           model.Link
	InstrumentName string
	IssuerName     string
	DocumentTitle  string
}

// BuildReviewPage converts a review item into a page create request for the
// manual review database.
func BuildReviewPage(dbID string, item ReviewItem) *notionapi.PageCreateRequest {
	title := fmt.Sprintf("%s → %s", item.InstrumentName, item.DocumentTitle)

	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
		},
		"Issuer": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: item.IssuerName}}},
		},
		"Method": notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(item.Link.Method)},
		},
		"Confidence": notionapi.NumberProperty{
			Number: item.Link.Confidence,
		},
		"Link ID": notionapi.NumberProperty{
			Number: float64(item.Link.ID),
		},
	}

	if reason, ok := item.Link.Evidence["reason"].(string); ok && reason != "" {
		props["Reason"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: reason}}},
		}
	}

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	}
}
