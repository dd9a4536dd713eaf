package notion

import (
	"context"
	"fmt"

	trackerdomain "jobtrail-backend/internal/tracker/domain"
	"jobtrail-backend/pkg/logger"

	"github.com/jomei/notionapi"
	"go.uber.org/zap"
)

// maxTextLength is Notion's limit for a single rich text content block.
const maxTextLength = 2000

const messageIDProperty = "Gmail Message ID"

type Client struct {
	api        *notionapi.Client
	databaseID notionapi.DatabaseID
	log        *zap.Logger
}

func NewClient(secret, databaseID string) *Client {
	return &Client{
		api:        notionapi.NewClient(notionapi.Token(secret)),
		databaseID: notionapi.DatabaseID(databaseID),
		log:        logger.Named("notion"),
	}
}

// newClientWithAPI is used by tests to point the adapter at a fake server.
func newClientWithAPI(api *notionapi.Client, databaseID string) *Client {
	return &Client{
		api:        api,
		databaseID: notionapi.DatabaseID(databaseID),
		log:        logger.Named("notion"),
	}
}

// AddRecord inserts one application record, skipping silently when a page
// with the same Gmail message id already exists.
func (c *Client) AddRecord(ctx context.Context, rec *trackerdomain.Record) error {
	existing, err := c.api.Database.Query(ctx, c.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: messageIDProperty,
			RichText: &notionapi.TextFilterCondition{
				Equals: rec.MessageID,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("unable to query for existing entry: %v", err)
	}

	if len(existing.Results) > 0 {
		c.log.Info("skipping duplicate", zap.String("messageId", rec.MessageID))
		return nil
	}

	date := notionapi.Date(rec.ReceivedAt)
	_, err = c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: c.databaseID,
		},
		Properties: notionapi.Properties{
			"Company Name": notionapi.TitleProperty{
				Title: richText(truncate(rec.Company)),
			},
			"Email Subject": notionapi.RichTextProperty{
				RichText: richText(truncate(rec.Subject)),
			},
			"Date received": notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &date},
			},
			"Referral?": notionapi.RichTextProperty{
				RichText: richText(rec.Referral),
			},
			"Email Body": notionapi.RichTextProperty{
				RichText: richText(truncate(rec.Body)),
			},
			"Status": notionapi.StatusProperty{
				Status: notionapi.Option{Name: rec.Status},
			},
			messageIDProperty: notionapi.RichTextProperty{
				RichText: richText(rec.MessageID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("unable to create entry: %v", err)
	}

	c.log.Info("record added",
		zap.String("company", rec.Company),
		zap.String("messageId", rec.MessageID))
	return nil
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{Text: &notionapi.Text{Content: content}},
	}
}

func truncate(s string) string {
	if len(s) <= maxTextLength {
		return s
	}
	return s[:maxTextLength]
}
