package integrations

import (
	"context"
	"errors"
	"net/http"

	goslack "github.com/slack-go/slack"

	"github.com/paradyne-ai/callcore/pkg/models"
)

const maxChatTextLength = 2900

// ChatClient posts call notifications to a tenant's chat webhook. The
// webhook URL lives in the integration config ("webhook_url"); messages go
// out as Block Kit sections with a plain-text fallback.
type ChatClient struct {
	http *http.Client
}

// NewChat builds a chat client.
func NewChat(hc *http.Client) *ChatClient {
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	return &ChatClient{http: hc}
}

// ChatField is one label/value pair rendered in the notification.
type ChatField struct {
	Label string
	Value string
}

// ChatNotification is a post-call message for the tenant's channel.
type ChatNotification struct {
	Title  string
	Text   string
	Fields []ChatField
}

// Notify posts the notification to the tenant's webhook.
func (c *ChatClient) Notify(ctx context.Context, cfg *models.IntegrationConfig, n ChatNotification) error {
	webhookURL := cfg.ConfigString("webhook_url")
	if webhookURL == "" {
		return &Error{Integration: models.IntegrationChat, Op: "notify", Message: "integration has no webhook url"}
	}

	msg := &goslack.WebhookMessage{
		Text:   n.Title,
		Blocks: &goslack.Blocks{BlockSet: buildNotificationBlocks(n)},
	}
	if err := goslack.PostWebhookCustomHTTPContext(ctx, webhookURL, c.http, msg); err != nil {
		return classifyChatError(err)
	}
	return nil
}

func buildNotificationBlocks(n ChatNotification) []goslack.Block {
	header := "*" + n.Title + "*"
	if n.Text != "" {
		header += "\n" + truncateForChat(n.Text)
	}
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
	}

	if len(n.Fields) > 0 {
		fields := make([]*goslack.TextBlockObject, 0, len(n.Fields))
		for _, f := range n.Fields {
			if f.Value == "" {
				continue
			}
			fields = append(fields, goslack.NewTextBlockObject(
				goslack.MarkdownType, "*"+f.Label+"*\n"+truncateForChat(f.Value), false, false,
			))
		}
		if len(fields) > 0 {
			blocks = append(blocks, goslack.NewSectionBlock(nil, fields, nil))
		}
	}
	return blocks
}

func truncateForChat(s string) string {
	if len(s) <= maxChatTextLength {
		return s
	}
	return s[:maxChatTextLength] + "..."
}

func classifyChatError(err error) error {
	var scErr interface{ HTTPStatusCode() int }
	if errors.As(err, &scErr) {
		code := scErr.HTTPStatusCode()
		return &Error{
			Integration: models.IntegrationChat, Op: "notify",
			StatusCode: code,
			Message:    err.Error(),
			Transient:  code == http.StatusTooManyRequests || code >= 500,
		}
	}
	return &Error{Integration: models.IntegrationChat, Op: "notify", Message: err.Error(), Transient: true}
}
