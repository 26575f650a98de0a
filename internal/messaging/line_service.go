package messaging

import (
	"context"
	"errors"
	"net/http"

	"github.com/lampapompa/line-nutrition-bot/internal/line"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// LineGateway implements the Gateway interface using the LINE Messaging API.
// This is the primary backend.
type LineGateway struct {
	client *line.Client
}

// NewLineGateway creates a new LINE-backed gateway.
func NewLineGateway(client *line.Client) *LineGateway {
	return &LineGateway{client: client}
}

// Platform returns the backend identifier.
func (g *LineGateway) Platform() string { return "line" }

// ParseWebhook verifies and parses a LINE webhook request.
func (g *LineGateway) ParseWebhook(r *http.Request) ([]models.InboundEvent, error) {
	events, err := g.client.ParseWebhook(r)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			return nil, ErrInvalidSignature
		}
		return nil, err
	}
	return events, nil
}

// Reply sends messages through a LINE reply token.
func (g *LineGateway) Reply(ctx context.Context, replyToken string, messages []string) error {
	return g.client.Reply(ctx, replyToken, messages)
}

// FetchContent downloads uploaded message content from LINE.
func (g *LineGateway) FetchContent(ctx context.Context, messageID string) ([]byte, error) {
	return g.client.GetMessageContent(ctx, messageID)
}
