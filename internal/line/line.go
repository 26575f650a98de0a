// Package line wraps the LINE Messaging API SDK for the nutrition bot.
//
// It provides webhook parsing with signature verification, reply delivery
// through single-use reply tokens, and message content download.
package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v7/linebot"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// MaxReplyMessages is the LINE platform limit on messages per reply token.
const MaxReplyMessages = 5

// ErrInvalidSignature indicates the webhook signature header did not match
// the request body.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Opts holds configuration options for the LINE client.
type Opts struct {
	ChannelSecret string
	ChannelToken  string
	HTTPClient    *http.Client
}

// Option defines a configuration option for the LINE client.
type Option func(*Opts)

// WithChannelSecret sets the channel secret used for webhook signature
// verification (overrides $LINE_CHANNEL_SECRET).
func WithChannelSecret(secret string) Option {
	return func(o *Opts) { o.ChannelSecret = secret }
}

// WithChannelToken sets the channel access token used for outbound API calls
// (overrides $LINE_CHANNEL_ACCESS_TOKEN).
func WithChannelToken(token string) Option {
	return func(o *Opts) { o.ChannelToken = token }
}

// WithHTTPClient sets a custom HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client wraps the LINE bot SDK client.
type Client struct {
	bot *linebot.Client
}

// NewClient creates a new LINE client, applying any provided options and
// falling back to environment variables for unset values.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChannelSecret == "" {
		cfg.ChannelSecret = os.Getenv("LINE_CHANNEL_SECRET")
	}
	if cfg.ChannelToken == "" {
		cfg.ChannelToken = os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	}
	slog.Debug("LINE client config loaded", "ChannelSecret_set", cfg.ChannelSecret != "", "ChannelToken_set", cfg.ChannelToken != "")

	if cfg.ChannelSecret == "" || cfg.ChannelToken == "" {
		return nil, fmt.Errorf("channel secret and channel access token must be provided")
	}

	var botOpts []linebot.ClientOption
	if cfg.HTTPClient != nil {
		botOpts = append(botOpts, linebot.WithHTTPClient(cfg.HTTPClient))
	}

	bot, err := linebot.New(cfg.ChannelSecret, cfg.ChannelToken, botOpts...)
	if err != nil {
		slog.Error("Failed to create LINE bot client", "error", err)
		return nil, fmt.Errorf("failed to create LINE bot client: %w", err)
	}
	return &Client{bot: bot}, nil
}

// ParseWebhook verifies the request signature and converts LINE message
// events into inbound events. Non-message events (follows, unfollows,
// stickers and the like) are skipped. Returns ErrInvalidSignature when the
// X-Line-Signature header does not match the body.
func (c *Client) ParseWebhook(r *http.Request) ([]models.InboundEvent, error) {
	lineEvents, err := c.bot.ParseRequest(r)
	if err != nil {
		if errors.Is(err, linebot.ErrInvalidSignature) {
			slog.Warn("Client.ParseWebhook: signature mismatch")
			return nil, ErrInvalidSignature
		}
		slog.Error("Client.ParseWebhook: failed to parse webhook request", "error", err)
		return nil, fmt.Errorf("failed to parse webhook request: %w", err)
	}

	var events []models.InboundEvent
	for _, ev := range lineEvents {
		if ev.Type != linebot.EventTypeMessage || ev.Source == nil {
			slog.Debug("Client.ParseWebhook: skipping non-message event", "type", ev.Type)
			continue
		}
		switch message := ev.Message.(type) {
		case *linebot.TextMessage:
			events = append(events, models.InboundEvent{
				ID:         uuid.NewString(),
				Type:       models.EventTypeText,
				UserID:     ev.Source.UserID,
				ReplyToken: ev.ReplyToken,
				Text:       message.Text,
			})
		case *linebot.ImageMessage:
			events = append(events, models.InboundEvent{
				ID:         uuid.NewString(),
				Type:       models.EventTypeImage,
				UserID:     ev.Source.UserID,
				ReplyToken: ev.ReplyToken,
				MessageID:  message.ID,
			})
		default:
			slog.Debug("Client.ParseWebhook: skipping unsupported message type", "user_id", ev.Source.UserID)
		}
	}
	slog.Debug("Client.ParseWebhook: parsed events", "count", len(events))
	return events, nil
}

// Reply sends up to MaxReplyMessages text messages through a single-use
// reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []string) error {
	if replyToken == "" {
		return fmt.Errorf("reply token cannot be empty")
	}
	if len(messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	if len(messages) > MaxReplyMessages {
		slog.Warn("Client.Reply: truncating messages to platform limit", "requested", len(messages), "limit", MaxReplyMessages)
		messages = messages[:MaxReplyMessages]
	}

	sending := make([]linebot.SendingMessage, 0, len(messages))
	for _, m := range messages {
		sending = append(sending, linebot.NewTextMessage(m))
	}

	if _, err := c.bot.ReplyMessage(replyToken, sending...).WithContext(ctx).Do(); err != nil {
		slog.Error("Client.Reply failed", "error", err, "messages", len(messages))
		return fmt.Errorf("failed to reply: %w", err)
	}
	slog.Debug("Client.Reply succeeded", "messages", len(messages))
	return nil
}

// GetMessageContent downloads the binary content of a message (an uploaded
// image) from the LINE content endpoint.
func (c *Client) GetMessageContent(ctx context.Context, messageID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message ID cannot be empty")
	}

	resp, err := c.bot.GetMessageContent(messageID).WithContext(ctx).Do()
	if err != nil {
		slog.Error("Client.GetMessageContent failed", "error", err, "message_id", messageID)
		return nil, fmt.Errorf("failed to fetch message content: %w", err)
	}
	defer resp.Content.Close()

	data, err := io.ReadAll(resp.Content)
	if err != nil {
		slog.Error("Client.GetMessageContent read failed", "error", err, "message_id", messageID)
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}
	slog.Debug("Client.GetMessageContent succeeded", "message_id", messageID, "bytes", len(data))
	return data, nil
}
