// Package genai wraps the OpenAI API for text, classification and vision
// completions used by the nutrition bot.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Default configuration constants.
const (
	// DefaultModel is the completion model used when none is configured.
	// It must be vision-capable since the image path reuses it.
	DefaultModel = openai.ChatModelGPT4o
	// DefaultTimeout bounds a single completion round trip so a slow
	// upstream cannot stall a handling worker indefinitely.
	DefaultTimeout = 30 * time.Second
)

// Error variables for better error handling and testability.
var (
	ErrAPIKeyNotSet      = errors.New("OPENAI_API_KEY not set")
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the completion model (overrides $OPENAI_MODEL).
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// GenerateOptions are per-call generation parameters. Zero values mean
// "use the service default".
type GenerateOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int64
}

// ClientInterface defines the completion operations the flow depends on.
// It exists so tests can substitute a mock for the real OpenAI client.
type ClientInterface interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	GenerateWithOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts GenerateOptions) (string, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat    chatService
	model   string
	timeout time.Duration
}

// NewClient initializes a new GenAI client, applying any provided options and
// falling back to environment variables for unset values.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	slog.Debug("GenAI client config loaded", "APIKey_set", cfg.APIKey != "", "model", cfg.Model, "timeout", cfg.Timeout)

	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// GenerateWithMessages generates a completion for the given messages using
// the client's default model and service-default sampling parameters.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	return c.GenerateWithOptions(ctx, messages, GenerateOptions{})
}

// GenerateWithOptions generates a completion with explicit per-call options.
// Errors are classified into models.CompletionError kinds so callers can map
// them to user-visible fallback strings.
func (c *Client) GenerateWithOptions(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, opts GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(opts.MaxTokens)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slog.Debug("Client.GenerateWithOptions: requesting completion", "model", model, "messages", len(messages), "max_tokens", opts.MaxTokens)
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("Client.GenerateWithOptions: completion request failed", "model", model, "error", err)
		return "", ClassifyError(err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("Client.GenerateWithOptions: completion returned no choices", "model", model)
		return "", models.NewCompletionError(models.CompletionErrorOther, ErrNoChoicesReturned)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("Client.GenerateWithOptions: completion succeeded", "model", model, "length", len(content))
	return content, nil
}

// ClassifyError maps a raw OpenAI client error into a typed CompletionError.
// Already-classified errors pass through unchanged.
func ClassifyError(err error) error {
	var ce *models.CompletionError
	if errors.As(err, &ce) {
		return err
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return models.NewCompletionError(models.CompletionErrorAuth, err)
		case apierr.StatusCode == 429 || apierr.StatusCode >= 500:
			return models.NewCompletionError(models.CompletionErrorUnavailable, err)
		default:
			return models.NewCompletionError(models.CompletionErrorOther, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewCompletionError(models.CompletionErrorUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.NewCompletionError(models.CompletionErrorUnavailable, err)
	}

	return models.NewCompletionError(models.CompletionErrorOther, err)
}

// ImageDataURL builds an inline data URL for a base64-encoded image payload.
func ImageDataURL(mimeType, base64Payload string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Payload)
}

// VisionUserMessage builds a multimodal user message carrying a text question
// and an inline image.
func VisionUserMessage(question, imageDataURL string) openai.ChatCompletionMessageParamUnion {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(question),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageDataURL}),
	}
	return openai.UserMessage(parts)
}
