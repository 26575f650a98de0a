package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// TwilioOpts holds configuration options for the Twilio WhatsApp gateway.
type TwilioOpts struct {
	AccountSID    string
	AuthToken     string
	FromWhats     string // WhatsApp number in "whatsapp:+1234567890" format
	PublicBaseURL string // externally visible base URL for signature validation
}

// TwilioOption defines a configuration option for the Twilio WhatsApp gateway.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID (overrides $TWILIO_ACCOUNT_SID).
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token (overrides $TWILIO_AUTH_TOKEN).
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number (overrides $TWILIO_FROM_NUMBER).
func WithFromWhats(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromWhats = from }
}

// WithPublicBaseURL sets the externally visible base URL used when validating
// inbound webhook signatures behind a proxy.
func WithPublicBaseURL(base string) TwilioOption {
	return func(o *TwilioOpts) { o.PublicBaseURL = base }
}

// TwilioGateway implements the Gateway interface using the Twilio WhatsApp
// API. Twilio has no reply tokens; the sender's WhatsApp address doubles as
// the reply token, and FetchContent downloads media URLs with basic auth.
type TwilioGateway struct {
	client        *twilio.RestClient
	validator     twilioclient.RequestValidator
	httpClient    *http.Client
	accountSID    string
	authToken     string
	fromWhats     string
	publicBaseURL string
}

// NewTwilioGateway creates a new Twilio WhatsApp gateway, applying any
// provided options and falling back to environment variables.
func NewTwilioGateway(opts ...TwilioOption) (*TwilioGateway, error) {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio gateway config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioGateway{
		client:        client,
		validator:     twilioclient.NewRequestValidator(cfg.AuthToken),
		httpClient:    http.DefaultClient,
		accountSID:    cfg.AccountSID,
		authToken:     cfg.AuthToken,
		fromWhats:     cfg.FromWhats,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// Platform returns the backend identifier.
func (g *TwilioGateway) Platform() string { return "twilio" }

// ParseWebhook validates the X-Twilio-Signature header and converts an
// inbound form POST into events. Messages carrying media become image events
// whose message ID is the media URL.
func (g *TwilioGateway) ParseWebhook(r *http.Request) ([]models.InboundEvent, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse webhook form: %w", err)
	}

	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}
	if !g.validator.Validate(g.requestURL(r), params, r.Header.Get("X-Twilio-Signature")) {
		slog.Warn("TwilioGateway.ParseWebhook: signature mismatch")
		return nil, ErrInvalidSignature
	}

	from := r.PostForm.Get("From")
	if from == "" {
		slog.Debug("TwilioGateway.ParseWebhook: no sender, skipping")
		return nil, nil
	}

	numMedia, _ := strconv.Atoi(r.PostForm.Get("NumMedia"))
	if numMedia > 0 {
		mediaURL := r.PostForm.Get("MediaUrl0")
		if mediaURL == "" {
			return nil, fmt.Errorf("media message without MediaUrl0")
		}
		return []models.InboundEvent{{
			ID:         uuid.NewString(),
			Type:       models.EventTypeImage,
			UserID:     from,
			ReplyToken: from,
			MessageID:  mediaURL,
		}}, nil
	}

	body := r.PostForm.Get("Body")
	if body == "" {
		slog.Debug("TwilioGateway.ParseWebhook: empty body, skipping", "from", from)
		return nil, nil
	}
	return []models.InboundEvent{{
		ID:         uuid.NewString(),
		Type:       models.EventTypeText,
		UserID:     from,
		ReplyToken: from,
		Text:       body,
	}}, nil
}

// requestURL reconstructs the URL Twilio signed. A configured public base URL
// wins over the request's own host (which may be a proxy-internal address).
func (g *TwilioGateway) requestURL(r *http.Request) string {
	if g.publicBaseURL != "" {
		return g.publicBaseURL + r.URL.RequestURI()
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// Reply sends messages to the WhatsApp address that doubles as the reply token.
func (g *TwilioGateway) Reply(ctx context.Context, replyToken string, messages []string) error {
	if replyToken == "" {
		return fmt.Errorf("reply token cannot be empty")
	}
	for _, body := range messages {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(replyToken)
		params.SetFrom(g.fromWhats)
		params.SetBody(body)

		if _, err := g.client.Api.CreateMessage(params); err != nil {
			slog.Error("TwilioGateway.Reply failed", "error", err, "to", replyToken)
			return fmt.Errorf("failed to send message to %s: %w", replyToken, err)
		}
	}
	slog.Debug("TwilioGateway.Reply succeeded", "to", replyToken, "messages", len(messages))
	return nil
}

// FetchContent downloads inbound media from its Twilio-hosted URL.
func (g *TwilioGateway) FetchContent(ctx context.Context, messageID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, messageID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	req.SetBasicAuth(g.accountSID, g.authToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		slog.Error("TwilioGateway.FetchContent failed", "error", err)
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	slog.Debug("TwilioGateway.FetchContent succeeded", "bytes", len(data))
	return data, nil
}
