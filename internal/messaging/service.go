// Package messaging provides the pluggable gateway abstraction over the
// messaging platforms that deliver inbound events and accept outbound replies.
package messaging

import (
	"context"
	"errors"
	"net/http"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// ErrInvalidSignature indicates an inbound webhook request failed signature
// verification and must be rejected at the boundary.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Gateway defines a pluggable messaging platform backend.
//
// Each backend parses its own webhook format (including signature
// verification), sends replies through the platform's reply mechanism, and
// downloads message content for image events.
type Gateway interface {
	// Platform returns a short backend identifier (e.g. "line", "twilio").
	Platform() string

	// ParseWebhook verifies and parses an inbound webhook request into
	// events. Returns ErrInvalidSignature on signature mismatch.
	ParseWebhook(r *http.Request) ([]models.InboundEvent, error)

	// Reply sends one or more messages using the event's single-use reply
	// token. Tokens are valid for one use within a short window; callers
	// must not retry a failed reply.
	Reply(ctx context.Context, replyToken string, messages []string) error

	// FetchContent downloads the binary content referenced by an image
	// event's message ID.
	FetchContent(ctx context.Context, messageID string) ([]byte, error)
}
