// Package models defines the core data structures for the nutrition bot.
//
// It includes inbound webhook events, the pending-image session record,
// intent categories, and composed replies, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// EventType identifies the kind of inbound webhook event.
type EventType string

const (
	// EventTypeText is a plain text message from a user.
	EventTypeText EventType = "text"
	// EventTypeImage is an uploaded image from a user.
	EventTypeImage EventType = "image"
)

// InboundEvent represents a single inbound message event from the messaging
// platform. Exactly one of Text or MessageID is meaningful depending on Type.
// Events are ephemeral: created per webhook call and discarded after handling.
type InboundEvent struct {
	ID         string    `json:"id"`          // correlation ID for logging
	Type       EventType `json:"type"`        // text or image
	UserID     string    `json:"user_id"`     // platform user identifier
	ReplyToken string    `json:"reply_token"` // single-use reply credential
	Text       string    `json:"text,omitempty"`       // text events only
	MessageID  string    `json:"message_id,omitempty"` // image events only
}

// Validation errors for inbound events.
var (
	ErrEmptyUserID     = errors.New("user ID cannot be empty")
	ErrEmptyReplyToken = errors.New("reply token cannot be empty")
	ErrInvalidEvent    = errors.New("event is missing required payload for its type")
)

// Validate checks that an inbound event carries the fields its type requires.
func (e *InboundEvent) Validate() error {
	if e.UserID == "" {
		return ErrEmptyUserID
	}
	if e.ReplyToken == "" {
		return ErrEmptyReplyToken
	}
	switch e.Type {
	case EventTypeText:
		if e.Text == "" {
			return ErrInvalidEvent
		}
	case EventTypeImage:
		if e.MessageID == "" {
			return ErrInvalidEvent
		}
	default:
		return ErrInvalidEvent
	}
	return nil
}

// PendingImage is a stored image awaiting a follow-up text message that
// supplies the user's actual question about it. At most one exists per user;
// a newer upload overwrites an older one (last write wins).
type PendingImage struct {
	UserID        string    `json:"user_id"`
	Base64Payload string    `json:"base64_payload"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefaultPendingImageTTL is how long an unused pending image survives.
const DefaultPendingImageTTL = 300 * time.Second

// IntentCategory is the mutually exclusive classification of a text message
// when no pending image exists.
type IntentCategory string

const (
	// IntentNutrition covers questions about food, calories, diet and health.
	IntentNutrition IntentCategory = "nutrition"
	// IntentEmotional covers venting, mood and small talk seeking empathy.
	IntentEmotional IntentCategory = "emotional"
	// IntentUnrelated covers everything outside the bot's domain.
	IntentUnrelated IntentCategory = "unrelated"
	// IntentUnknown marks classifier output outside the expected label set.
	// It is an internal handling path, not a classifier label.
	IntentUnknown IntentCategory = "unknown"
)

// IsValidIntentCategory checks if the given category is one of the three
// classifier labels. IntentUnknown is deliberately excluded.
func IsValidIntentCategory(c IntentCategory) bool {
	switch c {
	case IntentNutrition, IntentEmotional, IntentUnrelated:
		return true
	default:
		return false
	}
}

// ReplySource identifies which composer path produced a reply.
type ReplySource string

const (
	ReplySourceVision        ReplySource = "vision"
	ReplySourceNutrition     ReplySource = "nutrition"
	ReplySourceEmotional     ReplySource = "emotional"
	ReplySourceUnrelated     ReplySource = "unrelated"
	ReplySourceClarification ReplySource = "clarification"
	ReplySourceImageAck      ReplySource = "image_ack"
	ReplySourceFallback      ReplySource = "fallback"
)

// ComposedReply is the output of the response composer. It is immutable once
// produced and consumed exactly once by pacing & delivery.
type ComposedReply struct {
	Text   string      `json:"text"`
	Source ReplySource `json:"source"`
}

// Len returns the reply length in runes, which is what the pacing bands are
// defined over (CJK text would otherwise triple-count).
func (r ComposedReply) Len() int {
	n := 0
	for range r.Text {
		n++
	}
	return n
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
