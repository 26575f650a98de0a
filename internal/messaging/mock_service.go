package messaging

import (
	"context"
	"net/http"
	"sync"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// SentReply records one Reply call made against a MockGateway.
type SentReply struct {
	ReplyToken string
	Messages   []string
}

// MockGateway implements the Gateway interface for testing. It records
// replies and returns canned events and content.
type MockGateway struct {
	mu sync.Mutex

	// Events is returned by ParseWebhook.
	Events []models.InboundEvent
	// ParseErr, when set, is returned by ParseWebhook instead.
	ParseErr error
	// Content is returned by FetchContent, keyed by message ID.
	Content map[string][]byte
	// ReplyErr, when set, is returned by Reply.
	ReplyErr error
	// FetchErr, when set, is returned by FetchContent.
	FetchErr error

	replies []SentReply
}

// NewMockGateway creates a mock gateway with no canned data.
func NewMockGateway() *MockGateway {
	return &MockGateway{Content: make(map[string][]byte)}
}

// Platform returns the backend identifier.
func (m *MockGateway) Platform() string { return "mock" }

// ParseWebhook returns the canned events or error.
func (m *MockGateway) ParseWebhook(r *http.Request) ([]models.InboundEvent, error) {
	if m.ParseErr != nil {
		return nil, m.ParseErr
	}
	return m.Events, nil
}

// Reply records the call and returns the configured error, if any.
func (m *MockGateway) Reply(ctx context.Context, replyToken string, messages []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplyErr != nil {
		return m.ReplyErr
	}
	m.replies = append(m.replies, SentReply{ReplyToken: replyToken, Messages: append([]string(nil), messages...)})
	return nil
}

// FetchContent returns canned content for the message ID.
func (m *MockGateway) FetchContent(ctx context.Context, messageID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Content[messageID], nil
}

// Replies returns a copy of all recorded replies.
func (m *MockGateway) Replies() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentReply(nil), m.replies...)
}

// Reset clears recorded replies and configured errors.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = nil
	m.ReplyErr = nil
	m.FetchErr = nil
	m.ParseErr = nil
}
