// Package testutil provides common test utilities and helpers for the
// nutrition bot tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lampapompa/line-nutrition-bot/internal/messaging"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
	"github.com/lampapompa/line-nutrition-bot/internal/store"
)

// NewMockGateway creates a mock messaging gateway preloaded with events.
func NewMockGateway(events ...models.InboundEvent) *messaging.MockGateway {
	gw := messaging.NewMockGateway()
	gw.Events = events
	return gw
}

// TextEvent builds a valid inbound text event for tests.
func TextEvent(userID, text string) models.InboundEvent {
	return models.InboundEvent{
		ID:         "test-event",
		Type:       models.EventTypeText,
		UserID:     userID,
		ReplyToken: "test-token",
		Text:       text,
	}
}

// ImageEvent builds a valid inbound image event for tests.
func ImageEvent(userID, messageID string) models.InboundEvent {
	return models.InboundEvent{
		ID:         "test-event",
		Type:       models.EventTypeImage,
		UserID:     userID,
		ReplyToken: "test-token",
		MessageID:  messageID,
	}
}

// SeedPendingImage stores a pending image and fails the test on error.
func SeedPendingImage(t *testing.T, st store.Store, userID, payload string) {
	t.Helper()
	if err := st.SetPendingImage(context.Background(), userID, payload, time.Minute); err != nil {
		t.Fatalf("failed to seed pending image for %s: %v", userID, err)
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it
// doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
