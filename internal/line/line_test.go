package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

const testSecret = "test-channel-secret"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(WithChannelSecret(testSecret), WithChannelToken("test-token"))
	if err != nil {
		t.Fatalf("failed to create LINE client: %v", err)
	}
	return c
}

// signBody computes the X-Line-Signature value for a webhook body.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestParseWebhookTextAndImage(t *testing.T) {
	c := newTestClient(t)

	body := []byte(`{"destination":"Ubot","events":[` +
		`{"type":"message","mode":"active","timestamp":1700000000000,"replyToken":"tok-1",` +
		`"source":{"type":"user","userId":"U1"},` +
		`"message":{"type":"text","id":"m1","text":"今天午餐吃了便當"}},` +
		`{"type":"message","mode":"active","timestamp":1700000000001,"replyToken":"tok-2",` +
		`"source":{"type":"user","userId":"U2"},` +
		`"message":{"type":"image","id":"m2","contentProvider":{"type":"line"}}}]}`)

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", signBody(testSecret, body))

	events, err := c.ParseWebhook(req)
	if err != nil {
		t.Fatalf("ParseWebhook failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	text := events[0]
	if text.Type != models.EventTypeText || text.UserID != "U1" || text.ReplyToken != "tok-1" || text.Text != "今天午餐吃了便當" {
		t.Errorf("unexpected text event: %+v", text)
	}
	if text.ID == "" {
		t.Error("expected a correlation ID on parsed events")
	}

	image := events[1]
	if image.Type != models.EventTypeImage || image.UserID != "U2" || image.ReplyToken != "tok-2" || image.MessageID != "m2" {
		t.Errorf("unexpected image event: %+v", image)
	}

	if err := text.Validate(); err != nil {
		t.Errorf("parsed text event failed validation: %v", err)
	}
	if err := image.Validate(); err != nil {
		t.Errorf("parsed image event failed validation: %v", err)
	}
}

func TestParseWebhookInvalidSignature(t *testing.T) {
	c := newTestClient(t)

	body := []byte(`{"destination":"Ubot","events":[]}`)
	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", signBody("wrong-secret", body))

	_, err := c.ParseWebhook(req)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestParseWebhookSkipsNonMessageEvents(t *testing.T) {
	c := newTestClient(t)

	body := []byte(`{"destination":"Ubot","events":[` +
		`{"type":"follow","mode":"active","timestamp":1700000000000,"replyToken":"tok-1",` +
		`"source":{"type":"user","userId":"U1"}},` +
		`{"type":"message","mode":"active","timestamp":1700000000001,"replyToken":"tok-2",` +
		`"source":{"type":"user","userId":"U1"},` +
		`"message":{"type":"sticker","id":"m3","packageId":"1","stickerId":"2"}}]}`)

	req := httptest.NewRequest("POST", "/callback", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", signBody(testSecret, body))

	events, err := c.ParseWebhook(req)
	if err != nil {
		t.Fatalf("ParseWebhook failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected follow and sticker events to be skipped, got %d events", len(events))
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("LINE_CHANNEL_SECRET", "")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestReplyValidation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if err := c.Reply(ctx, "", []string{"hi"}); err == nil {
		t.Error("expected error for empty reply token")
	}
	if err := c.Reply(ctx, "tok", nil); err == nil {
		t.Error("expected error for empty message list")
	}
}
