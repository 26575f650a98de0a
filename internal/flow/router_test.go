package flow

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lampapompa/line-nutrition-bot/internal/messaging"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
	"github.com/lampapompa/line-nutrition-bot/internal/store"
)

// stubGate returns a fixed classification and counts calls.
type stubGate struct {
	category models.IntentCategory
	err      error
	calls    atomic.Int32
}

func (g *stubGate) Classify(_ context.Context, _ string) (models.IntentCategory, error) {
	g.calls.Add(1)
	return g.category, g.err
}

// failingStore wraps the in-memory store and fails selected operations.
type failingStore struct {
	*store.InMemoryStore
	failSet bool
	failGet bool
}

func (s *failingStore) SetPendingImage(ctx context.Context, userID, payload string, ttl time.Duration) error {
	if s.failSet {
		return &models.StoreError{Op: "set", Err: errors.New("store down")}
	}
	return s.InMemoryStore.SetPendingImage(ctx, userID, payload, ttl)
}

func (s *failingStore) GetPendingImage(ctx context.Context, userID string) (*models.PendingImage, error) {
	if s.failGet {
		return nil, &models.StoreError{Op: "get", Err: errors.New("store down")}
	}
	return s.InMemoryStore.GetPendingImage(ctx, userID)
}

func textEvent(userID, text string) models.InboundEvent {
	return models.InboundEvent{ID: "ev-1", Type: models.EventTypeText, UserID: userID, ReplyToken: "tok-1", Text: text}
}

func imageEvent(userID, messageID string) models.InboundEvent {
	return models.InboundEvent{ID: "ev-2", Type: models.EventTypeImage, UserID: userID, ReplyToken: "tok-2", MessageID: messageID}
}

func singleReply(t *testing.T, gw *messaging.MockGateway) string {
	t.Helper()
	replies := gw.Replies()
	if len(replies) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(replies))
	}
	if len(replies[0].Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(replies[0].Messages))
	}
	return replies[0].Messages[0]
}

func TestDispatcherNutritionText(t *testing.T) {
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	client.enqueue("一個便當大約700大卡。", nil)
	gate := &stubGate{category: models.IntentNutrition}
	d := NewDispatcher(gw, store.NewInMemoryStore(), gate, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), textEvent("U1", "今天午餐吃了便當，熱量大概多少？"))

	if got := singleReply(t, gw); got == "" {
		t.Error("expected non-empty nutrition reply")
	}
	if gate.calls.Load() != 1 {
		t.Errorf("expected one classification call, got %d", gate.calls.Load())
	}
	if client.callCount() != 1 {
		t.Errorf("expected one generation call, got %d", client.callCount())
	}
}

func TestDispatcherImageStoredAndAcknowledged(t *testing.T) {
	gw := messaging.NewMockGateway()
	gw.Content["m1"] = []byte("jpeg-bytes")
	client := &mockCompletionClient{}
	st := store.NewInMemoryStore()
	d := NewDispatcher(gw, st, &stubGate{}, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), imageEvent("U1", "m1"))

	if got := singleReply(t, gw); got != imageAckReply {
		t.Errorf("expected image acknowledgment, got %q", got)
	}
	if client.callCount() != 0 {
		t.Errorf("expected no completion calls on image storage, got %d", client.callCount())
	}

	pending, err := st.GetPendingImage(context.Background(), "U1")
	if err != nil || pending == nil {
		t.Fatalf("expected pending image stored, got %v, %v", pending, err)
	}
	if pending.Base64Payload != base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")) {
		t.Error("pending image payload is not the base64 of the fetched content")
	}
}

func TestDispatcherPendingImageKeywordConsumed(t *testing.T) {
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	client.enqueue("這餐大約650大卡。\n全穀雜糧類：白飯一碗。", nil)
	gate := &stubGate{category: models.IntentUnrelated}
	st := store.NewInMemoryStore()
	ctx := context.Background()
	if err := st.SetPendingImage(ctx, "U1", "aW1hZ2U=", time.Minute); err != nil {
		t.Fatalf("failed to seed pending image: %v", err)
	}
	d := NewDispatcher(gw, st, gate, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(ctx, textEvent("U1", "這張圖片熱量多少？"))

	got := singleReply(t, gw)
	firstLine := strings.SplitN(got, "\n", 2)[0]
	if !strings.Contains(firstLine, "大卡") {
		t.Errorf("expected calorie summary first line, got %q", firstLine)
	}
	// Keyword match short-circuits the classifier.
	if gate.calls.Load() != 0 {
		t.Errorf("expected no classification call on keyword match, got %d", gate.calls.Load())
	}
	if pending, _ := st.GetPendingImage(ctx, "U1"); pending != nil {
		t.Error("expected pending image to be consumed")
	}
}

func TestDispatcherPendingImageClassifierConsumed(t *testing.T) {
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	client.enqueue("大約500大卡。", nil)
	gate := &stubGate{category: models.IntentNutrition}
	st := store.NewInMemoryStore()
	ctx := context.Background()
	if err := st.SetPendingImage(ctx, "U1", "aW1hZ2U=", time.Minute); err != nil {
		t.Fatalf("failed to seed pending image: %v", err)
	}
	d := NewDispatcher(gw, st, gate, NewComposer(client), WithSynchronousDelivery())

	// No vision keyword, but the classifier says nutrition while an image
	// is pending, so the vision path still runs.
	d.HandleEvent(ctx, textEvent("U1", "幫我看看這餐"))

	if gate.calls.Load() != 1 {
		t.Errorf("expected one classification call, got %d", gate.calls.Load())
	}
	if got := singleReply(t, gw); !strings.Contains(got, "大卡") {
		t.Errorf("expected vision reply, got %q", got)
	}
	if pending, _ := st.GetPendingImage(ctx, "U1"); pending != nil {
		t.Error("expected pending image to be consumed")
	}
}

func TestDispatcherUnrelatedEmojiNoGeneration(t *testing.T) {
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	gate := &stubGate{category: models.IntentUnrelated}
	d := NewDispatcher(gw, store.NewInMemoryStore(), gate, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), textEvent("U1", "哈囉"))

	got := singleReply(t, gw)
	found := false
	for _, e := range emojiReplies {
		if got == e {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected emoji reply, got %q", got)
	}
	if gate.calls.Load() != 1 {
		t.Errorf("expected classification to still occur, got %d calls", gate.calls.Load())
	}
	if client.callCount() != 0 {
		t.Errorf("expected no generation call, got %d", client.callCount())
	}
}

func TestDispatcherAuthFailureApology(t *testing.T) {
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	client.enqueue("", models.NewCompletionError(models.CompletionErrorAuth, errors.New("401")))
	gate := &stubGate{category: models.IntentNutrition}
	d := NewDispatcher(gw, store.NewInMemoryStore(), gate, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), textEvent("U1", "今天吃了便當熱量多少"))

	if got := singleReply(t, gw); got != apologyAuth {
		t.Errorf("expected auth apology, got %q", got)
	}
}

func TestDispatcherClassificationFailureApology(t *testing.T) {
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	gate := &stubGate{err: &models.ClassificationError{Err: models.NewCompletionError(models.CompletionErrorUnavailable, errors.New("429"))}}
	d := NewDispatcher(gw, store.NewInMemoryStore(), gate, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), textEvent("U1", "晚餐吃什麼"))

	if got := singleReply(t, gw); got != apologyUnavailable {
		t.Errorf("expected unavailable apology, got %q", got)
	}
}

func TestDispatcherUnknownCategoryClarifies(t *testing.T) {
	gw := messaging.NewMockGateway()
	gate := &stubGate{category: models.IntentUnknown}
	d := NewDispatcher(gw, store.NewInMemoryStore(), gate, NewComposer(&mockCompletionClient{}), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), textEvent("U1", "嗯嗯嗯"))

	if got := singleReply(t, gw); got != clarificationReply {
		t.Errorf("expected clarification, got %q", got)
	}
}

func TestDispatcherStoreSetFailureAnalyzesStatelessly(t *testing.T) {
	gw := messaging.NewMockGateway()
	gw.Content["m1"] = []byte("jpeg-bytes")
	client := &mockCompletionClient{}
	client.enqueue("這餐大約650大卡。", nil)
	st := &failingStore{InMemoryStore: store.NewInMemoryStore(), failSet: true}
	d := NewDispatcher(gw, st, &stubGate{}, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), imageEvent("U1", "m1"))

	if got := singleReply(t, gw); !strings.Contains(got, "大卡") {
		t.Errorf("expected immediate vision analysis, got %q", got)
	}
	if client.callCount() != 1 {
		t.Errorf("expected one vision call, got %d", client.callCount())
	}
}

func TestDispatcherStoreGetFailureReadsAsAbsent(t *testing.T) {
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	client.enqueue("一碗飯大約280大卡。", nil)
	gate := &stubGate{category: models.IntentNutrition}
	st := &failingStore{InMemoryStore: store.NewInMemoryStore(), failGet: true}
	d := NewDispatcher(gw, st, gate, NewComposer(client), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), textEvent("U1", "一碗飯熱量多少"))

	// The turn still completes through the plain nutrition path.
	if got := singleReply(t, gw); !strings.Contains(got, "大卡") {
		t.Errorf("expected nutrition reply despite store failure, got %q", got)
	}
}

func TestDispatcherDeliveryFailureSwallowed(t *testing.T) {
	gw := messaging.NewMockGateway()
	gw.ReplyErr = errors.New("token already consumed")
	gate := &stubGate{category: models.IntentUnrelated}
	d := NewDispatcher(gw, store.NewInMemoryStore(), gate, NewComposer(&mockCompletionClient{}), WithSynchronousDelivery())

	// Must not panic or retry.
	d.HandleEvent(context.Background(), textEvent("U1", "哈囉"))

	if len(gw.Replies()) != 0 {
		t.Error("expected no recorded replies when delivery fails")
	}
}

func TestDispatcherInvalidEventDropped(t *testing.T) {
	gw := messaging.NewMockGateway()
	d := NewDispatcher(gw, store.NewInMemoryStore(), &stubGate{}, NewComposer(&mockCompletionClient{}), WithSynchronousDelivery())

	d.HandleEvent(context.Background(), models.InboundEvent{ID: "bad", Type: models.EventTypeText})

	if len(gw.Replies()) != 0 {
		t.Error("expected no reply for invalid event")
	}
}

func TestDispatcherScheduledDelivery(t *testing.T) {
	gw := messaging.NewMockGateway()
	gate := &stubGate{category: models.IntentUnrelated}
	timer := NewSimpleTimer()
	d := NewDispatcher(gw, store.NewInMemoryStore(), gate, NewComposer(&mockCompletionClient{}),
		WithTimer(timer),
		WithPacer(NewPacer(time.Millisecond)))
	defer d.Stop()

	d.HandleEvent(context.Background(), textEvent("U1", "哈囉"))

	// The handling call returns before the reply is sent.
	deadline := time.After(time.Second)
	for len(gw.Replies()) == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduled reply never delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if len(gw.Replies()) != 1 {
		t.Errorf("expected one delivered reply, got %d", len(gw.Replies()))
	}
}

func TestDispatcherConcurrentPendingConsumption(t *testing.T) {
	// Two near-simultaneous text turns may both observe the pending image.
	// Accepted hazard: at most an extra completion call, never a crash.
	gw := messaging.NewMockGateway()
	client := &mockCompletionClient{}
	client.enqueue("大約650大卡。", nil)
	client.enqueue("大約650大卡。", nil)
	st := store.NewInMemoryStore()
	ctx := context.Background()
	if err := st.SetPendingImage(ctx, "U1", "aW1hZ2U=", time.Minute); err != nil {
		t.Fatalf("failed to seed pending image: %v", err)
	}
	d := NewDispatcher(gw, st, &stubGate{category: models.IntentUnrelated}, NewComposer(client), WithSynchronousDelivery())

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			d.HandleEvent(ctx, textEvent("U1", "這張圖片熱量多少？"))
			done <- struct{}{}
		}()
	}
	<-done
	<-done

	if got := len(gw.Replies()); got != 2 {
		t.Errorf("expected both turns to reply, got %d", got)
	}
	if pending, _ := st.GetPendingImage(ctx, "U1"); pending != nil {
		t.Error("expected pending image consumed after concurrent turns")
	}
}
