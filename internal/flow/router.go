package flow

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/lampapompa/line-nutrition-bot/internal/messaging"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
	"github.com/lampapompa/line-nutrition-bot/internal/store"
)

// sendTimeout bounds a scheduled reply send, which runs detached from the
// webhook request context.
const sendTimeout = 15 * time.Second

// Dispatcher routes inbound events through the conversational state machine:
// image events store a pending image and acknowledge it; text events either
// consume the pending image through the vision path or follow one of the
// three intent paths. Every handled event produces exactly one reply.
type Dispatcher struct {
	gateway   messaging.Gateway
	store     store.Store
	gate      IntentGate
	composer  *Composer
	pacer     *Pacer
	segmenter Segmenter
	timer     Timer
	ttl       time.Duration
	sync      bool
}

// DispatcherOption defines a configuration option for the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPendingImageTTL sets the pending-image time-to-live.
func WithPendingImageTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.ttl = ttl }
}

// WithPacer sets the humanization pacer.
func WithPacer(p *Pacer) DispatcherOption {
	return func(d *Dispatcher) { d.pacer = p }
}

// WithSegmenter sets the reply segmentation strategy.
func WithSegmenter(s Segmenter) DispatcherOption {
	return func(d *Dispatcher) { d.segmenter = s }
}

// WithTimer sets the scheduling timer for delayed sends.
func WithTimer(t Timer) DispatcherOption {
	return func(d *Dispatcher) { d.timer = t }
}

// WithSynchronousDelivery sends replies immediately with no humanization
// delay. Used in tests.
func WithSynchronousDelivery() DispatcherOption {
	return func(d *Dispatcher) { d.sync = true }
}

// NewDispatcher creates a webhook dispatcher with the default single-message
// segmenter, default pacing bands and a 300-second pending-image TTL.
func NewDispatcher(gateway messaging.Gateway, st store.Store, gate IntentGate, composer *Composer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		gateway:   gateway,
		store:     st,
		gate:      gate,
		composer:  composer,
		pacer:     NewPacer(DefaultDelayCap),
		segmenter: SingleMessageSegmenter{},
		timer:     NewSimpleTimer(),
		ttl:       models.DefaultPendingImageTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stop cancels all scheduled reply sends.
func (d *Dispatcher) Stop() {
	d.timer.Stop()
}

// HandleEvent runs one inbound event through the state machine. It never
// returns an error: every failure is converted into a user-visible reply or
// logged and swallowed, so the webhook response to the platform is always
// success.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev models.InboundEvent) {
	if err := ev.Validate(); err != nil {
		slog.Warn("Dispatcher.HandleEvent: dropping invalid event", "error", err, "event_id", ev.ID)
		return
	}

	slog.Debug("Dispatcher.HandleEvent: handling event", "event_id", ev.ID, "type", ev.Type, "user_id", ev.UserID)
	switch ev.Type {
	case models.EventTypeImage:
		d.handleImage(ctx, ev)
	case models.EventTypeText:
		d.handleText(ctx, ev)
	}
}

// handleImage downloads the uploaded image and stores it as the user's
// pending image. When the store cannot hold it, the photo is analyzed
// immediately with a default question instead of being dropped.
func (d *Dispatcher) handleImage(ctx context.Context, ev models.InboundEvent) {
	content, err := d.gateway.FetchContent(ctx, ev.MessageID)
	if err != nil || len(content) == 0 {
		slog.Error("Dispatcher.handleImage: failed to fetch image content", "error", err, "event_id", ev.ID)
		d.deliver(ev, d.composer.Fallback(err))
		return
	}

	payload := base64.StdEncoding.EncodeToString(content)
	if err := d.store.SetPendingImage(ctx, ev.UserID, payload, d.ttl); err != nil {
		// Degraded mode: no session state, so analyze right away.
		slog.Warn("Dispatcher.handleImage: store unavailable, analyzing statelessly", "error", err, "event_id", ev.ID)
		d.deliver(ev, d.composer.Vision(ctx, defaultVisionQuestion, payload))
		return
	}

	slog.Debug("Dispatcher.handleImage: pending image stored", "event_id", ev.ID, "user_id", ev.UserID, "ttl", d.ttl)
	d.deliver(ev, d.composer.ImageAck())
}

// handleText routes a text event. A pending image combined with a
// vision-keyword match or a NutritionRelated classification consumes the
// image through the vision path; otherwise the text follows its intent path.
func (d *Dispatcher) handleText(ctx context.Context, ev models.InboundEvent) {
	pending, err := d.store.GetPendingImage(ctx, ev.UserID)
	if err != nil {
		// Store failures read as "no pending image".
		slog.Warn("Dispatcher.handleText: store read failed, assuming no pending image", "error", err, "event_id", ev.ID)
		pending = nil
	}

	if pending != nil && containsVisionKeyword(ev.Text) {
		d.analyzePending(ctx, ev, pending)
		return
	}

	category, err := d.gate.Classify(ctx, ev.Text)
	if err != nil {
		slog.Error("Dispatcher.handleText: classification failed", "error", err, "event_id", ev.ID)
		d.deliver(ev, d.composer.Fallback(err))
		return
	}

	if pending != nil && category == models.IntentNutrition {
		d.analyzePending(ctx, ev, pending)
		return
	}

	var reply models.ComposedReply
	switch category {
	case models.IntentNutrition:
		reply = d.composer.Nutrition(ctx, ev.Text)
	case models.IntentEmotional:
		reply = d.composer.Emotional(ctx, ev.Text)
	case models.IntentUnrelated:
		reply = d.composer.Unrelated()
	default:
		reply = d.composer.Clarification()
	}
	d.deliver(ev, reply)
}

// analyzePending runs the vision path over the user's pending image and
// consumes it. The delete happens after composition so a composer crash
// cannot strand the turn with neither a reply nor the image.
func (d *Dispatcher) analyzePending(ctx context.Context, ev models.InboundEvent, pending *models.PendingImage) {
	reply := d.composer.Vision(ctx, ev.Text, pending.Base64Payload)
	if err := d.store.DeletePendingImage(ctx, ev.UserID); err != nil {
		// The record expires on its own; a failed delete only risks one
		// duplicate analysis.
		slog.Warn("Dispatcher.analyzePending: failed to delete pending image", "error", err, "user_id", ev.UserID)
	}
	d.deliver(ev, reply)
}

// deliver segments the reply, samples a humanization delay and schedules the
// send. Delivery failures are logged and swallowed: reply tokens are
// single-use and short-lived, so a retry cannot succeed.
func (d *Dispatcher) deliver(ev models.InboundEvent, reply models.ComposedReply) {
	messages := d.segmenter.Segment(reply.Text)
	if len(messages) == 0 {
		slog.Warn("Dispatcher.deliver: empty reply, nothing to send", "event_id", ev.ID, "source", reply.Source)
		return
	}

	if d.sync {
		d.send(ev, messages, reply.Source)
		return
	}

	delay := d.pacer.Delay(reply)
	slog.Debug("Dispatcher.deliver: scheduling reply", "event_id", ev.ID, "source", reply.Source, "delay", delay, "messages", len(messages))
	if _, err := d.timer.ScheduleAfter(delay, func() {
		d.send(ev, messages, reply.Source)
	}); err != nil {
		slog.Error("Dispatcher.deliver: failed to schedule reply, sending immediately", "error", err, "event_id", ev.ID)
		d.send(ev, messages, reply.Source)
	}
}

// send pushes the reply through the gateway with its own timeout, since the
// originating request context is long gone by the time a scheduled send runs.
func (d *Dispatcher) send(ev models.InboundEvent, messages []string, source models.ReplySource) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.gateway.Reply(ctx, ev.ReplyToken, messages); err != nil {
		derr := &models.DeliveryError{Err: err}
		slog.Error("Dispatcher.send: reply delivery failed", "error", derr, "event_id", ev.ID, "source", source)
		return
	}
	slog.Info("Dispatcher.send: reply delivered", "event_id", ev.ID, "user_id", ev.UserID, "source", source, "messages", len(messages))
}
