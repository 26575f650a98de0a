// Package flow implements the message-routing and response-shaping pipeline:
// intent gating, prompt construction, image/text session correlation, and
// humanized reply pacing.
package flow

import (
	"context"
	"time"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// IntentGate decides which category a text message falls into.
//
// Two strategies exist: ClassifierGate delegates to the completion service
// (primary), KeywordGate matches a fixed keyword list (cheap fallback).
type IntentGate interface {
	Classify(ctx context.Context, text string) (models.IntentCategory, error)
}

// Segmenter splits a composed reply into the messages actually sent.
type Segmenter interface {
	Segment(text string) []string
}

// Timer schedules functions to run after a delay. Scheduled sends keep the
// humanization delay off the webhook handling goroutine.
type Timer interface {
	ScheduleAfter(delay time.Duration, fn func()) (string, error)
	Cancel(id string) error
	Stop()
}
