package flow

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/lampapompa/line-nutrition-bot/internal/genai"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
	"github.com/lampapompa/line-nutrition-bot/internal/util"
)

// Token budgets per generation path. Nutrition answers stay short; vision
// answers carry a multi-line breakdown and get more room.
const (
	nutritionMaxTokens = 250
	emotionalMaxTokens = 80
	visionMaxTokens    = 500
)

// Composer builds the final reply text for each routing path. Completion
// failures never escape a path: they are mapped to one apology string per
// failure class, so the caller always gets a sendable reply.
type Composer struct {
	client genai.ClientInterface
}

// NewComposer creates a response composer over the given completion client.
func NewComposer(client genai.ClientInterface) *Composer {
	return &Composer{client: client}
}

// Vision analyzes a stored food photo against the user's question. The
// payload is the base64-encoded image bytes.
func (c *Composer) Vision(ctx context.Context, question, base64Payload string) models.ComposedReply {
	if question == "" {
		question = defaultVisionQuestion
	}
	text, err := c.client.GenerateWithOptions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(visionSystemPrompt),
		genai.VisionUserMessage(question, genai.ImageDataURL("image/jpeg", base64Payload)),
	}, genai.GenerateOptions{MaxTokens: visionMaxTokens})
	if err != nil {
		slog.Error("Composer.Vision: completion failed", "error", err)
		return c.Fallback(err)
	}
	return models.ComposedReply{Text: text, Source: models.ReplySourceVision}
}

// Nutrition answers a plain nutrition question.
func (c *Composer) Nutrition(ctx context.Context, text string) models.ComposedReply {
	answer, err := c.client.GenerateWithOptions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(nutritionSystemPrompt),
		openai.UserMessage(text),
	}, genai.GenerateOptions{MaxTokens: nutritionMaxTokens})
	if err != nil {
		slog.Error("Composer.Nutrition: completion failed", "error", err)
		return c.Fallback(err)
	}
	return models.ComposedReply{Text: answer, Source: models.ReplySourceNutrition}
}

// Emotional produces a brief empathetic acknowledgment.
func (c *Composer) Emotional(ctx context.Context, text string) models.ComposedReply {
	answer, err := c.client.GenerateWithOptions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(emotionalSystemPrompt),
		openai.UserMessage(text),
	}, genai.GenerateOptions{MaxTokens: emotionalMaxTokens})
	if err != nil {
		slog.Error("Composer.Emotional: completion failed", "error", err)
		return c.Fallback(err)
	}
	return models.ComposedReply{Text: answer, Source: models.ReplySourceEmotional}
}

// Unrelated picks one emoji uniformly at random. This path has no completion
// dependency and cannot fail.
func (c *Composer) Unrelated() models.ComposedReply {
	return models.ComposedReply{Text: util.PickString(emojiReplies), Source: models.ReplySourceUnrelated}
}

// Clarification handles text the classifier could not place in any category.
func (c *Composer) Clarification() models.ComposedReply {
	return models.ComposedReply{Text: clarificationReply, Source: models.ReplySourceClarification}
}

// ImageAck acknowledges a stored photo and invites a follow-up question.
func (c *Composer) ImageAck() models.ComposedReply {
	return models.ComposedReply{Text: imageAckReply, Source: models.ReplySourceImageAck}
}

// Fallback maps a collaborator error to the apology string for its failure
// class. The user always receives a reply in the bot's own voice, never a
// technical error.
func (c *Composer) Fallback(err error) models.ComposedReply {
	var text string
	switch models.CompletionKind(err) {
	case models.CompletionErrorAuth:
		text = apologyAuth
	case models.CompletionErrorUnavailable:
		text = apologyUnavailable
	default:
		text = apologyUnexpected
	}
	return models.ComposedReply{Text: text, Source: models.ReplySourceFallback}
}
