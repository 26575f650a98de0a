package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"github.com/lampapompa/line-nutrition-bot/internal/genai"
	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

// classifyMaxTokens bounds the classifier response; a label is a single word.
const classifyMaxTokens = 8

// ClassifierGate classifies text by delegating to the completion service
// with a zero-temperature prompt constrained to three labels. Output outside
// the label set maps to IntentUnknown without an error; transport failures
// return IntentUnknown with a ClassificationError.
type ClassifierGate struct {
	client genai.ClientInterface
}

// NewClassifierGate creates a classifier-backed intent gate.
func NewClassifierGate(client genai.ClientInterface) *ClassifierGate {
	return &ClassifierGate{client: client}
}

// Classify asks the completion service for one of the three category labels.
func (g *ClassifierGate) Classify(ctx context.Context, text string) (models.IntentCategory, error) {
	zero := 0.0
	label, err := g.client.GenerateWithOptions(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classificationSystemPrompt),
		openai.UserMessage(text),
	}, genai.GenerateOptions{Temperature: &zero, MaxTokens: classifyMaxTokens})
	if err != nil {
		slog.Error("ClassifierGate.Classify: completion failed", "error", err)
		return models.IntentUnknown, &models.ClassificationError{Err: err}
	}

	category := parseIntentLabel(label)
	slog.Debug("ClassifierGate.Classify: classified message", "label", label, "category", category)
	return category, nil
}

// parseIntentLabel maps raw classifier output to a category. Matching is
// lenient about case and surrounding text; anything unrecognized is Unknown.
func parseIntentLabel(label string) models.IntentCategory {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	switch {
	case strings.Contains(normalized, "NUTRITION"):
		return models.IntentNutrition
	case strings.Contains(normalized, "EMOTION"):
		return models.IntentEmotional
	case strings.Contains(normalized, "OTHER"):
		return models.IntentUnrelated
	default:
		return models.IntentUnknown
	}
}

// KeywordGate is the cheap fallback strategy: text containing any nutrition
// keyword is NutritionRelated, everything else is Unrelated. It never errors
// and never produces the emotional category.
type KeywordGate struct{}

// NewKeywordGate creates a keyword-backed intent gate.
func NewKeywordGate() *KeywordGate {
	return &KeywordGate{}
}

// Classify matches the fixed nutrition keyword list.
func (g *KeywordGate) Classify(_ context.Context, text string) (models.IntentCategory, error) {
	for _, kw := range nutritionKeywords {
		if strings.Contains(text, kw) {
			return models.IntentNutrition, nil
		}
	}
	return models.IntentUnrelated, nil
}

// FallbackGate tries a primary gate and falls back to a secondary one when
// the primary fails. Wired as ClassifierGate over KeywordGate, it keeps
// intent gating alive while the completion service is unreachable.
type FallbackGate struct {
	Primary   IntentGate
	Secondary IntentGate
}

// Classify delegates to the primary gate, then the secondary on error.
func (g *FallbackGate) Classify(ctx context.Context, text string) (models.IntentCategory, error) {
	category, err := g.Primary.Classify(ctx, text)
	if err == nil {
		return category, nil
	}
	slog.Warn("FallbackGate.Classify: primary gate failed, using fallback", "error", err)
	return g.Secondary.Classify(ctx, text)
}

// containsVisionKeyword reports whether text looks like a question about a
// stored photo.
func containsVisionKeyword(text string) bool {
	for _, kw := range visionKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
