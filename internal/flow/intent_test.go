package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
)

func TestClassifierGateLabels(t *testing.T) {
	tests := []struct {
		label string
		want  models.IntentCategory
	}{
		{"NUTRITION", models.IntentNutrition},
		{"nutrition", models.IntentNutrition},
		{"標籤：NUTRITION", models.IntentNutrition},
		{"EMOTION", models.IntentEmotional},
		{"OTHER", models.IntentUnrelated},
		{"banana", models.IntentUnknown},
		{"", models.IntentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			client := &mockCompletionClient{}
			client.enqueue(tt.label, nil)
			gate := NewClassifierGate(client)

			got, err := gate.Classify(context.Background(), "今天吃了什麼")
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("label %q: expected %s, got %s", tt.label, tt.want, got)
			}
		})
	}
}

func TestClassifierGateZeroTemperature(t *testing.T) {
	client := &mockCompletionClient{}
	client.enqueue("NUTRITION", nil)
	gate := NewClassifierGate(client)

	if _, err := gate.Classify(context.Background(), "吃什麼"); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	call := client.lastCall(t)
	if call.opts.Temperature == nil || *call.opts.Temperature != 0 {
		t.Error("expected classification to pin temperature to zero")
	}
	if call.opts.MaxTokens != classifyMaxTokens {
		t.Errorf("expected max tokens %d, got %d", classifyMaxTokens, call.opts.MaxTokens)
	}
}

func TestClassifierGateError(t *testing.T) {
	client := &mockCompletionClient{}
	client.enqueue("", models.NewCompletionError(models.CompletionErrorAuth, errors.New("401")))
	gate := NewClassifierGate(client)

	got, err := gate.Classify(context.Background(), "吃什麼")
	if got != models.IntentUnknown {
		t.Errorf("expected unknown category on error, got %s", got)
	}
	var ce *models.ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClassificationError, got %v", err)
	}
	if models.CompletionKind(err) != models.CompletionErrorAuth {
		t.Error("expected completion kind to survive wrapping")
	}
}

func TestKeywordGate(t *testing.T) {
	gate := NewKeywordGate()
	ctx := context.Background()

	tests := []struct {
		text string
		want models.IntentCategory
	}{
		{"今天午餐吃了便當，熱量大概多少？", models.IntentNutrition},
		{"想減肥該怎麼辦", models.IntentNutrition},
		{"蛋白質一天要多少", models.IntentNutrition},
		{"哈囉", models.IntentUnrelated},
		{"今天天氣真好", models.IntentUnrelated},
	}
	for _, tt := range tests {
		got, err := gate.Classify(ctx, tt.text)
		if err != nil {
			t.Fatalf("KeywordGate must not error, got %v", err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.text, tt.want, got)
		}
	}
}

func TestFallbackGate(t *testing.T) {
	client := &mockCompletionClient{}
	client.enqueue("", models.NewCompletionError(models.CompletionErrorUnavailable, errors.New("down")))
	gate := &FallbackGate{Primary: NewClassifierGate(client), Secondary: NewKeywordGate()}

	got, err := gate.Classify(context.Background(), "熱量好高")
	if err != nil {
		t.Fatalf("expected fallback to absorb primary failure, got %v", err)
	}
	if got != models.IntentNutrition {
		t.Errorf("expected keyword fallback to classify nutrition, got %s", got)
	}
}

func TestContainsVisionKeyword(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"這張圖片熱量多少？", true},
		{"幫我分析一下", true},
		{"照片裡的東西健康嗎", true},
		{"哈囉", false},
		{"我好累", false},
	}
	for _, tt := range tests {
		if got := containsVisionKeyword(tt.text); got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.text, tt.want, got)
		}
	}
}
