package flow

import (
	"strings"
	"testing"
)

func TestSingleMessageSegmenter(t *testing.T) {
	var s SingleMessageSegmenter

	got := s.Segment("第一句。第二句！第三句？")
	if len(got) != 1 || got[0] != "第一句。第二句！第三句？" {
		t.Errorf("expected one untouched message, got %v", got)
	}
	if got := s.Segment(""); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
}

func TestPunctuationSegmenterSplits(t *testing.T) {
	var s PunctuationSegmenter

	got := s.Segment("先吃蔬菜。再吃蛋白質！最後吃澱粉？")
	want := []string{"先吃蔬菜。", "再吃蛋白質！", "最後吃澱粉？"}
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestPunctuationSegmenterNoTerminator(t *testing.T) {
	var s PunctuationSegmenter

	got := s.Segment("沒有標點的一句話")
	if len(got) != 1 || got[0] != "沒有標點的一句話" {
		t.Errorf("expected single segment, got %v", got)
	}
}

func TestPunctuationSegmenterCapsAtFive(t *testing.T) {
	var s PunctuationSegmenter

	text := strings.Repeat("一句話。", 8)
	got := s.Segment(text)
	if len(got) != MaxSegments {
		t.Fatalf("expected %d segments, got %d", MaxSegments, len(got))
	}
	// Overflow folds into the final segment, so no text is lost.
	if joined := strings.Join(got, ""); joined != text {
		t.Errorf("expected all text preserved, got %q", joined)
	}
}

func TestPunctuationSegmenterDropsBlankSegments(t *testing.T) {
	var s PunctuationSegmenter

	got := s.Segment("第一句。\n\n第二句。\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d: %q", len(got), got)
	}
}
