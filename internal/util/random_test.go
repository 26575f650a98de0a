package util

import (
	"testing"
	"time"
)

func TestDurationBetweenBounds(t *testing.T) {
	min, max := 3*time.Second, 5*time.Second
	for i := 0; i < 1000; i++ {
		d := DurationBetween(min, max)
		if d < min || d >= max {
			t.Fatalf("DurationBetween(%v, %v) = %v, out of range", min, max, d)
		}
	}
}

func TestDurationBetweenDegenerateRange(t *testing.T) {
	if d := DurationBetween(5*time.Second, 5*time.Second); d != 5*time.Second {
		t.Errorf("equal bounds: got %v, want 5s", d)
	}
	if d := DurationBetween(5*time.Second, 3*time.Second); d != 5*time.Second {
		t.Errorf("inverted bounds: got %v, want min", d)
	}
}

func TestPickStringMembership(t *testing.T) {
	items := []string{"a", "b", "c"}
	seen := make(map[string]bool)
	for i := 0; i < 300; i++ {
		v := PickString(items)
		switch v {
		case "a", "b", "c":
			seen[v] = true
		default:
			t.Fatalf("PickString returned %q, not a member", v)
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected all members to appear over 300 draws, saw %d", len(seen))
	}
}

func TestPickStringEmpty(t *testing.T) {
	if v := PickString(nil); v != "" {
		t.Errorf("PickString(nil) = %q, want empty string", v)
	}
}
