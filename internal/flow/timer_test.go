package flow

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimpleTimerFires(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	if _, err := timer.ScheduleAfter(5*time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled function did not fire")
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var fired atomic.Bool
	id, err := timer.ScheduleAfter(20*time.Millisecond, func() { fired.Store(true) })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled timer still fired")
	}
	if err := timer.Cancel("timer_unknown"); err != nil {
		t.Errorf("cancelling unknown timer must not error, got %v", err)
	}
}

func TestSimpleTimerStopCancelsAll(t *testing.T) {
	timer := NewSimpleTimer()

	var fired atomic.Int32
	for i := 0; i < 3; i++ {
		if _, err := timer.ScheduleAfter(20*time.Millisecond, func() { fired.Add(1) }); err != nil {
			t.Fatalf("ScheduleAfter failed: %v", err)
		}
	}
	if timer.ActiveCount() != 3 {
		t.Errorf("expected 3 active timers, got %d", timer.ActiveCount())
	}

	timer.Stop()
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("expected no timers to fire after Stop, got %d", fired.Load())
	}
	if timer.ActiveCount() != 0 {
		t.Errorf("expected 0 active timers after Stop, got %d", timer.ActiveCount())
	}
}
