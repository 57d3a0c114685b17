package sched

import (
	"testing"
	"time"
)

func TestPeriodicTimerFirstFireAfterInterval(t *testing.T) {
	tm := NewPeriodicTimer(20*time.Second, 0)
	if tm.Poll(19999 * time.Millisecond) {
		t.Fatal("fired before interval elapsed")
	}
	if !tm.Poll(20 * time.Second) {
		t.Fatal("did not fire at exactly one interval")
	}
	if tm.Poll(20*time.Second + time.Millisecond) {
		t.Fatal("fired twice in one interval")
	}
}

func TestPeriodicTimerNoBacklog(t *testing.T) {
	tm := NewPeriodicTimer(time.Second, 0)

	// Loop stalled for 5.5 intervals: one fire, missed time not replayed.
	if !tm.Poll(5500 * time.Millisecond) {
		t.Fatal("expected fire after stall")
	}
	fires := 0
	for now := 5500 * time.Millisecond; now < 6500*time.Millisecond; now += 10 * time.Millisecond {
		if tm.Poll(now) {
			fires++
		}
	}
	if fires != 0 {
		t.Fatalf("got %d catch-up fires, want 0", fires)
	}
	if !tm.Poll(6500 * time.Millisecond) {
		t.Fatal("next fire should be one interval after the late fire")
	}
}

func TestPeriodicTimerOneFirePerIntervalAtFastPassRate(t *testing.T) {
	tm := NewPeriodicTimer(100*time.Millisecond, 0)
	fires := 0
	for now := time.Duration(0); now <= time.Second; now += 10 * time.Millisecond {
		if tm.Poll(now) {
			fires++
		}
	}
	if fires != 10 {
		t.Fatalf("fires = %d, want 10", fires)
	}
}

func TestPeriodicTimerShouldFireDoesNotReset(t *testing.T) {
	tm := NewPeriodicTimer(time.Second, 0)
	if !tm.ShouldFire(2*time.Second) || !tm.ShouldFire(2*time.Second) {
		t.Fatal("ShouldFire must be idempotent")
	}
	tm.Reset(2 * time.Second)
	if tm.ShouldFire(2500 * time.Millisecond) {
		t.Fatal("fired after reset before interval")
	}
	if got := tm.Due(2500 * time.Millisecond); got != 500*time.Millisecond {
		t.Fatalf("Due = %v, want 500ms", got)
	}
}
