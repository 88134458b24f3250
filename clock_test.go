package signalcycle

import (
	"testing"
	"time"
)

func TestFakeClock_RunsInDeadlineOrder(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	var fired []string

	clock.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	clock.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	clock.Advance(2 * time.Second)
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("Expected [a b], got %v", fired)
	}

	clock.Advance(time.Second)
	if len(fired) != 3 {
		t.Fatalf("Expected all three callbacks, got %v", fired)
	}
}

func TestFakeClock_ChainedCallbacks(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	count := 0

	var tick func()
	tick = func() {
		count++
		clock.AfterFunc(time.Second, tick)
	}
	clock.AfterFunc(time.Second, tick)

	clock.Advance(5 * time.Second)
	if count != 5 {
		t.Errorf("Expected 5 ticks, got %d", count)
	}
	if got := clock.Now(); !got.Equal(time.Unix(5, 0)) {
		t.Errorf("Expected virtual time 5s, got %s", got)
	}
}

func TestFakeClock_Stop(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	fired := false

	timer := clock.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Error("Expected first Stop to report cancellation")
	}
	if timer.Stop() {
		t.Error("Expected second Stop to report nothing to cancel")
	}

	clock.Advance(time.Minute)
	if fired {
		t.Error("Expected stopped timer not to fire")
	}
	if clock.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", clock.Pending())
	}
}

func TestFakeClock_NegativeDelay(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	clock.AfterFunc(-time.Second, func() {})

	delay, ok := clock.NextDeadline()
	if !ok || delay != 0 {
		t.Errorf("Expected negative delay to become 0, got %s", delay)
	}
}
