package signalcycle

import (
	"sync"
	"testing"
	"time"
)

// TestObserver is a mock observer for testing that captures all observer events
type TestObserver struct {
	mutex       sync.RWMutex
	Transitions []TransitionEvent
	Turns       []TurnEvent
	Yellows     []SignalEvent
	Emergencies []SignalEvent
	Rejections  []RejectionEvent
	Errors      []error
	Started     []CycleState
	Stopped     []CycleState
}

type TransitionEvent struct {
	From  Phase
	To    Phase
	Event Event
	State CycleState
}

type TurnEvent struct {
	Signal   Signal
	Duration time.Duration
	State    CycleState
}

type SignalEvent struct {
	Signal Signal
	State  CycleState
}

type RejectionEvent struct {
	Event  Event
	Reason string
}

// NewTestObserver creates a new test observer
func NewTestObserver() *TestObserver {
	return &TestObserver{}
}

// Observer interface implementations
func (o *TestObserver) OnTransition(from Phase, to Phase, event Event, state CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = append(o.Transitions, TransitionEvent{From: from, To: to, Event: event, State: state})
}

func (o *TestObserver) OnTurnStart(signal Signal, duration time.Duration, state CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Turns = append(o.Turns, TurnEvent{Signal: signal, Duration: duration, State: state})
}

func (o *TestObserver) OnYellow(signal Signal, state CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Yellows = append(o.Yellows, SignalEvent{Signal: signal, State: state})
}

func (o *TestObserver) OnEmergency(signal Signal, state CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Emergencies = append(o.Emergencies, SignalEvent{Signal: signal, State: state})
}

func (o *TestObserver) OnEventRejected(event Event, reason string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Rejections = append(o.Rejections, RejectionEvent{Event: event, Reason: reason})
}

func (o *TestObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

func (o *TestObserver) OnCycleStarted(state CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Started = append(o.Started, state)
}

func (o *TestObserver) OnCycleStopped(state CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Stopped = append(o.Stopped, state)
}

// TurnOrder returns the ids of the signals that turned green, in order
func (o *TestObserver) TurnOrder() []int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	ids := make([]int, len(o.Turns))
	for i, turn := range o.Turns {
		ids[i] = turn.Signal.ID
	}
	return ids
}

// Reset clears all captured events
func (o *TestObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Transitions = nil
	o.Turns = nil
	o.Yellows = nil
	o.Emergencies = nil
	o.Rejections = nil
	o.Errors = nil
	o.Started = nil
	o.Stopped = nil
}

// NewTestScheduler creates a roster store and a scheduler on a fake clock
func NewTestScheduler() (*Scheduler, *Store, *FakeClock) {
	store := NewRosterStore()
	clock := NewFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	return NewScheduler(store, WithClock(clock)), store, clock
}

// SetTimings stores the given timings (seconds) in id order starting at 1
func SetTimings(store *Store, timings ...int) {
	for i, t := range timings {
		store.Update(i+1, SignalUpdate{}.WithTiming(t))
	}
}

// AssertStatuses checks every signal's status in id order
func AssertStatuses(t *testing.T, store *Store, expected ...Status) {
	t.Helper()
	signals := store.Snapshot()
	if len(signals) != len(expected) {
		t.Fatalf("Expected %d signals, got %d", len(expected), len(signals))
	}
	for i, sig := range signals {
		if sig.Status != expected[i] {
			t.Errorf("Expected signal %d to be %s, got %s", sig.ID, expected[i], sig.Status)
		}
	}
}

// AssertSingleGreen checks that exactly one signal is green and returns its id
func AssertSingleGreen(t *testing.T, store *Store) int {
	t.Helper()
	green := 0
	count := 0
	for _, sig := range store.Snapshot() {
		if sig.Status == StatusGreen {
			green = sig.ID
			count++
		}
	}
	if count != 1 {
		t.Fatalf("Expected exactly one green signal, got %d", count)
	}
	return green
}

// AssertPhase checks the scheduler's current phase
func AssertPhase(t *testing.T, s *Scheduler, expected Phase) {
	t.Helper()
	if actual := s.Phase(); actual != expected {
		t.Errorf("Expected phase %s, got %s", expected, actual)
	}
}
