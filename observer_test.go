package signalcycle

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type panickingObserver struct {
	BaseObserver
	errs []error
}

func (o *panickingObserver) OnTransition(from, to Phase, event Event, state CycleState) {
	panic("boom")
}

func (o *panickingObserver) OnError(err error) {
	o.errs = append(o.errs, err)
}

type minimalObserver struct {
	transitions int
}

func (o *minimalObserver) OnTransition(from, to Phase, event Event, state CycleState) {
	o.transitions++
}

func (o *minimalObserver) OnTurnStart(signal Signal, duration time.Duration, state CycleState) {}

func TestObserver_BasicInterface(t *testing.T) {
	var _ Observer = NewTestObserver()
	var _ ExtendedObserver = NewTestObserver()
	var _ ExtendedObserver = &BaseObserver{}
}

func TestObserverManager_PanicIsolated(t *testing.T) {
	om := NewObserverManager()
	bad := &panickingObserver{}
	good := NewTestObserver()
	om.AddObserver(bad)
	om.AddObserver(good)

	om.NotifyTransition(PhaseStopped, PhaseGreen, NewEvent(EventStart, 1, time.Now()), CycleState{})

	if len(good.Transitions) != 1 {
		t.Errorf("Expected the healthy observer to be notified, got %d", len(good.Transitions))
	}
	if len(bad.errs) != 1 || !strings.Contains(bad.errs[0].Error(), "OnTransition") {
		t.Errorf("Expected the panic to be reported to its observer, got %v", bad.errs)
	}
}

func TestObserverManager_ExtendedOnly(t *testing.T) {
	om := NewObserverManager()
	minimal := &minimalObserver{}
	om.AddObserver(minimal)

	om.NotifyYellow(Signal{ID: 1}, CycleState{})
	om.NotifyError(errors.New("ignored"))
	om.NotifyTransition(PhaseGreen, PhaseYellow, NewEvent(EventGreenExpired, 1, time.Now()), CycleState{})

	if minimal.transitions != 1 {
		t.Errorf("Expected 1 transition, got %d", minimal.transitions)
	}
}

func TestObserverManager_Remove(t *testing.T) {
	om := NewObserverManager()
	first := NewTestObserver()
	second := NewTestObserver()
	om.AddObserver(first)
	om.AddObserver(second)
	om.RemoveObserver(first)

	om.NotifyCycleStarted(CycleState{Running: true})

	if len(first.Started) != 0 {
		t.Error("Removed observer should not be notified")
	}
	if len(second.Started) != 1 {
		t.Error("Remaining observer should be notified")
	}
}

func TestObserver_NotifiedAfterLockReleased(t *testing.T) {
	scheduler, store, _ := NewTestScheduler()
	SetTimings(store, 20, 20, 20, 20)

	reentrant := &reentrantObserver{scheduler: scheduler}
	scheduler.AddObserver(reentrant)

	done := make(chan struct{})
	go func() {
		_ = scheduler.Start()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observer calling back into the scheduler deadlocked")
	}
	if reentrant.phase != PhaseGreen {
		t.Errorf("Expected observer to read phase Green, got %s", reentrant.phase)
	}
}

type reentrantObserver struct {
	BaseObserver
	scheduler *Scheduler
	phase     Phase
}

func (o *reentrantObserver) OnTransition(from, to Phase, event Event, state CycleState) {
	o.phase = o.scheduler.Phase()
}
