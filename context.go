package signalcycle

// TurnContext is handed to guards and actions while the scheduler processes an event.
// Observer notifications queued on it are delivered after the scheduler releases its lock.
type TurnContext struct {
	scheduler *Scheduler
	event     Event
	notices   []func()
}

func newTurnContext(s *Scheduler, event Event) *TurnContext {
	return &TurnContext{
		scheduler: s,
		event:     event,
	}
}

// Event returns the event being processed
func (tc *TurnContext) Event() Event {
	return tc.event
}

// State returns the cycle state as it is right now
func (tc *TurnContext) State() CycleState {
	return tc.scheduler.state
}

// Store returns the signal store the scheduler drives
func (tc *TurnContext) Store() *Store {
	return tc.scheduler.store
}

// ActiveSignal returns the signal owning the current turn
func (tc *TurnContext) ActiveSignal() (Signal, error) {
	return tc.scheduler.store.Get(tc.scheduler.state.ActiveSignal)
}

func (tc *TurnContext) notify(fn func()) {
	tc.notices = append(tc.notices, fn)
}

func (tc *TurnContext) flush() {
	for _, fn := range tc.notices {
		fn()
	}
	tc.notices = nil
}
