package signalcycle

import (
	"fmt"
	"sync"
	"time"
)

// CycleState is the scheduler's view of the running cycle
type CycleState struct {
	TotalTime     int       `json:"total_time"`
	CurrentIndex  int       `json:"current_index"`
	EmergencyMode bool      `json:"emergency_mode"`
	Running       bool      `json:"running"`
	Generation    uint64    `json:"generation"`
	ActiveSignal  int       `json:"active_signal"`
	PhaseDeadline time.Time `json:"phase_deadline"`
}

// Scheduler drives the red/green/yellow cycle over the signals of a Store.
// Only one signal owns the turn at a time; each turn is Green, then Yellow,
// then the next signal in id order.
type Scheduler struct {
	store       *Store
	clock       Clock
	observers   *ObserverManager
	transitions map[Phase][]Transition
	phase       Phase
	state       CycleState
	order       []int
	pending     Timer
	mutex       sync.Mutex
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock, typically with a FakeClock in tests
func WithClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithTotalTime sets the initial cycle budget in seconds
func WithTotalTime(seconds int) SchedulerOption {
	return func(s *Scheduler) {
		s.state.TotalTime = seconds
	}
}

// NewScheduler creates a stopped scheduler over the given store
func NewScheduler(store *Store, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:     store,
		clock:     RealClock{},
		observers: NewObserverManager(),
		phase:     PhaseStopped,
		state:     CycleState{TotalTime: DefaultTotalTime},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transitions = s.buildTransitions()
	return s
}

func (s *Scheduler) buildTransitions() map[Phase][]Transition {
	table := []Transition{
		NewTransition(PhaseStopped, PhaseGreen, EventStart).
			WithAction("beginTurn", s.startCycle),
		NewTransition(PhaseGreen, PhaseYellow, EventGreenExpired).
			WithGuard("isLive", s.isLive).
			WithAction("toYellow", s.toYellow),
		NewTransition(PhaseYellow, PhaseGreen, EventYellowExpired).
			WithGuard("isLive", s.isLive).
			WithAction("advance", s.advance),
		NewTransition(PhaseStopped, PhaseStopped, EventStop).
			WithAction("halt", s.halt),
		NewTransition(PhaseGreen, PhaseStopped, EventStop).
			WithAction("halt", s.halt),
		NewTransition(PhaseYellow, PhaseStopped, EventStop).
			WithAction("halt", s.halt),
	}

	transitions := make(map[Phase][]Transition)
	for _, t := range table {
		transitions[t.Source] = append(transitions[t.Source], t)
	}
	return transitions
}

// AddObserver registers an observer
func (s *Scheduler) AddObserver(observer Observer) {
	s.observers.AddObserver(observer)
}

// RemoveObserver unregisters an observer
func (s *Scheduler) RemoveObserver(observer Observer) {
	s.observers.RemoveObserver(observer)
}

// Start begins cycling from the first signal. It fails if the cycle is already running.
func (s *Scheduler) Start() error {
	result := s.handle(NewEvent(EventStart, 0, s.clock.Now()))
	if result.Error != nil {
		return result.Error
	}
	if !result.Processed {
		return NewSchedulerError(ErrCodeAlreadyRunning, "Start", result.RejectionReason)
	}
	return nil
}

// Stop cancels the pending transition and puts every signal back to Waiting.
// Stopping a stopped scheduler is allowed.
func (s *Scheduler) Stop() error {
	return s.handle(NewEvent(EventStop, 0, s.clock.Now())).Error
}

// Running reports whether the cycle is running
func (s *Scheduler) Running() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state.Running
}

// Phase returns the current phase
func (s *Scheduler) Phase() Phase {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.phase
}

// State returns a copy of the cycle state
func (s *Scheduler) State() CycleState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// SetTotalTime changes the cycle budget. It does not touch stored timings.
func (s *Scheduler) SetTotalTime(seconds int) error {
	if seconds <= 0 {
		return NewValidationError("total time", seconds, "must be a positive number of seconds")
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state.TotalTime = seconds
	return nil
}

// Transitions returns the transition table in declaration order
func (s *Scheduler) Transitions() []Transition {
	var out []Transition
	for _, phase := range []Phase{PhaseStopped, PhaseGreen, PhaseYellow} {
		out = append(out, s.transitions[phase]...)
	}
	return out
}

// handle processes one event and delivers the resulting notifications once the lock is released
func (s *Scheduler) handle(event Event) *EventResult {
	s.mutex.Lock()
	tc := newTurnContext(s, event)
	result := s.process(tc)
	s.mutex.Unlock()

	tc.flush()
	return result
}

func (s *Scheduler) process(tc *TurnContext) *EventResult {
	event := tc.event
	previous := s.phase

	transition, ok := s.findTransition(tc)
	if !ok {
		reason := fmt.Sprintf("no valid transition for event '%s' in phase %s", event.Name, previous)
		tc.notify(func() { s.observers.NotifyEventRejected(event, reason) })
		return NewEventResult(event, false, previous, previous).WithRejection(reason)
	}

	if transition.Action != nil {
		if err := safeExecuteAction(transition.Action, tc); err != nil {
			tc.notify(func() { s.observers.NotifyError(err) })
			return NewEventResult(event, false, previous, previous).WithError(err)
		}
	}

	s.phase = transition.Target
	if previous == PhaseStopped && transition.Target == PhaseStopped {
		return NewEventResult(event, true, previous, previous)
	}
	state := s.state
	tc.notify(func() { s.observers.NotifyTransition(previous, transition.Target, event, state) })

	return NewEventResult(event, true, previous, transition.Target)
}

func (s *Scheduler) findTransition(tc *TurnContext) (Transition, bool) {
	for _, t := range s.transitions[s.phase] {
		if t.EventName != tc.event.Name {
			continue
		}
		if t.Guard != nil && !safeEvaluateGuard(t.Guard, tc) {
			continue
		}
		return t, true
	}
	return Transition{}, false
}

// isLive rejects timer events left over from an earlier run of the cycle
func (s *Scheduler) isLive(tc *TurnContext) bool {
	return s.state.Running && tc.event.Generation == s.state.Generation
}

func (s *Scheduler) startCycle(tc *TurnContext) error {
	order := s.store.IDs()
	if len(order) == 0 {
		return NewSchedulerError(ErrCodeNoSignals, "Start", "store holds no signals")
	}

	s.order = order
	s.state.Running = true
	s.state.CurrentIndex = 0
	s.state.Generation++

	state := s.state
	tc.notify(func() { s.observers.NotifyCycleStarted(state) })

	return s.beginTurn(tc)
}

// beginTurn makes the current signal Green and every other signal Red, then
// schedules the yellow phase.
func (s *Scheduler) beginTurn(tc *TurnContext) error {
	id := s.order[s.state.CurrentIndex]
	s.store.SetStatuses(id, StatusGreen, StatusRed)

	sig, err := s.store.Get(id)
	if err != nil {
		return err
	}

	seconds, emergency := EffectiveDuration(sig)
	turn := Seconds(seconds)
	s.state.ActiveSignal = id
	s.state.EmergencyMode = emergency
	s.schedule(EventGreenExpired, turn-YellowDuration)

	state := s.state
	tc.notify(func() { s.observers.NotifyTurnStart(sig, turn, state) })
	return nil
}

func (s *Scheduler) toYellow(tc *TurnContext) error {
	sig := s.store.Update(s.state.ActiveSignal, SignalUpdate{}.WithStatus(StatusYellow))
	s.schedule(EventYellowExpired, YellowDuration)

	state := s.state
	tc.notify(func() { s.observers.NotifyYellow(sig, state) })
	return nil
}

func (s *Scheduler) advance(tc *TurnContext) error {
	s.state.CurrentIndex = (s.state.CurrentIndex + 1) % len(s.order)

	next, err := s.store.Get(s.order[s.state.CurrentIndex])
	if err != nil {
		return err
	}
	if next.AmbulanceDetected {
		state := s.state
		tc.notify(func() { s.observers.NotifyEmergency(next, state) })
	}
	return s.beginTurn(tc)
}

func (s *Scheduler) halt(tc *TurnContext) error {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}

	wasRunning := s.state.Running
	s.state.Running = false
	s.state.Generation++
	s.state.CurrentIndex = 0
	s.state.EmergencyMode = false
	s.state.ActiveSignal = 0
	s.state.PhaseDeadline = time.Time{}
	s.store.SetStatuses(0, StatusWaiting, StatusWaiting)

	if wasRunning {
		state := s.state
		tc.notify(func() { s.observers.NotifyCycleStopped(state) })
	}
	return nil
}

// schedule arranges for eventName to fire after delay. Negative delays fire immediately.
func (s *Scheduler) schedule(eventName string, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	if s.pending != nil {
		s.pending.Stop()
	}

	generation := s.state.Generation
	s.state.PhaseDeadline = s.clock.Now().Add(delay)
	s.pending = s.clock.AfterFunc(delay, func() {
		s.handle(NewEvent(eventName, generation, s.clock.Now()))
	})
}

// safeEvaluateGuard safely evaluates a guard function with panic recovery
func safeEvaluateGuard(guard GuardFunc, tc *TurnContext) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			result = false
		}
	}()
	return guard(tc)
}

// safeExecuteAction safely executes an action function with panic recovery
func safeExecuteAction(action ActionFunc, tc *TurnContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return action(tc)
}
