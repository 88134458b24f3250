package observers

import (
	"fmt"
	"sync"
	"time"

	"github.com/anggasct/signalcycle"
)

// ValidationObserver checks the cycle against a set of allowed phase changes
type ValidationObserver struct {
	expectedPhases     map[signalcycle.Phase]bool
	visitedPhases      map[signalcycle.Phase]bool
	allowedTransitions map[signalcycle.Phase]map[signalcycle.Phase]bool
	violations         []string
	mutex              sync.RWMutex
}

// NewValidationObserver creates a new validation observer
func NewValidationObserver() *ValidationObserver {
	return &ValidationObserver{
		expectedPhases:     make(map[signalcycle.Phase]bool),
		visitedPhases:      make(map[signalcycle.Phase]bool),
		allowedTransitions: make(map[signalcycle.Phase]map[signalcycle.Phase]bool),
		violations:         make([]string, 0),
	}
}

// NewTableValidationObserver allows exactly the transitions of table and expects every target phase
func NewTableValidationObserver(table []signalcycle.Transition) *ValidationObserver {
	o := NewValidationObserver()
	for _, t := range table {
		o.AddAllowedTransition(t.Source, t.Target)
		o.AddExpectedPhase(t.Target)
	}
	return o
}

// AddExpectedPhase adds a phase the cycle should reach
func (o *ValidationObserver) AddExpectedPhase(phase signalcycle.Phase) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedPhases[phase] = true
}

// AddAllowedTransition adds an allowed transition
func (o *ValidationObserver) AddAllowedTransition(from, to signalcycle.Phase) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[signalcycle.Phase]bool)
	}
	o.allowedTransitions[from][to] = true
}

func (o *ValidationObserver) addViolation(message string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, message)
}

// OnTransition validates transitions
func (o *ValidationObserver) OnTransition(from, to signalcycle.Phase, event signalcycle.Event, state signalcycle.CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedPhases[to] = true

	if !o.allowedTransitions[from][to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"Invalid transition from '%s' to '%s' on event '%s'", from, to, event.Name))
	}
	if to != signalcycle.PhaseStopped && !state.Running {
		o.violations = append(o.violations, fmt.Sprintf(
			"Entered '%s' while the cycle is not running", to))
	}
}

// OnTurnStart validates the green duration
func (o *ValidationObserver) OnTurnStart(signal signalcycle.Signal, duration time.Duration, state signalcycle.CycleState) {
	if duration < 0 {
		o.addViolation(fmt.Sprintf("Signal %d got a negative green time %s", signal.ID, duration))
	}
	if state.EmergencyMode && duration < signalcycle.Seconds(signalcycle.EmergencyGreen) {
		o.addViolation(fmt.Sprintf("Signal %d has an ambulance but only %s of green", signal.ID, duration))
	}
}

// OnYellow implements signalcycle.ExtendedObserver
func (o *ValidationObserver) OnYellow(signal signalcycle.Signal, state signalcycle.CycleState) {}

// OnEmergency implements signalcycle.ExtendedObserver
func (o *ValidationObserver) OnEmergency(signal signalcycle.Signal, state signalcycle.CycleState) {}

// OnEventRejected implements signalcycle.ExtendedObserver
func (o *ValidationObserver) OnEventRejected(event signalcycle.Event, reason string) {}

// OnError records errors as violations
func (o *ValidationObserver) OnError(err error) {
	o.addViolation(fmt.Sprintf("Error occurred: %v", err))
}

// OnCycleStarted implements signalcycle.ExtendedObserver
func (o *ValidationObserver) OnCycleStarted(state signalcycle.CycleState) {}

// OnCycleStopped implements signalcycle.ExtendedObserver
func (o *ValidationObserver) OnCycleStopped(state signalcycle.CycleState) {}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedPhases returns phases that were expected but not reached
func (o *ValidationObserver) GetUnvisitedPhases() []signalcycle.Phase {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []signalcycle.Phase
	for phase := range o.expectedPhases {
		if !o.visitedPhases[phase] {
			unvisited = append(unvisited, phase)
		}
	}
	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedPhases = make(map[signalcycle.Phase]bool)
	o.violations = make([]string, 0)
}
