package signalcycle

// Phase is the scheduler's global state
type Phase int

const (
	// PhaseStopped is the initial and terminal phase; every signal shows Waiting
	PhaseStopped Phase = iota
	// PhaseGreen is the main part of a turn
	PhaseGreen
	// PhaseYellow is the end of a turn
	PhaseYellow
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "Stopped"
	case PhaseGreen:
		return "Green"
	case PhaseYellow:
		return "Yellow"
	default:
		return "Unknown"
	}
}

// ActionFunc runs while a transition is taken. Returning an error aborts the transition.
type ActionFunc func(tc *TurnContext) error

// GuardFunc decides whether a transition may be taken
type GuardFunc func(tc *TurnContext) bool

// Transition represents a phase change of the scheduler
type Transition struct {
	Source     Phase
	Target     Phase
	EventName  string
	Guard      GuardFunc
	GuardName  string
	Action     ActionFunc
	ActionName string
}

// NewTransition creates a new transition
func NewTransition(source, target Phase, eventName string) Transition {
	return Transition{
		Source:    source,
		Target:    target,
		EventName: eventName,
	}
}

// WithGuard adds a named guard condition to the transition
func (t Transition) WithGuard(name string, guard GuardFunc) Transition {
	t.Guard = guard
	t.GuardName = name
	return t
}

// WithAction adds a named action to the transition
func (t Transition) WithAction(name string, action ActionFunc) Transition {
	t.Action = action
	t.ActionName = name
	return t
}
