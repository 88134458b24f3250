package signalcycle

import (
	"time"

	"github.com/google/uuid"
)

// Scheduler event names
const (
	EventStart         = "start"
	EventGreenExpired  = "green_expired"
	EventYellowExpired = "yellow_expired"
	EventStop          = "stop"
)

// Event is a trigger fed to the scheduler, either by the user or by a timer
type Event struct {
	ID         string
	Name       string
	Generation uint64
	Timestamp  time.Time
}

// NewEvent creates an event tagged with the cycle generation it belongs to
func NewEvent(name string, generation uint64, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		Generation: generation,
		Timestamp:  at,
	}
}

// EventResult represents the result of processing an event
type EventResult struct {
	Event           Event
	Processed       bool
	PreviousPhase   Phase
	CurrentPhase    Phase
	Error           error
	RejectionReason string
}

// NewEventResult creates a new event result
func NewEventResult(event Event, processed bool, prev, current Phase) *EventResult {
	return &EventResult{
		Event:         event,
		Processed:     processed,
		PreviousPhase: prev,
		CurrentPhase:  current,
	}
}

// WithError adds an error to the event result
func (r *EventResult) WithError(err error) *EventResult {
	r.Error = err
	return r
}

// WithRejection adds a rejection reason to the event result
func (r *EventResult) WithRejection(reason string) *EventResult {
	r.RejectionReason = reason
	r.Processed = false
	return r
}

// Success returns true if the event was processed successfully
func (r *EventResult) Success() bool {
	return r.Processed && r.Error == nil
}

// PhaseChanged reports whether the event moved the scheduler to another phase
func (r *EventResult) PhaseChanged() bool {
	return r.Processed && r.PreviousPhase != r.CurrentPhase
}
