// Package render draws the signal board: coloured text for terminals and an
// auto-refreshing HTML page.
package render

import (
	"time"

	"github.com/anggasct/signalcycle"
)

// Board is everything a view shows at one instant
type Board struct {
	Signals           []signalcycle.Signal   `json:"signals"`
	State             signalcycle.CycleState `json:"state"`
	Phase             string                 `json:"phase"`
	AmbulancePriority bool                   `json:"ambulance_priority"`
	Alert             *Alert                 `json:"alert,omitempty"`
	Error             string                 `json:"error,omitempty"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// Alert is an emergency banner that disappears at Expires
type Alert struct {
	SignalID   int       `json:"signal_id"`
	SignalName string    `json:"signal_name"`
	Expires    time.Time `json:"expires"`
}

// Active reports whether the alert is still shown at now
func (a *Alert) Active(now time.Time) bool {
	return a != nil && now.Before(a.Expires)
}

// Message is the banner text
func (a *Alert) Message() string {
	if a == nil {
		return ""
	}
	return "Ambulance detected at " + a.SignalName + "! Priority given."
}

// Green returns the signal currently holding a green light, if any
func (b Board) Green() (signalcycle.Signal, bool) {
	for _, sig := range b.Signals {
		if sig.Status == signalcycle.StatusGreen {
			return sig, true
		}
	}
	return signalcycle.Signal{}, false
}

// View presents the board
type View interface {
	Render(board Board) error
	ShowError(message string)
	ShowEmergency(signal signalcycle.Signal)
}

// Multi fans every call out to several views. Render returns the first error
// but still renders the remaining views.
type Multi []View

// Render implements View
func (m Multi) Render(board Board) error {
	var first error
	for _, v := range m {
		if v == nil {
			continue
		}
		if err := v.Render(board); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ShowError implements View
func (m Multi) ShowError(message string) {
	for _, v := range m {
		if v != nil {
			v.ShowError(message)
		}
	}
}

// ShowEmergency implements View
func (m Multi) ShowEmergency(signal signalcycle.Signal) {
	for _, v := range m {
		if v != nil {
			v.ShowEmergency(signal)
		}
	}
}
