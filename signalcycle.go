// Package signalcycle models a four-way traffic signal demo: per-signal
// display state, the green-time policy derived from vehicle counts, and the
// red/green/yellow cycle that hands the green light from one signal to the
// next.
package signalcycle

import "time"

const (
	// DefaultTotalTime is the cycle budget in seconds used until the user changes it
	DefaultTotalTime = 120

	// MinimumGreen is the lower bound in seconds for a proportional green time
	MinimumGreen = 15

	// EmergencyGreen is the minimum green time in seconds for a signal with an ambulance
	EmergencyGreen = 45

	// YellowDuration is how long the yellow phase lasts at the end of each turn
	YellowDuration = 3 * time.Second

	// EmergencyAlertDuration is how long an emergency alert stays visible
	EmergencyAlertDuration = 5 * time.Second
)

// Roster is the fixed set of signals every dashboard starts with
var Roster = []Signal{
	{ID: 1, Name: "North Signal", Status: StatusWaiting},
	{ID: 2, Name: "South Signal", Status: StatusWaiting},
	{ID: 3, Name: "East Signal", Status: StatusWaiting},
	{ID: 4, Name: "West Signal", Status: StatusWaiting},
}

// Seconds converts a whole number of seconds to a time.Duration
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
