package signalcycle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the light currently shown by a signal
type Status int

const (
	// StatusWaiting is shown while the cycle is stopped
	StatusWaiting Status = iota
	// StatusRed means the signal is holding traffic
	StatusRed
	// StatusYellow is the short warning phase before the turn passes on
	StatusYellow
	// StatusGreen means the signal owns the current turn
	StatusGreen
)

var statusNames = map[Status]string{
	StatusWaiting: "Waiting",
	StatusRed:     "Red",
	StatusYellow:  "Yellow",
	StatusGreen:   "Green",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus accepts the names used by the remote API, case-insensitively
func ParseStatus(name string) (Status, error) {
	for status, n := range statusNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return status, nil
		}
	}
	return StatusWaiting, NewParseError("status", fmt.Errorf("unknown status %q", name))
}

// MarshalJSON encodes the status by name
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Signal is the display state of one intersection control point
type Signal struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	VehicleCount      int    `json:"vehicle_count"`
	Timing            int    `json:"timing"`
	Status            Status `json:"status"`
	AmbulanceDetected bool   `json:"ambulance_detected"`
	Image             string `json:"image,omitempty"`
}

// SignalUpdate carries the fields to merge into a Signal. Nil fields are left untouched.
type SignalUpdate struct {
	Name              *string
	VehicleCount      *int
	Timing            *int
	Status            *Status
	AmbulanceDetected *bool
	Image             *string
}

// IsEmpty reports whether the update changes nothing
func (u SignalUpdate) IsEmpty() bool {
	return u.Name == nil && u.VehicleCount == nil && u.Timing == nil &&
		u.Status == nil && u.AmbulanceDetected == nil && u.Image == nil
}

// Apply returns s with every non-nil field of u copied over
func (u SignalUpdate) Apply(s Signal) Signal {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.VehicleCount != nil {
		s.VehicleCount = *u.VehicleCount
	}
	if u.Timing != nil {
		s.Timing = *u.Timing
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.AmbulanceDetected != nil {
		s.AmbulanceDetected = *u.AmbulanceDetected
	}
	if u.Image != nil {
		s.Image = *u.Image
	}
	return s
}

// WithVehicleCount sets the vehicle count field
func (u SignalUpdate) WithVehicleCount(n int) SignalUpdate {
	u.VehicleCount = &n
	return u
}

// WithTiming sets the timing field
func (u SignalUpdate) WithTiming(seconds int) SignalUpdate {
	u.Timing = &seconds
	return u
}

// WithStatus sets the status field
func (u SignalUpdate) WithStatus(status Status) SignalUpdate {
	u.Status = &status
	return u
}

// WithAmbulance sets the ambulance flag
func (u SignalUpdate) WithAmbulance(detected bool) SignalUpdate {
	u.AmbulanceDetected = &detected
	return u
}

// WithImage sets the image URL
func (u SignalUpdate) WithImage(url string) SignalUpdate {
	u.Image = &url
	return u
}

// WithName sets the display name
func (u SignalUpdate) WithName(name string) SignalUpdate {
	u.Name = &name
	return u
}
