package remote

import (
	"fmt"
	"strconv"

	"github.com/anggasct/signalcycle"
)

// signalPayload is one entry of the GET /signals response. Every field is optional.
type signalPayload struct {
	Name              *string `json:"name"`
	VehicleCount      *int    `json:"vehicle_count"`
	Timing            *int    `json:"timing"`
	Status            *string `json:"status"`
	AmbulanceDetected *bool   `json:"ambulance_detected"`
	ImageURL          *string `json:"image_url"`
}

func (p signalPayload) toUpdate(resolve func(string) string) (signalcycle.SignalUpdate, error) {
	update := signalcycle.SignalUpdate{
		Name:              p.Name,
		VehicleCount:      p.VehicleCount,
		Timing:            p.Timing,
		AmbulanceDetected: p.AmbulanceDetected,
	}
	if p.Status != nil {
		status, err := signalcycle.ParseStatus(*p.Status)
		if err != nil {
			return update, err
		}
		update.Status = &status
	}
	if p.ImageURL != nil {
		image := resolve(*p.ImageURL)
		update.Image = &image
	}
	return update, nil
}

func parseSignalID(key string) (int, error) {
	id, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("signal id %q is not a number", key)
	}
	if id <= 0 {
		return 0, fmt.Errorf("signal id %d is not positive", id)
	}
	return id, nil
}

// UploadResult is the remote analysis of an uploaded image
type UploadResult struct {
	VehicleCount      int    `json:"vehicle_count"`
	AmbulanceDetected bool   `json:"ambulance_detected"`
	ImageURL          string `json:"image_url"`
}

// Update converts the result into the fields merged into the uploaded signal
func (r UploadResult) Update() signalcycle.SignalUpdate {
	update := signalcycle.SignalUpdate{}.
		WithVehicleCount(r.VehicleCount).
		WithAmbulance(r.AmbulanceDetected)
	if r.ImageURL != "" {
		update = update.WithImage(r.ImageURL)
	}
	return update
}

// TimingEntry is one signal's line of the POST /update-timings request
type TimingEntry struct {
	SignalID          int  `json:"signal_id"`
	VehicleCount      int  `json:"vehicle_count"`
	AmbulanceDetected bool `json:"ambulance_detected"`
	Timing            int  `json:"timing"`
}

// TimingEntries builds the request lines from signals and the timings to propose
func TimingEntries(signals []signalcycle.Signal, timings map[int]int) []TimingEntry {
	entries := make([]TimingEntry, 0, len(signals))
	for _, sig := range signals {
		timing, ok := timings[sig.ID]
		if !ok {
			timing = sig.Timing
		}
		entries = append(entries, TimingEntry{
			SignalID:          sig.ID,
			VehicleCount:      sig.VehicleCount,
			AmbulanceDetected: sig.AmbulanceDetected,
			Timing:            timing,
		})
	}
	return entries
}

type timingsRequest struct {
	Timings   []TimingEntry `json:"timings"`
	TotalTime int           `json:"total_time"`
}

// PushResult is the remote answer to a timing update
type PushResult struct {
	AmbulancePriority bool `json:"ambulance_priority"`
}
