package signalcycle

import (
	"encoding/json"
	"testing"
)

func TestStatus_ParseNames(t *testing.T) {
	for _, name := range []string{"Green", "green", " RED ", "Yellow", "waiting"} {
		if _, err := ParseStatus(name); err != nil {
			t.Errorf("Expected %q to parse, got: %v", name, err)
		}
	}

	if _, err := ParseStatus("blue"); !IsParseError(err) {
		t.Errorf("Expected parse error for unknown status, got: %v", err)
	}
}

func TestStatus_JSON(t *testing.T) {
	sig := Signal{ID: 2, Name: "South Signal", Status: StatusYellow}

	data, err := json.Marshal(sig)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var decoded Signal
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if decoded.Status != StatusYellow {
		t.Errorf("Expected Yellow, got %s", decoded.Status)
	}
}

func TestSignalUpdate_Apply(t *testing.T) {
	base := Signal{ID: 1, Name: "North Signal", VehicleCount: 4, Timing: 30}

	if got := (SignalUpdate{}).Apply(base); got != base {
		t.Errorf("Expected empty update to change nothing, got %+v", got)
	}
	if !(SignalUpdate{}).IsEmpty() {
		t.Error("Expected zero update to be empty")
	}

	got := SignalUpdate{}.WithVehicleCount(0).WithStatus(StatusRed).Apply(base)
	if got.VehicleCount != 0 || got.Status != StatusRed || got.Timing != 30 {
		t.Errorf("Unexpected merge result %+v", got)
	}
}
