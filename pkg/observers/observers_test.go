package observers

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/signalcycle"
)

func startCycle(t *testing.T, observer signalcycle.Observer, timings ...int) (*signalcycle.Scheduler, *signalcycle.Store, *signalcycle.FakeClock) {
	t.Helper()
	scheduler, store, clock := signalcycle.NewTestScheduler()
	signalcycle.SetTimings(store, timings...)
	scheduler.AddObserver(observer)
	require.NoError(t, scheduler.Start())
	return scheduler, store, clock
}

func TestMetricsObserver_OneTurn(t *testing.T) {
	metrics := NewMetricsObserver()
	_, _, clock := startCycle(t, metrics, 10, 20, 30, 40)

	clock.Advance(10 * time.Second)

	assert.Equal(t, map[string]int{
		"Stopped->Green": 1,
		"Green->Yellow":  1,
		"Yellow->Green":  1,
	}, metrics.GetTransitionCounts())

	visits := metrics.GetPhaseVisitCounts()
	assert.Equal(t, 2, visits[signalcycle.PhaseGreen])
	assert.Equal(t, 1, visits[signalcycle.PhaseYellow])

	spent := metrics.GetPhaseTimeSpent()
	assert.Equal(t, 7*time.Second, spent[signalcycle.PhaseGreen])
	assert.Equal(t, 3*time.Second, spent[signalcycle.PhaseYellow])

	assert.Equal(t, map[int]int{1: 1, 2: 1}, metrics.GetTurnCounts())
	assert.Equal(t, 20*time.Second, metrics.GetGreenTime()[2])
}

func TestMetricsObserver_EmergencyAndReset(t *testing.T) {
	metrics := NewMetricsObserver()
	scheduler, store, clock := signalcycle.NewTestScheduler()
	signalcycle.SetTimings(store, 10, 20, 30, 40)
	store.Update(2, signalcycle.SignalUpdate{}.WithAmbulance(true))
	scheduler.AddObserver(metrics)
	require.NoError(t, scheduler.Start())

	clock.Advance(10 * time.Second)

	assert.Equal(t, 1, metrics.GetEmergencyCount())
	assert.Equal(t, 45*time.Second, metrics.GetGreenTime()[2])

	metrics.OnError(errors.New("boom"))
	assert.Equal(t, 1, metrics.GetErrorCount())

	metrics.Reset()
	assert.Empty(t, metrics.GetTransitionCounts())
	assert.Zero(t, metrics.GetEmergencyCount())
	assert.Zero(t, metrics.GetErrorCount())
}

func TestMetricsObserver_CountsRejectedStart(t *testing.T) {
	metrics := NewMetricsObserver()
	scheduler, _, _ := startCycle(t, metrics, 30, 30, 30, 30)

	assert.Error(t, scheduler.Start())
	assert.Equal(t, 1, metrics.GetRejectedCount())
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	scheduler, store, clock := signalcycle.NewTestScheduler()
	signalcycle.SetTimings(store, 10, 20, 30, 40)
	store.Update(2, signalcycle.SignalUpdate{}.WithAmbulance(true))
	scheduler.AddObserver(NewLoggingObserver(logger, "scheduler"))

	require.NoError(t, scheduler.Start())
	clock.Advance(10 * time.Second)
	require.NoError(t, scheduler.Stop())

	var messages []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		assert.Equal(t, "scheduler", entry["component"])
		messages = append(messages, entry["message"].(string))
	}

	assert.Contains(t, messages, "cycle started")
	assert.Contains(t, messages, "turn started")
	assert.Contains(t, messages, "yellow")
	assert.Contains(t, messages, "ambulance detected, extending green")
	assert.Contains(t, messages, "cycle stopped")
}

func TestLoggingObserver_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	observer := NewLoggingObserver(zerolog.New(&buf).Level(zerolog.WarnLevel), "")

	observer.OnYellow(signalcycle.Signal{ID: 1}, signalcycle.CycleState{})
	observer.OnCycleStarted(signalcycle.CycleState{})
	assert.Empty(t, buf.String())

	observer.OnError(errors.New("remote down"))
	assert.Contains(t, buf.String(), "remote down")
}

func TestValidationObserver_FullCycle(t *testing.T) {
	scheduler, store, clock := signalcycle.NewTestScheduler()
	signalcycle.SetTimings(store, 10, 10, 10, 10)
	validation := NewTableValidationObserver(scheduler.Transitions())
	scheduler.AddObserver(validation)

	require.NoError(t, scheduler.Start())
	clock.Advance(45 * time.Second)
	require.NoError(t, scheduler.Stop())

	assert.False(t, validation.HasViolations(), "violations: %v", validation.GetViolations())
	assert.Empty(t, validation.GetUnvisitedPhases())
}

func TestValidationObserver_Violations(t *testing.T) {
	validation := NewValidationObserver()
	validation.AddAllowedTransition(signalcycle.PhaseGreen, signalcycle.PhaseYellow)
	validation.AddExpectedPhase(signalcycle.PhaseYellow)

	running := signalcycle.CycleState{Running: true}
	validation.OnTransition(signalcycle.PhaseGreen, signalcycle.PhaseGreen,
		signalcycle.NewEvent("tick", 1, time.Now()), running)
	validation.OnTurnStart(signalcycle.Signal{ID: 3}, 20*time.Second, signalcycle.CycleState{EmergencyMode: true})

	assert.Len(t, validation.GetViolations(), 2)
	assert.Equal(t, []signalcycle.Phase{signalcycle.PhaseYellow}, validation.GetUnvisitedPhases())

	validation.Reset()
	assert.False(t, validation.HasViolations())
}
