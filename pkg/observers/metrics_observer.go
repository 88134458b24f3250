package observers

import (
	"sync"
	"time"

	"github.com/anggasct/signalcycle"
)

// MetricsObserver collects metrics about the signal cycle
type MetricsObserver struct {
	phaseVisits      map[signalcycle.Phase]int
	phaseTimeSpent   map[signalcycle.Phase]time.Duration
	transitionCounts map[string]int
	turns            map[int]int
	greenTime        map[int]time.Duration
	emergencies      int
	rejected         int
	errorCount       int
	lastPhase        signalcycle.Phase
	lastEntry        time.Time
	mutex            sync.RWMutex
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{}
	o.reset()
	return o
}

func (o *MetricsObserver) reset() {
	o.phaseVisits = make(map[signalcycle.Phase]int)
	o.phaseTimeSpent = make(map[signalcycle.Phase]time.Duration)
	o.transitionCounts = make(map[string]int)
	o.turns = make(map[int]int)
	o.greenTime = make(map[int]time.Duration)
	o.emergencies = 0
	o.rejected = 0
	o.errorCount = 0
	o.lastPhase = signalcycle.PhaseStopped
	o.lastEntry = time.Time{}
}

// OnTransition records transition metrics. Time in phase is measured on event timestamps,
// so it follows whatever clock drives the scheduler.
func (o *MetricsObserver) OnTransition(from, to signalcycle.Phase, event signalcycle.Event, state signalcycle.CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.lastEntry.IsZero() && o.lastPhase == from {
		o.phaseTimeSpent[from] += event.Timestamp.Sub(o.lastEntry)
	}
	o.lastPhase = to
	o.lastEntry = event.Timestamp

	o.phaseVisits[to]++
	o.transitionCounts[from.String()+"->"+to.String()]++
}

// OnTurnStart records which signal got the turn and for how long
func (o *MetricsObserver) OnTurnStart(signal signalcycle.Signal, duration time.Duration, state signalcycle.CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.turns[signal.ID]++
	o.greenTime[signal.ID] += duration
}

// OnYellow implements signalcycle.ExtendedObserver
func (o *MetricsObserver) OnYellow(signal signalcycle.Signal, state signalcycle.CycleState) {}

// OnEmergency counts ambulance turns
func (o *MetricsObserver) OnEmergency(signal signalcycle.Signal, state signalcycle.CycleState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.emergencies++
}

// OnEventRejected counts rejected events
func (o *MetricsObserver) OnEventRejected(event signalcycle.Event, reason string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.rejected++
}

// OnError records error metrics
func (o *MetricsObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.errorCount++
}

// OnCycleStarted implements signalcycle.ExtendedObserver
func (o *MetricsObserver) OnCycleStarted(state signalcycle.CycleState) {}

// OnCycleStopped implements signalcycle.ExtendedObserver
func (o *MetricsObserver) OnCycleStopped(state signalcycle.CycleState) {}

// GetPhaseVisitCounts returns the number of times each phase was entered
func (o *MetricsObserver) GetPhaseVisitCounts() map[signalcycle.Phase]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[signalcycle.Phase]int, len(o.phaseVisits))
	for phase, count := range o.phaseVisits {
		result[phase] = count
	}
	return result
}

// GetPhaseTimeSpent returns the time spent in each completed phase
func (o *MetricsObserver) GetPhaseTimeSpent() map[signalcycle.Phase]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[signalcycle.Phase]time.Duration, len(o.phaseTimeSpent))
	for phase, d := range o.phaseTimeSpent {
		result[phase] = d
	}
	return result
}

// GetTransitionCounts returns the number of times each transition occurred
func (o *MetricsObserver) GetTransitionCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[string]int, len(o.transitionCounts))
	for key, count := range o.transitionCounts {
		result[key] = count
	}
	return result
}

// GetTurnCounts returns the number of turns per signal id
func (o *MetricsObserver) GetTurnCounts() map[int]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[int]int, len(o.turns))
	for id, count := range o.turns {
		result[id] = count
	}
	return result
}

// GetGreenTime returns the scheduled green time per signal id
func (o *MetricsObserver) GetGreenTime() map[int]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[int]time.Duration, len(o.greenTime))
	for id, d := range o.greenTime {
		result[id] = d
	}
	return result
}

// GetEmergencyCount returns the number of ambulance turns
func (o *MetricsObserver) GetEmergencyCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.emergencies
}

// GetRejectedCount returns the number of rejected events
func (o *MetricsObserver) GetRejectedCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.rejected
}

// GetErrorCount returns the number of errors
func (o *MetricsObserver) GetErrorCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.errorCount
}

// Reset resets all metrics
func (o *MetricsObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.reset()
}
