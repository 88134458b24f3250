package signalcycle

import (
	"fmt"
	"sync"
	"time"
)

// Observer represents an entity that observes the signal cycle
type Observer interface {
	// Required methods

	// OnTransition is called when the scheduler changes phase
	OnTransition(from Phase, to Phase, event Event, state CycleState)

	// OnTurnStart is called when a signal turns green
	OnTurnStart(signal Signal, duration time.Duration, state CycleState)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnYellow is called when the active signal turns yellow
	OnYellow(signal Signal, state CycleState)

	// OnEmergency is called when the turn passes to a signal with an ambulance
	OnEmergency(signal Signal, state CycleState)

	// OnEventRejected is called when an event is rejected (stale timer, wrong phase)
	OnEventRejected(event Event, reason string)

	// OnError is called when an error occurs during processing
	OnError(err error)

	// OnCycleStarted is called when the cycle starts
	OnCycleStarted(state CycleState)

	// OnCycleStopped is called when the cycle stops
	OnCycleStopped(state CycleState)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnTransition implements the required Observer method
func (o *BaseObserver) OnTransition(from Phase, to Phase, event Event, state CycleState) {}

// OnTurnStart implements the required Observer method
func (o *BaseObserver) OnTurnStart(signal Signal, duration time.Duration, state CycleState) {}

// OnYellow implements the optional ExtendedObserver method
func (o *BaseObserver) OnYellow(signal Signal, state CycleState) {}

// OnEmergency implements the optional ExtendedObserver method
func (o *BaseObserver) OnEmergency(signal Signal, state CycleState) {}

// OnEventRejected implements the optional ExtendedObserver method
func (o *BaseObserver) OnEventRejected(event Event, reason string) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(err error) {}

// OnCycleStarted implements the optional ExtendedObserver method
func (o *BaseObserver) OnCycleStarted(state CycleState) {}

// OnCycleStopped implements the optional ExtendedObserver method
func (o *BaseObserver) OnCycleStopped(state CycleState) {}

// ObserverManager manages a collection of observers
type ObserverManager struct {
	observers []Observer
	mutex     sync.RWMutex
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

func (om *ObserverManager) snapshot() []Observer {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)
	return observers
}

// each calls fn for every observer. A panicking observer is reported to its own
// OnError and does not stop the others.
func (om *ObserverManager) each(method string, fn func(Observer)) {
	for _, observer := range om.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if extObs, ok := observer.(ExtendedObserver); ok {
						func() {
							defer func() { recover() }()
							extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r))
						}()
					}
				}
			}()
			fn(observer)
		}()
	}
}

func (om *ObserverManager) eachExtended(method string, fn func(ExtendedObserver)) {
	om.each(method, func(observer Observer) {
		if extObs, ok := observer.(ExtendedObserver); ok {
			fn(extObs)
		}
	})
}

// NotifyTransition notifies all observers of a phase change
func (om *ObserverManager) NotifyTransition(from, to Phase, event Event, state CycleState) {
	om.each("OnTransition", func(o Observer) { o.OnTransition(from, to, event, state) })
}

// NotifyTurnStart notifies all observers that a signal turned green
func (om *ObserverManager) NotifyTurnStart(signal Signal, duration time.Duration, state CycleState) {
	om.each("OnTurnStart", func(o Observer) { o.OnTurnStart(signal, duration, state) })
}

// NotifyYellow notifies all observers that the active signal turned yellow
func (om *ObserverManager) NotifyYellow(signal Signal, state CycleState) {
	om.eachExtended("OnYellow", func(o ExtendedObserver) { o.OnYellow(signal, state) })
}

// NotifyEmergency notifies all observers of an ambulance at the next signal
func (om *ObserverManager) NotifyEmergency(signal Signal, state CycleState) {
	om.eachExtended("OnEmergency", func(o ExtendedObserver) { o.OnEmergency(signal, state) })
}

// NotifyEventRejected notifies all observers of event rejection
func (om *ObserverManager) NotifyEventRejected(event Event, reason string) {
	om.eachExtended("OnEventRejected", func(o ExtendedObserver) { o.OnEventRejected(event, reason) })
}

// NotifyError notifies all observers of errors
func (om *ObserverManager) NotifyError(err error) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			extObs.OnError(err)
		}
	}
}

// NotifyCycleStarted notifies all observers that the cycle has started
func (om *ObserverManager) NotifyCycleStarted(state CycleState) {
	om.eachExtended("OnCycleStarted", func(o ExtendedObserver) { o.OnCycleStarted(state) })
}

// NotifyCycleStopped notifies all observers that the cycle has stopped
func (om *ObserverManager) NotifyCycleStopped(state CycleState) {
	om.eachExtended("OnCycleStopped", func(o ExtendedObserver) { o.OnCycleStopped(state) })
}
