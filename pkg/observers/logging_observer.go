// Package observers provides observers for monitoring the signal cycle
package observers

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anggasct/signalcycle"
)

// LoggingObserver logs scheduler events to a zerolog logger
type LoggingObserver struct {
	logger zerolog.Logger
}

// NewLoggingObserver creates a new logging observer. Events are tagged with component.
func NewLoggingObserver(logger zerolog.Logger, component string) *LoggingObserver {
	if component != "" {
		logger = logger.With().Str("component", component).Logger()
	}
	return &LoggingObserver{logger: logger}
}

// NewDefaultLoggingObserver creates a logging observer on the global zerolog logger
func NewDefaultLoggingObserver() *LoggingObserver {
	return NewLoggingObserver(log.Logger, "scheduler")
}

// OnTransition logs phase changes
func (o *LoggingObserver) OnTransition(from, to signalcycle.Phase, event signalcycle.Event, state signalcycle.CycleState) {
	o.logger.Debug().
		Str("event", event.Name).
		Str("event_id", event.ID).
		Stringer("from", from).
		Stringer("to", to).
		Int("index", state.CurrentIndex).
		Msg("transition")
}

// OnTurnStart logs the signal that turned green
func (o *LoggingObserver) OnTurnStart(signal signalcycle.Signal, duration time.Duration, state signalcycle.CycleState) {
	o.logger.Info().
		Int("signal", signal.ID).
		Str("name", signal.Name).
		Dur("green", duration).
		Bool("emergency", state.EmergencyMode).
		Msg("turn started")
}

// OnYellow logs the yellow phase
func (o *LoggingObserver) OnYellow(signal signalcycle.Signal, state signalcycle.CycleState) {
	o.logger.Debug().Int("signal", signal.ID).Msg("yellow")
}

// OnEmergency logs an ambulance at the next signal
func (o *LoggingObserver) OnEmergency(signal signalcycle.Signal, state signalcycle.CycleState) {
	o.logger.Warn().
		Int("signal", signal.ID).
		Str("name", signal.Name).
		Msg("ambulance detected, extending green")
}

// OnEventRejected logs ignored events, which are mostly stale timers
func (o *LoggingObserver) OnEventRejected(event signalcycle.Event, reason string) {
	o.logger.Debug().
		Str("event", event.Name).
		Uint64("generation", event.Generation).
		Str("reason", reason).
		Msg("event rejected")
}

// OnError logs errors
func (o *LoggingObserver) OnError(err error) {
	o.logger.Error().Err(err).Msg("cycle error")
}

// OnCycleStarted logs the start of the cycle
func (o *LoggingObserver) OnCycleStarted(state signalcycle.CycleState) {
	o.logger.Info().Int("total_time", state.TotalTime).Msg("cycle started")
}

// OnCycleStopped logs the end of the cycle
func (o *LoggingObserver) OnCycleStopped(state signalcycle.CycleState) {
	o.logger.Info().Msg("cycle stopped")
}
