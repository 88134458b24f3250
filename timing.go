package signalcycle

import (
	"math"

	"github.com/samber/lo"
)

// ComputeTiming returns the green time in seconds for one signal.
//
// With no vehicles anywhere the budget is split evenly. Otherwise the signal
// gets its share of totalTime proportional to its vehicle count, raised to
// MinimumGreen and then capped at totalTime. Fractions round half away from
// zero, so 10 of 40 vehicles over 110s gives 28 (27.5 rounded up).
func ComputeTiming(vehicleCount, totalVehicles, totalTime, signalCount int) int {
	if signalCount <= 0 {
		return 0
	}
	if totalVehicles <= 0 {
		return int(math.Round(float64(totalTime) / float64(signalCount)))
	}

	proportional := int(math.Round(float64(vehicleCount) / float64(totalVehicles) * float64(totalTime)))
	return min(max(MinimumGreen, proportional), totalTime)
}

// ComputeTimings applies ComputeTiming to every signal and returns the result keyed by id
func ComputeTimings(signals []Signal, totalTime int) map[int]int {
	total := lo.SumBy(signals, func(sig Signal) int { return sig.VehicleCount })

	timings := make(map[int]int, len(signals))
	for _, sig := range signals {
		timings[sig.ID] = ComputeTiming(sig.VehicleCount, total, totalTime, len(signals))
	}
	return timings
}

// EffectiveDuration is how long the signal's turn lasts in seconds, including
// the yellow phase. An ambulance stretches the turn to at least EmergencyGreen.
func EffectiveDuration(sig Signal) (seconds int, emergency bool) {
	if sig.AmbulanceDetected {
		return max(EmergencyGreen, sig.Timing), true
	}
	return sig.Timing, false
}
