// Package decay provides the pure attenuation functions shared by the
// feed and match scoring pipelines. Each function takes only numeric
// inputs and profile parameters; callers are responsible for deriving
// ages and distances from an injected clock.
package decay

import "math"

// ln2 is used for half-life based exponential decay.
const ln2 = 0.693147180559945

// StepGeo computes a step-wise geographic decay score.
//
// Distances at or below fullRadius score 1.0. Beyond that, the score
// drops by rate once per full interval of distance, never falling below
// floor. This is intentionally a step function, not a continuous one:
// a listing 11 km and one 19 km past the radius land in the same band.
func StepGeo(distanceKm, fullRadius, interval, rate, floor float64) float64 {
	if distanceKm <= fullRadius {
		return 1.0
	}
	if interval <= 0 {
		return floor
	}

	steps := math.Floor((distanceKm - fullRadius) / interval)
	score := 1.0 - steps*rate

	return math.Max(floor, score)
}

// Exponential computes half-life freshness decay.
//
// Ages at or below full score 1.0. Beyond that the score halves every
// halfLife units of age, clamped at floor. Age, full and halfLife must
// share a unit (the feed pipeline uses hours; the match pipeline passes
// a half-life of days converted to hours).
func Exponential(age, full, halfLife, floor float64) float64 {
	if age <= full {
		return 1.0
	}
	if halfLife <= 0 {
		return floor
	}

	score := math.Exp(-ln2 * (age - full) / halfLife)

	return math.Max(floor, score)
}

// Linear computes linear vitality decay over days since last activity.
//
// At or below fullDays the score is 1.0; at or beyond decayDays it is
// floor; in between it interpolates linearly.
func Linear(days, fullDays, decayDays, floor float64) float64 {
	if days <= fullDays {
		return 1.0
	}
	if days >= decayDays {
		return floor
	}

	decayRange := decayDays - fullDays
	progress := (days - fullDays) / decayRange

	return 1.0 - progress*(1.0-floor)
}
