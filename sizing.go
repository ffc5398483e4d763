package parfor

import "time"

// sizer implements the adaptive bundle-sizing rule.
type sizer struct {
	workers      int
	firstDivisor int
	target       time.Duration
	epsilon      time.Duration
}

// next returns the size of the next bundle to cut from a run with the given
// progress. The result is always within [1, count-submitted] when at least
// one item is left.
func (z sizer) next(count, submitted, finished int, runTime time.Duration) int {
	left := count - submitted
	if left <= 0 {
		return 0
	}

	var size float64
	switch {
	case finished == 0:
		// Probe with a small batch so the first timing sample arrives quickly.
		size = float64(count / (z.workers * z.firstDivisor))
	case runTime > z.epsilon:
		// Extrapolate from the average cost of everything finished so far.
		size = float64(z.target) * float64(finished) / float64(runTime)
	default:
		size = float64(count / z.workers)
	}

	if size > float64(left) {
		return left
	}
	if size < 1 {
		return 1
	}
	return int(size)
}

// correctElapsed sanitizes the wall time measured across one bundle.
// A negative reading is assumed to have wrapped past midnight; anything
// still outside [0, 1000s] is replaced by AnomalyElapsed. The second result
// reports whether d was changed.
func correctElapsed(d time.Duration) (time.Duration, bool) {
	if d >= 0 && d <= maxPlausibleElapsed {
		return d, false
	}
	if d < 0 {
		d += 24 * time.Hour
	}
	if d < 0 || d > maxPlausibleElapsed {
		d = AnomalyElapsed
	}
	return d, true
}
