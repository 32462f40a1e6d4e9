package convergence

import "math"

// nearZeroEpsilon guards the relative-change denominator: below it the
// previous value is treated as zero and the change is compared absolutely.
const nearZeroEpsilon = 1e-9

// Check reports whether a value stabilized between two consecutive rounds
// and returns the change that was compared against the threshold.
//
// Changes smaller than minAbsoluteChange count as converged outright with a
// reported change of 0, which keeps numerical noise near zero from blocking
// convergence forever. When the previous value is near zero the relative
// denominator is unusable, so the absolute difference stands in for the
// relative change.
func Check(current, previous, threshold, minAbsoluteChange float64) (bool, float64) {
	diff := math.Abs(current - previous)
	if diff < minAbsoluteChange {
		return true, 0
	}
	if math.Abs(previous) < nearZeroEpsilon {
		return diff < threshold, diff
	}
	relative := diff / math.Abs(previous)
	return relative < threshold, relative
}

// SampleConverged reports whether a sample converged across every target
// simultaneously, using each target's values from the immediately preceding
// two rounds. A target with fewer than two recorded rounds keeps the sample
// not-converged.
func SampleConverged(history map[string][]float64, targets []string, threshold, minAbsoluteChange float64) bool {
	if len(targets) == 0 {
		return false
	}
	for _, target := range targets {
		values := history[target]
		if len(values) < 2 {
			return false
		}
		current := values[len(values)-1]
		previous := values[len(values)-2]
		converged, _ := Check(current, previous, threshold, minAbsoluteChange)
		if !converged {
			return false
		}
	}
	return true
}
