package convergence

import (
	"math"
	"testing"
)

func TestCheckRelativeChange(t *testing.T) {
	cases := []struct {
		name       string
		current    float64
		previous   float64
		threshold  float64
		minAbs     float64
		converged  bool
		wantChange float64
	}{
		{"small relative change", 100.5, 100.0, 0.01, 0, true, 0.005},
		{"large relative change", 150.0, 100.0, 0.01, 0, false, 0.5},
		{"exactly threshold not converged", 101.0, 100.0, 0.01, 0, false, 0.01},
		{"absolute guard fires", 0.0006, 0.0005, 0.01, 0.1, true, 0},
		{"near-zero previous uses absolute fallback", 0.05, 0.0, 0.1, 0, true, 0.05},
		{"near-zero previous absolute too large", 0.5, 0.0, 0.1, 0, false, 0.5},
		{"negative values", -100.5, -100.0, 0.01, 0, true, 0.005},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			converged, change := Check(tc.current, tc.previous, tc.threshold, tc.minAbs)
			if converged != tc.converged {
				t.Fatalf("converged = %v, want %v", converged, tc.converged)
			}
			if math.Abs(change-tc.wantChange) > 1e-9 {
				t.Fatalf("change = %v, want %v", change, tc.wantChange)
			}
		})
	}
}

func TestCheckNumericEdgeCase(t *testing.T) {
	// prev=0.0005, cur=0.0006, minAbsoluteChange=0.1 must converge via the
	// absolute-change guard regardless of the relative threshold.
	converged, change := Check(0.0006, 0.0005, 1e-9, 0.1)
	if !converged {
		t.Fatal("expected absolute-change guard to force convergence")
	}
	if change != 0 {
		t.Fatalf("change = %v, want 0", change)
	}
}

func TestSampleConvergedRequiresAllTargets(t *testing.T) {
	history := map[string][]float64{
		"UTS":        {100.0, 100.5},
		"elongation": {10.0, 15.0},
	}
	if SampleConverged(history, []string{"UTS", "elongation"}, 0.01, 0) {
		t.Fatal("one diverging target must keep the sample not-converged")
	}
	if !SampleConverged(history, []string{"UTS"}, 0.01, 0) {
		t.Fatal("expected single converged target to pass")
	}
}

func TestSampleConvergedNeedsTwoRoundsPerTarget(t *testing.T) {
	history := map[string][]float64{
		"UTS":        {100.0, 100.1},
		"elongation": {12.0},
	}
	if SampleConverged(history, []string{"UTS", "elongation"}, 0.05, 0) {
		t.Fatal("target with a single round must keep the sample not-converged")
	}
	if SampleConverged(nil, []string{"UTS"}, 0.05, 0) {
		t.Fatal("empty history must not converge")
	}
}

func TestSampleConvergedUsesLastTwoRoundsOnly(t *testing.T) {
	history := map[string][]float64{
		"UTS": {100.0, 500.0, 501.0},
	}
	if !SampleConverged(history, []string{"UTS"}, 0.01, 0) {
		t.Fatal("only the last two rounds should be compared")
	}
}
