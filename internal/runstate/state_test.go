package runstate

import (
	"testing"
)

func TestRecordFirstWriteWins(t *testing.T) {
	state := New("task-1", []string{"UTS"}, 5)
	if !state.Record(0, "UTS", 1, 540) {
		t.Fatal("first write should succeed")
	}
	if state.Record(0, "UTS", 1, 999) {
		t.Fatal("second write for same (sample, target, round) should be ignored")
	}
	value, ok := state.Value(0, "UTS", 1)
	if !ok || value != 540 {
		t.Fatalf("Value = %v, %v; want 540, true", value, ok)
	}
}

func TestRoundCompleteRequiresEveryTarget(t *testing.T) {
	state := New("task-1", []string{"UTS", "elongation"}, 5)
	state.Record(0, "UTS", 1, 540)
	if state.RoundComplete(0, 1) {
		t.Fatal("round incomplete while a target is missing")
	}
	state.Record(0, "elongation", 1, 22)
	if !state.RoundComplete(0, 1) {
		t.Fatal("round complete once every target has a value")
	}
	if state.RoundComplete(1, 1) {
		t.Fatal("unknown sample is never complete")
	}
}

func TestHistoryCompleteDetectsGaps(t *testing.T) {
	state := New("task-1", []string{"UTS"}, 5)
	state.Record(0, "UTS", 1, 540)
	state.Record(0, "UTS", 3, 545)
	if state.HistoryComplete(0, 3) {
		t.Fatal("round 2 gap should fail completeness")
	}
	state.Record(0, "UTS", 2, 542)
	if !state.HistoryComplete(0, 3) {
		t.Fatal("expected gap-free history through round 3")
	}
}

func TestSeriesOrdersByRoundAndSkipsGaps(t *testing.T) {
	state := New("task-1", []string{"UTS"}, 5)
	state.Record(0, "UTS", 3, 120.3)
	state.Record(0, "UTS", 1, 100)
	series := state.Series(0)
	values := series["UTS"]
	if len(values) != 2 || values[0] != 100 || values[1] != 120.3 {
		t.Fatalf("unexpected series: %v", values)
	}
	if state.Series(42) != nil {
		t.Fatal("unknown sample should yield nil series")
	}
}

func TestStatusTransitions(t *testing.T) {
	state := New("task-1", []string{"UTS"}, 5)
	if state.Status(0) != StatusNotConverged {
		t.Fatalf("fresh sample status = %s", state.Status(0))
	}
	state.MarkFailed(0, "timeout")
	if state.Status(0) != StatusFailed {
		t.Fatalf("failed sample status = %s", state.Status(0))
	}
	state.ClearFailed(0)
	if state.Status(0) != StatusNotConverged {
		t.Fatalf("cleared sample status = %s", state.Status(0))
	}
	state.MarkFailed(0, "timeout again")
	state.MarkConverged(0)
	if state.Status(0) != StatusConverged {
		t.Fatalf("converged sample status = %s", state.Status(0))
	}
	if _, failed := state.Failed[0]; failed {
		t.Fatal("MarkConverged should clear the failure")
	}
}

func TestLastRoundIgnoresGaps(t *testing.T) {
	state := New("task-1", []string{"UTS"}, 5)
	if state.LastRound(0) != 0 {
		t.Fatalf("empty sample LastRound = %d", state.LastRound(0))
	}
	state.Record(0, "UTS", 1, 100)
	state.Record(0, "UTS", 4, 101)
	if state.LastRound(0) != 4 {
		t.Fatalf("LastRound = %d, want 4", state.LastRound(0))
	}
}

func TestConvergedStatusIsSticky(t *testing.T) {
	state := New("task-1", []string{"UTS"}, 5)
	state.MarkConverged(0)
	state.MarkFailed(0, "late failure")
	if state.Status(0) != StatusConverged {
		t.Fatalf("converged sample demoted to %s", state.Status(0))
	}
}

func TestTouchedSamplesSorted(t *testing.T) {
	state := New("task-1", []string{"UTS"}, 5)
	state.Record(5, "UTS", 1, 1)
	state.Record(2, "UTS", 1, 1)
	state.Record(9, "UTS", 1, 1)
	indices := state.TouchedSamples()
	if len(indices) != 3 || indices[0] != 2 || indices[1] != 5 || indices[2] != 9 {
		t.Fatalf("unexpected order: %v", indices)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Converged "); !ok || status != StatusConverged {
		t.Fatalf("ParseStatus = %v, %v", status, ok)
	}
	if _, ok := ParseStatus("bogus"); ok {
		t.Fatal("unknown status should not parse")
	}
}
