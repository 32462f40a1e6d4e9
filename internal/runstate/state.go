package runstate

import (
	"sort"
	"strings"
)

// Status represents a sample's convergence state within a run.
type Status string

const (
	StatusNotConverged Status = "not_converged"
	StatusConverged    Status = "converged"
	StatusFailed       Status = "failed"
)

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusNotConverged:
		return StatusNotConverged, true
	case StatusConverged:
		return StatusConverged, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// State is the mutable state of one orchestration run. It is owned by the
// orchestrator's merge loop; workers never touch it directly.
//
// History is keyed sample index -> target -> round (1-based) -> value.
// A missing round key records a failed attempt, which is distinct from a
// stored numeric zero.
type State struct {
	TaskID  string
	Targets []string

	MaxIterations int
	Round         int // last completed round

	History   map[int]map[string]map[int]float64
	Converged map[int]struct{}
	Failed    map[int]string
}

// New constructs an empty run state.
func New(taskID string, targets []string, maxIterations int) *State {
	return &State{
		TaskID:        taskID,
		Targets:       append([]string(nil), targets...),
		MaxIterations: maxIterations,
		History:       make(map[int]map[string]map[int]float64),
		Converged:     make(map[int]struct{}),
		Failed:        make(map[int]string),
	}
}

// Record stores one predicted value. The first write for a
// (sample, target, round) triple wins; later writes are ignored so replayed
// rounds never rewrite history. Returns false when the entry already existed.
func (s *State) Record(sample int, target string, round int, value float64) bool {
	byTarget, ok := s.History[sample]
	if !ok {
		byTarget = make(map[string]map[int]float64, len(s.Targets))
		s.History[sample] = byTarget
	}
	byRound, ok := byTarget[target]
	if !ok {
		byRound = make(map[int]float64)
		byTarget[target] = byRound
	}
	if _, exists := byRound[round]; exists {
		return false
	}
	byRound[round] = value
	return true
}

// Value returns the recorded value for a (sample, target, round) triple.
func (s *State) Value(sample int, target string, round int) (float64, bool) {
	value, ok := s.History[sample][target][round]
	return value, ok
}

// RoundComplete reports whether every target has a valid value recorded for
// the given round.
func (s *State) RoundComplete(sample, round int) bool {
	byTarget := s.History[sample]
	if byTarget == nil {
		return false
	}
	for _, target := range s.Targets {
		if _, ok := byTarget[target][round]; !ok {
			return false
		}
	}
	return true
}

// HistoryComplete reports whether every target has a gap-free value sequence
// for rounds 1..through.
func (s *State) HistoryComplete(sample, through int) bool {
	for round := 1; round <= through; round++ {
		if !s.RoundComplete(sample, round) {
			return false
		}
	}
	return true
}

// Series returns each target's recorded values ordered by ascending round.
// Failed rounds are simply absent, so the slice indexes completed attempts,
// not round numbers.
func (s *State) Series(sample int) map[string][]float64 {
	byTarget := s.History[sample]
	if byTarget == nil {
		return nil
	}
	series := make(map[string][]float64, len(s.Targets))
	for _, target := range s.Targets {
		byRound := byTarget[target]
		if len(byRound) == 0 {
			continue
		}
		rounds := make([]int, 0, len(byRound))
		for round := range byRound {
			rounds = append(rounds, round)
		}
		sort.Ints(rounds)
		values := make([]float64, len(rounds))
		for i, round := range rounds {
			values[i] = byRound[round]
		}
		series[target] = values
	}
	return series
}

// LastRound returns the highest round with any recorded value for the sample,
// or 0 when the sample has no history.
func (s *State) LastRound(sample int) int {
	last := 0
	for _, byRound := range s.History[sample] {
		for round := range byRound {
			if round > last {
				last = round
			}
		}
	}
	return last
}

// MarkConverged adds a sample to the converged set and clears any failure.
func (s *State) MarkConverged(sample int) {
	s.Converged[sample] = struct{}{}
	delete(s.Failed, sample)
}

// MarkFailed records a sample's most recent failure reason.
func (s *State) MarkFailed(sample int, reason string) {
	s.Failed[sample] = reason
}

// ClearFailed removes a sample from the failed set after a successful attempt.
func (s *State) ClearFailed(sample int) {
	delete(s.Failed, sample)
}

// IsConverged reports converged-set membership.
func (s *State) IsConverged(sample int) bool {
	_, ok := s.Converged[sample]
	return ok
}

// Status returns the sample's current overall state.
func (s *State) Status(sample int) Status {
	if s.IsConverged(sample) {
		return StatusConverged
	}
	if _, ok := s.Failed[sample]; ok {
		return StatusFailed
	}
	return StatusNotConverged
}

// TouchedSamples returns every sample index with history, ascending.
func (s *State) TouchedSamples() []int {
	indices := make([]int, 0, len(s.History))
	for sample := range s.History {
		indices = append(indices, sample)
	}
	sort.Ints(indices)
	return indices
}
