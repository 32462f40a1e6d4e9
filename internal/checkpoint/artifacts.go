package checkpoint

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crucible/internal/dataset"
	"crucible/internal/runstate"
)

// historyDocument is the on-disk shape of history.json. Iteration slices are
// indexed by round with null marking a failed attempt, so a gap stays visible
// in the exported file just as it does in the database.
type historyDocument struct {
	TaskID    string                   `json:"task_id"`
	Targets   []string                 `json:"targets"`
	LastRound int                      `json:"last_round"`
	Samples   map[string]sampleHistory `json:"samples"`
}

type sampleHistory struct {
	Targets           map[string]targetHistory `json:"targets"`
	ConvergenceStatus runstate.Status          `json:"convergence_status"`
}

type targetHistory struct {
	Iterations []*float64 `json:"iterations"`
}

// writeArtifacts rewrites the derived history.json and predictions.csv files
// for the task. Both are written to a temp file and renamed into place so a
// crash mid-write never leaves a truncated artifact behind.
func (s *Store) writeArtifacts(state *runstate.State) error {
	dir := filepath.Join(s.taskDir, state.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create task dir: %w", err)
	}

	historyJSON, err := json.MarshalIndent(buildHistoryDocument(state), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "history.json"), append(historyJSON, '\n')); err != nil {
		return err
	}

	csvData, err := renderPredictionsCSV(state)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, "predictions.csv"), csvData)
}

func buildHistoryDocument(state *runstate.State) historyDocument {
	doc := historyDocument{
		TaskID:    state.TaskID,
		Targets:   state.Targets,
		LastRound: state.Round,
		Samples:   make(map[string]sampleHistory, len(state.History)),
	}
	for _, sample := range state.TouchedSamples() {
		rounds := state.Round
		if last := state.LastRound(sample); last > rounds {
			rounds = last
		}
		entry := sampleHistory{
			Targets:           make(map[string]targetHistory, len(state.Targets)),
			ConvergenceStatus: state.Status(sample),
		}
		for _, target := range state.Targets {
			iterations := make([]*float64, rounds)
			for round := 1; round <= rounds; round++ {
				if value, ok := state.Value(sample, target, round); ok {
					v := value
					iterations[round-1] = &v
				}
			}
			entry.Targets[target] = targetHistory{Iterations: iterations}
		}
		doc.Samples[fmt.Sprintf("sample_%d", sample)] = entry
	}
	return doc
}

func renderPredictionsCSV(state *runstate.State) ([]byte, error) {
	header := []string{"sample_index"}
	for _, target := range state.Targets {
		for round := 1; round <= state.MaxIterations; round++ {
			header = append(header, fmt.Sprintf("%s_predicted_Iteration_%d", target, round))
		}
	}
	header = append(header, "convergence_status")

	var buf strings.Builder
	writer := csv.NewWriter(&buf)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, sample := range state.TouchedSamples() {
		row := make([]string, 0, len(header))
		row = append(row, fmt.Sprintf("%d", sample))
		for _, target := range state.Targets {
			for round := 1; round <= state.MaxIterations; round++ {
				cell := ""
				if value, ok := state.Value(sample, target, round); ok {
					cell = dataset.FormatValue(value)
				}
				row = append(row, cell)
			}
		}
		row = append(row, string(state.Status(sample)))
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return []byte(buf.String()), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
