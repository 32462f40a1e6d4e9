package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"crucible/internal/config"
	"crucible/internal/convergence"
	"crucible/internal/runstate"
)

// Store persists run checkpoints backed by SQLite. Prediction and transcript
// rows are append-only, so replaying a round after a crash never rewrites
// what an earlier attempt recorded.
type Store struct {
	db      *sql.DB
	path    string
	taskDir string
}

// RunInfo is the durable header row for one task namespace.
type RunInfo struct {
	TaskID        string
	Targets       []string
	MaxIterations int
	LastRound     int
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Run header statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Open initializes or connects to the checkpoint database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.TaskDir, "checkpoints.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := ensureSchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: dbPath, taskDir: cfg.Paths.TaskDir}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureRun creates the run header row if it does not exist yet. When the row
// already exists its target list and iteration cap must match; a resumed run
// cannot change the shape of the history it is resuming.
func (s *Store) EnsureRun(ctx context.Context, taskID string, targets []string, maxIterations int) error {
	existing, err := s.Run(ctx, taskID)
	if err != nil {
		return err
	}
	if existing != nil {
		if !equalTargets(existing.Targets, targets) {
			return fmt.Errorf("task %s already exists with targets %v", taskID, existing.Targets)
		}
		if existing.MaxIterations != maxIterations {
			return fmt.Errorf("task %s already exists with max_iterations %d", taskID, existing.MaxIterations)
		}
		return nil
	}

	targetsJSON, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (task_id, targets_json, max_iterations, last_round, status, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?, ?)`,
		taskID, string(targetsJSON), maxIterations, RunStatusRunning, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Run fetches the run header for a task, or nil when the task is unknown.
func (s *Store) Run(ctx context.Context, taskID string) (*RunInfo, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT task_id, targets_json, max_iterations, last_round, status, created_at, updated_at
         FROM runs WHERE task_id = ?`,
		taskID,
	)

	var (
		info        RunInfo
		targetsJSON string
		createdRaw  string
		updatedRaw  string
	)
	err := row.Scan(&info.TaskID, &targetsJSON, &info.MaxIterations, &info.LastRound, &info.Status, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal([]byte(targetsJSON), &info.Targets); err != nil {
		return nil, fmt.Errorf("decode run targets: %w", err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		info.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		info.UpdatedAt = updated
	}
	return &info, nil
}

// ListRuns returns every run header ordered by creation time.
func (s *Store) ListRuns(ctx context.Context) ([]*RunInfo, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT task_id, targets_json, max_iterations, last_round, status, created_at, updated_at
         FROM runs ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunInfo
	for rows.Next() {
		var (
			info        RunInfo
			targetsJSON string
			createdRaw  string
			updatedRaw  string
		)
		if err := rows.Scan(&info.TaskID, &targetsJSON, &info.MaxIterations, &info.LastRound, &info.Status, &createdRaw, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(targetsJSON), &info.Targets); err != nil {
			return nil, fmt.Errorf("decode run targets: %w", err)
		}
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			info.CreatedAt = created
		}
		if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
			info.UpdatedAt = updated
		}
		runs = append(runs, &info)
	}
	return runs, rows.Err()
}

// SetRunStatus updates the run header status.
func (s *Store) SetRunStatus(ctx context.Context, taskID, status string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE task_id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), taskID,
	)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	return nil
}

// SaveState checkpoints a run: prediction rows go into SQLite inside one
// transaction and the derived artifact files are rewritten afterwards. Rows
// are inserted with OR IGNORE so a replayed round leaves existing values
// untouched.
func (s *Store) SaveState(ctx context.Context, state *runstate.State) error {
	if state == nil {
		return errors.New("state is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for sample, byTarget := range state.History {
		for target, byRound := range byTarget {
			for round, value := range byRound {
				if _, err := tx.ExecContext(
					ctx,
					`INSERT OR IGNORE INTO predictions (task_id, sample_index, target, round, value, created_at)
                     VALUES (?, ?, ?, ?, ?, ?)`,
					state.TaskID, sample, target, round, value, now,
				); err != nil {
					return fmt.Errorf("insert prediction: %w", err)
				}
			}
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE runs SET last_round = ?, updated_at = ? WHERE task_id = ?`,
		state.Round, now, state.TaskID,
	); err != nil {
		return fmt.Errorf("update run round: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}

	return s.writeArtifacts(state)
}

// LoadState rebuilds a run's state from the checkpoint database, or returns
// nil when the task has no checkpoint. The converged set is re-derived from
// the history rather than trusted from disk, and failure markers never
// survive a restart so previously failed samples get retried.
func (s *Store) LoadState(ctx context.Context, taskID string, threshold, minAbsoluteChange float64) (*runstate.State, error) {
	info, err := s.Run(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	state := runstate.New(taskID, info.Targets, info.MaxIterations)
	state.Round = info.LastRound

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT sample_index, target, round, value FROM predictions WHERE task_id = ? ORDER BY round, sample_index`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sample int
			target string
			round  int
			value  float64
		)
		if err := rows.Scan(&sample, &target, &round, &value); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		state.Record(sample, target, round, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sample := range state.TouchedSamples() {
		last := state.LastRound(sample)
		if last < 2 || !state.HistoryComplete(sample, last) {
			continue
		}
		if convergence.SampleConverged(state.Series(sample), state.Targets, threshold, minAbsoluteChange) {
			state.MarkConverged(sample)
		}
	}

	return state, nil
}

func equalTargets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
