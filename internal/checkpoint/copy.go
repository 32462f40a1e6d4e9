package checkpoint

import (
	"context"
	"fmt"
	"time"
)

// CopyForward clones a source task's predictions and transcripts under a new
// task id so a fresh run can pick up the accumulated history without touching
// the source namespace. Rows already present under the destination are left
// alone, which makes the copy itself safe to replay.
func (s *Store) CopyForward(ctx context.Context, fromTask, toTask string) error {
	if fromTask == toTask {
		return fmt.Errorf("source and destination task are both %s", fromTask)
	}
	source, err := s.Run(ctx, fromTask)
	if err != nil {
		return err
	}
	if source == nil {
		return fmt.Errorf("task %s has no checkpoint", fromTask)
	}

	if err := s.EnsureRun(ctx, toTask, source.Targets, source.MaxIterations); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin copy tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO predictions (task_id, sample_index, target, round, value, created_at)
         SELECT ?, sample_index, target, round, value, ? FROM predictions WHERE task_id = ?`,
		toTask, now, fromTask,
	); err != nil {
		return fmt.Errorf("copy predictions: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO transcripts (task_id, sample_index, round, prompt, response, created_at)
         SELECT ?, sample_index, round, prompt, response, ? FROM transcripts WHERE task_id = ?`,
		toTask, now, fromTask,
	); err != nil {
		return fmt.Errorf("copy transcripts: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE runs SET last_round = ?, updated_at = ? WHERE task_id = ?`,
		source.LastRound, now, toTask,
	); err != nil {
		return fmt.Errorf("update copied run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit copy: %w", err)
	}
	return nil
}
