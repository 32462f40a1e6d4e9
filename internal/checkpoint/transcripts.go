package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Transcript is the stored prompt/response pair for one prediction attempt.
type Transcript struct {
	TaskID      string
	SampleIndex int
	Round       int
	Prompt      string
	Response    string
	CreatedAt   time.Time
}

// SaveTranscript records the prompt and raw response for a (sample, round)
// attempt. The first write wins; a replayed round keeps the transcript from
// the attempt that actually produced the recorded values. The pair is also
// mirrored to plain-text files under the task directory for inspection, and
// the mirror only happens when the row was actually inserted so the files
// always match the stored transcript.
func (s *Store) SaveTranscript(ctx context.Context, taskID string, sample, round int, prompt, response string) error {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO transcripts (task_id, sample_index, round, prompt, response, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		taskID, sample, round, prompt, response,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transcript rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}
	return s.writeTranscriptFiles(taskID, sample, round, prompt, response)
}

// GetTranscript fetches one transcript, or nil when the attempt left none.
func (s *Store) GetTranscript(ctx context.Context, taskID string, sample, round int) (*Transcript, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT task_id, sample_index, round, prompt, response, created_at
         FROM transcripts WHERE task_id = ? AND sample_index = ? AND round = ?`,
		taskID, sample, round,
	)

	var (
		transcript Transcript
		createdRaw string
	)
	err := row.Scan(&transcript.TaskID, &transcript.SampleIndex, &transcript.Round, &transcript.Prompt, &transcript.Response, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		transcript.CreatedAt = created
	}
	return &transcript, nil
}

func (s *Store) writeTranscriptFiles(taskID string, sample, round int, prompt, response string) error {
	dir := filepath.Join(s.taskDir, taskID, "transcripts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	base := fmt.Sprintf("sample_%d_round_%d", sample, round)
	if err := writeFileAtomic(filepath.Join(dir, base+"_prompt.txt"), []byte(prompt)); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(dir, base+"_response.txt"), []byte(response))
}
