package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"crucible/internal/checkpoint"
	"crucible/internal/dataset"
	"crucible/internal/logging"
	"crucible/internal/notifications"
	"crucible/internal/orchestrator"
	"crucible/internal/prediction"
	"crucible/internal/retrieval"
)

type runOptions struct {
	trainPath string
	testPath  string
	targets   []string
	taskID    string
	copyFrom  string
	resume    bool
}

// executeRun wires the whole pipeline together and drives one run to
// completion. A file lock serializes runs per task directory; checkpoints
// make a second invocation of the same task id a cheap no-op for finished
// work.
func executeRun(cmd *cobra.Command, cmdCtx *commandContext, opts runOptions) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.TaskDir, "crucible.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run is already active in %s", cfg.Paths.TaskDir)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	split, err := dataset.LoadSplit(opts.trainPath, opts.testPath, opts.targets)
	if err != nil {
		return err
	}

	store, err := checkpoint.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.copyFrom != "" {
		if err := store.CopyForward(ctx, opts.copyFrom, opts.taskID); err != nil {
			return err
		}
	} else if opts.resume {
		info, err := store.Run(ctx, opts.taskID)
		if err != nil {
			return err
		}
		if info == nil {
			return fmt.Errorf("task %s has no checkpoint to resume (use `crucible run` to start one)", opts.taskID)
		}
	}

	var embedder retrieval.Embedder
	if cfg.Run.TopK > 0 {
		embedder = retrieval.NewClient(retrieval.ClientConfig{
			APIKey:         cfg.Embedding.APIKey,
			BaseURL:        cfg.Embedding.BaseURL,
			Model:          cfg.Embedding.Model,
			TimeoutSeconds: cfg.Embedding.TimeoutSeconds,
		})
	}
	predictor := prediction.NewClient(prediction.Config{
		APIKey:         cfg.Completion.APIKey,
		BaseURL:        cfg.Completion.BaseURL,
		Model:          cfg.Completion.Model,
		Temperature:    cfg.Completion.Temperature,
		Referer:        cfg.Completion.Referer,
		Title:          cfg.Completion.Title,
		TimeoutSeconds: cfg.Completion.TimeoutSeconds,
	})
	notifier := notifications.NewService(cfg)

	o, err := orchestrator.New(cfg, split, store, embedder, predictor, notifier, logger)
	if err != nil {
		return err
	}
	o.SetProgressSink(orchestrator.ProgressFunc(func(fraction float64, status string) {
		logger.Info("progress",
			logging.Float64("fraction", fraction),
			logging.String("status", status),
		)
	}))

	summary, err := o.Run(ctx, opts.taskID)
	if summary != nil {
		printSummary(cmd, cfg.TaskPath(opts.taskID), summary)
	}
	return err
}

func printSummary(cmd *cobra.Command, taskPath string, summary *orchestrator.Summary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	if summary.Interrupted {
		fmt.Fprintln(out, renderStatusLine("Run", statusWarn, "interrupted, progress checkpointed", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Run", statusOK, "completed", colorize))
	}

	fmt.Fprintln(out, renderSummaryTable(summary))
	fmt.Fprintf(out, "Artifacts: %s\n", taskPath)
}
