package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crucible/internal/checkpoint"
	"crucible/internal/config"
	"crucible/internal/convergence"
	"crucible/internal/dataset"
	"crucible/internal/logging"
	"crucible/internal/notifications"
	"crucible/internal/prediction"
	"crucible/internal/retrieval"
	"crucible/internal/runstate"
)

// Predictor produces one prediction attempt from a rendered prompt pair.
type Predictor interface {
	Predict(ctx context.Context, systemPrompt, userPrompt string, targets []string) (prediction.Result, error)
}

// Orchestrator drives the iterative prediction loop for one dataset split.
// Run state is owned by the goroutine executing Run; workers only ever see
// immutable per-round task snapshots.
type Orchestrator struct {
	cfg       *config.Config
	split     *dataset.Split
	store     *checkpoint.Store
	embedder  retrieval.Embedder
	predictor Predictor
	notifier  notifications.Service
	sink      ProgressSink
	logger    *slog.Logger
}

// ProgressSink receives one-way progress reports: after every merged sample
// and after every completed round, a fraction in [0, 1] that never decreases
// over the life of a Run call, plus a short status line. Calls happen inline
// with the merge loop, so implementations must not block.
type ProgressSink interface {
	Progress(fraction float64, status string)
}

// ProgressFunc adapts a plain function to the ProgressSink interface.
type ProgressFunc func(fraction float64, status string)

func (f ProgressFunc) Progress(fraction float64, status string) { f(fraction, status) }

type noopProgress struct{}

func (noopProgress) Progress(float64, string) {}

// Summary reports where a run ended up.
type Summary struct {
	TaskID       string
	Rounds       int
	Total        int
	Converged    int
	Failed       int
	NotConverged int
	Duration     time.Duration
	Interrupted  bool
}

// New assembles an orchestrator from its collaborators.
func New(cfg *config.Config, split *dataset.Split, store *checkpoint.Store, embedder retrieval.Embedder, predictor Predictor, notifier notifications.Service, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if split == nil || len(split.Test) == 0 {
		return nil, errors.New("a non-empty test set is required")
	}
	if store == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if predictor == nil {
		return nil, errors.New("predictor is required")
	}
	if cfg.Run.TopK > 0 && embedder == nil {
		return nil, errors.New("embedder is required when top_k > 0")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Orchestrator{
		cfg:       cfg,
		split:     split,
		store:     store,
		embedder:  embedder,
		predictor: predictor,
		notifier:  notifier,
		sink:      noopProgress{},
		logger:    logging.WithComponent(logger, "orchestrator"),
	}, nil
}

// SetProgressSink replaces the default no-op sink. A nil sink restores it.
func (o *Orchestrator) SetProgressSink(sink ProgressSink) {
	if sink == nil {
		sink = noopProgress{}
	}
	o.sink = sink
}

// Run executes rounds for the task until every in-scope sample is converged
// or failed, the iteration budget ran out, or the early-stop fraction was
// reached. A canceled context stops between samples; progress made so far is
// checkpointed before Run returns, so the same task id resumes cleanly.
func (o *Orchestrator) Run(ctx context.Context, taskID string) (*Summary, error) {
	run := o.cfg.Run
	targets := o.split.Targets
	start := time.Now()

	if err := o.store.EnsureRun(ctx, taskID, targets, run.MaxIterations); err != nil {
		return nil, err
	}
	state, err := o.store.LoadState(ctx, taskID, run.ConvergenceThreshold, run.MinAbsoluteChange)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = runstate.New(taskID, targets, run.MaxIterations)
	}

	scope := o.scopedSamples()
	index, err := o.buildIndex(ctx)
	if err != nil {
		return nil, err
	}

	o.logger.Info("run started",
		logging.String(logging.FieldTaskID, taskID),
		logging.Int("samples", len(scope)),
		logging.Int("resume_round", state.Round),
		logging.Int("corpus", index.Len()),
	)
	if err := o.notifier.NotifyRunStarted(ctx, taskID, len(scope), targets); err != nil {
		o.logger.Warn("run started notification failed", logging.Error(err))
	}

	for state.Round < run.MaxIterations {
		candidates := o.candidates(state, scope)
		if len(candidates) == 0 {
			break
		}
		round := state.Round + 1

		roundErr := o.runRound(ctx, state, index, candidates, round)
		if roundErr != nil {
			saveCtx := context.WithoutCancel(ctx)
			if saveErr := o.store.SaveState(saveCtx, state); saveErr != nil {
				o.logger.Error("checkpoint after interrupt failed", logging.Error(saveErr))
			}
			if errors.Is(roundErr, context.Canceled) || errors.Is(roundErr, context.DeadlineExceeded) {
				summary := o.summarize(state, scope, start)
				summary.Interrupted = true
				o.logger.Info("run interrupted",
					logging.String(logging.FieldTaskID, taskID),
					logging.Int(logging.FieldRound, round),
				)
				return summary, roundErr
			}
			if err := o.notifier.NotifyError(saveCtx, roundErr, fmt.Sprintf("round %d", round)); err != nil {
				o.logger.Warn("error notification failed", logging.Error(err))
			}
			return nil, roundErr
		}

		state.Round = round
		o.updateConvergence(state, candidates)
		if err := o.store.SaveState(context.WithoutCancel(ctx), state); err != nil {
			return nil, fmt.Errorf("checkpoint round %d: %w", round, err)
		}

		converged, failed := o.tally(state, scope)
		o.sink.Progress(float64(round)/float64(run.MaxIterations),
			fmt.Sprintf("round %d complete: %d/%d converged, %d failed", round, converged, len(scope), failed))
		o.logger.Info("round completed",
			logging.String(logging.FieldTaskID, taskID),
			logging.Int(logging.FieldRound, round),
			logging.Int("converged", converged),
			logging.Int("failed", failed),
			logging.Int("total", len(scope)),
		)
		if err := o.notifier.NotifyRoundCompleted(ctx, taskID, round, converged, failed, len(scope)); err != nil {
			o.logger.Warn("round notification failed", logging.Error(err))
		}

		if o.shouldStop(state, scope) {
			break
		}
	}

	if err := o.store.SetRunStatus(ctx, taskID, checkpoint.RunStatusCompleted); err != nil {
		o.logger.Warn("run status update failed", logging.Error(err))
	}

	summary := o.summarize(state, scope, start)
	o.sink.Progress(1, fmt.Sprintf("run complete: %d/%d converged, %d failed",
		summary.Converged, summary.Total, summary.Failed))
	o.logger.Info("run completed",
		logging.String(logging.FieldTaskID, taskID),
		logging.Int("rounds", summary.Rounds),
		logging.Int("converged", summary.Converged),
		logging.Int("failed", summary.Failed),
		logging.Duration("duration", summary.Duration),
	)
	if err := o.notifier.NotifyRunCompleted(ctx, taskID, summary.Converged, summary.Failed, summary.Total, summary.Duration); err != nil {
		o.logger.Warn("run completed notification failed", logging.Error(err))
	}
	return summary, nil
}

// scopedSamples returns the test samples a run operates on. SampleCap keeps
// smoke runs cheap; indices are contiguous so capping keeps the lowest ones.
func (o *Orchestrator) scopedSamples() []dataset.Sample {
	scope := o.split.Test
	if limit := o.cfg.Run.SampleCap; limit > 0 && limit < len(scope) {
		scope = scope[:limit]
	}
	return scope
}

// buildIndex embeds the training corpus once per run. Zero-shot runs never
// touch the embedding endpoint at all.
func (o *Orchestrator) buildIndex(ctx context.Context) (*retrieval.Index, error) {
	if o.cfg.Run.TopK <= 0 || len(o.split.Train) == 0 {
		return retrieval.NewIndex(nil), nil
	}
	texts := make([]string, len(o.split.Train))
	for i, sample := range o.split.Train {
		texts[i] = sample.FeatureText()
	}
	index, err := retrieval.BuildIndex(ctx, o.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("build retrieval index: %w", err)
	}
	return index, nil
}

// candidates returns the samples still worth predicting. A sample leaves the
// pool only once it is converged with a gap-free history through its last
// recorded round; a converged sample whose history has holes keeps getting
// predicted, which matches how a reload would classify it. Failed samples
// always stay in.
func (o *Orchestrator) candidates(state *runstate.State, scope []dataset.Sample) []dataset.Sample {
	var out []dataset.Sample
	for _, sample := range scope {
		if state.IsConverged(sample.Index) && state.HistoryComplete(sample.Index, state.LastRound(sample.Index)) {
			continue
		}
		out = append(out, sample)
	}
	return out
}

// updateConvergence re-evaluates every candidate that completed the current
// round. Convergence is all-or-nothing across targets.
func (o *Orchestrator) updateConvergence(state *runstate.State, candidates []dataset.Sample) {
	run := o.cfg.Run
	for _, sample := range candidates {
		if !state.RoundComplete(sample.Index, state.Round) {
			continue
		}
		if convergence.SampleConverged(state.Series(sample.Index), state.Targets, run.ConvergenceThreshold, run.MinAbsoluteChange) {
			state.MarkConverged(sample.Index)
			o.logger.Debug("sample converged",
				logging.String(logging.FieldTaskID, state.TaskID),
				logging.Int(logging.FieldSampleIndex, sample.Index),
				logging.Int(logging.FieldRound, state.Round),
			)
		}
	}
}

func (o *Orchestrator) tally(state *runstate.State, scope []dataset.Sample) (converged, failed int) {
	for _, sample := range scope {
		switch state.Status(sample.Index) {
		case runstate.StatusConverged:
			converged++
		case runstate.StatusFailed:
			failed++
		}
	}
	return converged, failed
}

// shouldStop decides whether to keep spending rounds. The run ends once no
// sample is still in play, meaning every one is either converged or failed,
// or once the early-stop fraction is reached.
func (o *Orchestrator) shouldStop(state *runstate.State, scope []dataset.Sample) bool {
	converged, failed := o.tally(state, scope)
	if converged+failed == len(scope) {
		o.logger.Info("no samples in play",
			logging.String(logging.FieldTaskID, state.TaskID),
			logging.Int("converged", converged),
			logging.Int("failed", failed),
		)
		return true
	}
	run := o.cfg.Run
	if run.EarlyStop && len(scope) > 0 {
		fraction := float64(converged) / float64(len(scope))
		if fraction >= run.EarlyStopFraction {
			o.logger.Info("early stop",
				logging.String(logging.FieldTaskID, state.TaskID),
				logging.Float64("converged_fraction", fraction),
			)
			return true
		}
	}
	return false
}

func (o *Orchestrator) summarize(state *runstate.State, scope []dataset.Sample, start time.Time) *Summary {
	converged, failed := o.tally(state, scope)
	return &Summary{
		TaskID:       state.TaskID,
		Rounds:       state.Round,
		Total:        len(scope),
		Converged:    converged,
		Failed:       failed,
		NotConverged: len(scope) - converged - failed,
		Duration:     time.Since(start),
	}
}
