package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"crucible/internal/dataset"
	"crucible/internal/logging"
	"crucible/internal/prediction"
	"crucible/internal/promptbuild"
	"crucible/internal/retrieval"
	"crucible/internal/runstate"
)

// task is the immutable snapshot handed to a worker. The prior series is
// copied out of the run state up front so workers never read shared state.
type task struct {
	sample dataset.Sample
	prior  map[string][]float64
}

type outcome struct {
	sample dataset.Sample
	prompt string
	result prediction.Result
	err    error
}

// runRound fans the round's pending samples across a bounded worker pool and
// merges outcomes back into the state from this single goroutine. Samples
// whose values for this round are already checkpointed are skipped, which
// makes a resumed round replay no work it already did.
func (o *Orchestrator) runRound(ctx context.Context, state *runstate.State, index *retrieval.Index, candidates []dataset.Sample, round int) error {
	var tasks []task
	for _, sample := range candidates {
		if state.RoundComplete(sample.Index, round) {
			continue
		}
		tasks = append(tasks, task{sample: sample, prior: state.Series(sample.Index)})
	}
	if len(tasks) == 0 {
		return ctx.Err()
	}

	workers := o.cfg.Run.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	work := make(chan task)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				if ctx.Err() != nil {
					return
				}
				results <- o.predictSample(ctx, index, item, round)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, item := range tasks {
			select {
			case work <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var mergeErr error
	done := 0
	for out := range results {
		if err := o.merge(ctx, state, out, round); err != nil && mergeErr == nil {
			mergeErr = err
		}
		done++
		fraction := (float64(round-1) + float64(done)/float64(len(tasks))) / float64(state.MaxIterations)
		o.sink.Progress(fraction, fmt.Sprintf("round %d: %d/%d samples attempted", round, done, len(tasks)))
	}
	if mergeErr != nil {
		return mergeErr
	}
	return ctx.Err()
}

// predictSample runs retrieval, prompt construction, and one prediction
// attempt for a sample. A response whose targets were all missing or zero
// gets one immediate retry before counting as a failure.
func (o *Orchestrator) predictSample(ctx context.Context, index *retrieval.Index, item task, round int) outcome {
	references, err := o.retrieve(ctx, index, item.sample)
	if err != nil {
		return outcome{sample: item.sample, err: fmt.Errorf("retrieve references: %w", err)}
	}

	prompt := promptbuild.Build(item.sample, references, o.split.Targets, item.prior)

	result, err := o.predictor.Predict(ctx, promptbuild.SystemPrompt, prompt, o.split.Targets)
	if errors.Is(err, prediction.ErrAllTargetsInvalid) && ctx.Err() == nil {
		o.logger.Warn("prediction had no usable targets, retrying",
			logging.Int(logging.FieldSampleIndex, item.sample.Index),
			logging.Int(logging.FieldRound, round),
		)
		result, err = o.predictor.Predict(ctx, promptbuild.SystemPrompt, prompt, o.split.Targets)
	}
	return outcome{sample: item.sample, prompt: prompt, result: result, err: err}
}

func (o *Orchestrator) retrieve(ctx context.Context, index *retrieval.Index, sample dataset.Sample) ([]promptbuild.Reference, error) {
	run := o.cfg.Run
	if run.TopK <= 0 || index.Len() == 0 {
		return nil, nil
	}
	vectors, err := o.embedder.Embed(ctx, []string{sample.FeatureText()})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(vectors))
	}
	matches := index.TopK(vectors[0], run.TopK, run.MinSimilarity)
	references := make([]promptbuild.Reference, 0, len(matches))
	for _, match := range matches {
		references = append(references, promptbuild.Reference{
			Sample:     o.split.Train[match.Index],
			Similarity: match.Similarity,
		})
	}
	return references, nil
}

// merge folds one worker outcome into the run state. Failures mark the
// sample and move on; only a transcript write error is fatal because it
// means the checkpoint store itself is broken.
func (o *Orchestrator) merge(ctx context.Context, state *runstate.State, out outcome, round int) error {
	if out.err != nil {
		state.MarkFailed(out.sample.Index, out.err.Error())
		o.logger.Warn("sample failed",
			logging.String(logging.FieldTaskID, state.TaskID),
			logging.Int(logging.FieldSampleIndex, out.sample.Index),
			logging.Int(logging.FieldRound, round),
			logging.Error(out.err),
		)
		return nil
	}

	for _, target := range state.Targets {
		value := out.result.Values[target]
		if value == nil {
			o.logger.Debug("target missing from response",
				logging.Int(logging.FieldSampleIndex, out.sample.Index),
				logging.String(logging.FieldTarget, target),
				logging.Int(logging.FieldRound, round),
			)
			continue
		}
		state.Record(out.sample.Index, target, round, *value)
	}
	state.ClearFailed(out.sample.Index)

	saveCtx := context.WithoutCancel(ctx)
	if err := o.store.SaveTranscript(saveCtx, state.TaskID, out.sample.Index, round, out.prompt, out.result.RawText); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}
