// Package orchestrator runs the iterative prediction loop: retrieve
// references, prompt the model for every unconverged sample, fold results
// into per-sample history, and stop once predictions stabilize or the round
// budget is spent. Every round ends with a durable checkpoint, so a killed
// run resumes from its last completed round.
package orchestrator
