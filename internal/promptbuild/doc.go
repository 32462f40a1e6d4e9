// Package promptbuild renders the prediction prompts sent to the completion
// model: task statement, retrieved reference samples, the query sample, and
// a prior-round summary so the model can self-correct across rounds.
package promptbuild
