// Package logging assembles the structured slog loggers used across crucible.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes attribute helpers so orchestration code tags log lines with
// task IDs, sample indices, and rounds consistently. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
