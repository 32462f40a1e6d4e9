// Package checkpoint persists run progress so an interrupted run resumes
// where it stopped. SQLite is the source of truth; history.json and
// predictions.csv in the task directory are derived views rewritten on every
// checkpoint.
package checkpoint
