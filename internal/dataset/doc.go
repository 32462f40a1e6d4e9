// Package dataset defines the sample model shared by retrieval, prompting,
// and orchestration, plus the CSV loader for pre-split train/test files.
package dataset
