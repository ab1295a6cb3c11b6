// Package aggregates declares the quest write boundaries: blueprint graph
// edits and assignment progress. Implementations live in
// internal/data/aggregates and must report failures as *Error.
package aggregates
