package store

import "errors"

// Domain errors for store operations.
var (
	// ErrWrite is returned when a node or value cannot be written.
	ErrWrite = errors.New("store: write failed")

	// ErrRead is returned when the tree cannot be read.
	ErrRead = errors.New("store: read failed")

	// ErrNotFound is returned when a write targets a state that was never
	// created with EnsureState.
	ErrNotFound = errors.New("store: node not found")
)
