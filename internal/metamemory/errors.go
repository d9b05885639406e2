package metamemory

import "errors"

// Sentinel errors shared by every layer of the metamemory graph.
// Callers distinguish failure categories with errors.Is.
var (
	// ErrMissingInput is returned when a required argument is empty.
	ErrMissingInput = errors.New("missing required input")

	// ErrInvalidInput is returned for arguments that are present but
	// unusable: an unknown type or link token, or a node of the wrong type.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a node or file hash does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCapacity is returned when a bounded list is already full.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrDuplicate is returned when creating a node whose ID already exists.
	ErrDuplicate = errors.New("already exists")

	// ErrStorage wraps any failure reported by the storage engine.
	ErrStorage = errors.New("storage failure")
)
