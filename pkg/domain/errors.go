package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrMalformedCommand is returned when a command fails structural validation.
var ErrMalformedCommand = errors.New("malformed command")

// OperationError reports an operation that could not be resolved or failed while running.
type OperationError struct {
	// Target is "table" or "series".
	Target string
	Name   string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s operation %q: %v", e.Target, e.Name, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// SourceLoadError reports a source file that could not be read as a table.
type SourceLoadError struct {
	Path string
	Err  error
}

func (e *SourceLoadError) Error() string {
	return fmt.Sprintf("load source %s: %v", e.Path, e.Err)
}

func (e *SourceLoadError) Unwrap() error { return e.Err }
