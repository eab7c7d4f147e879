package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable signals that the tag store or document index could not be reached
	// (dial failure, timeout, cancelled context).
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendQuery signals a store-side rejection of a query. It indicates a config bug.
	ErrBackendQuery = errors.New("backend query error")
	// ErrConfigLoad signals a missing or malformed startup table.
	ErrConfigLoad = errors.New("config load error")
	// ErrPartialIndexFailure signals that part of a tag upsert batch failed.
	ErrPartialIndexFailure = errors.New("partial index failure")
	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoSemanticMatch signals that no semantic stage produced hits.
	ErrNoSemanticMatch = errors.New("no semantic match")
)

// ConfigError wraps ErrConfigLoad with the offending file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConfigLoad.Error(), e.Path, e.Err)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfigLoad, e.Err} }

// NewConfigError creates a config load error for path.
func NewConfigError(path string, err error) error {
	return &ConfigError{Path: path, Err: err}
}
