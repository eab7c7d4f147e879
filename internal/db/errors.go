package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/tagsearch/internal/domain"
)

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Op constants map to Redis command names for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpJSONSet     = "JSON.SET"
	OpGet         = "GET"
	OpSet         = "SET"
)

// Error wraps an underlying error with the operation name for diagnostics.
// Server is true when the store answered with an error reply (as opposed to a
// transport failure or timeout).
type Error struct {
	Op     string
	Err    error
	Server bool
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsServerError reports whether err carries a store error reply.
func IsServerError(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Server
}

// Classify maps a store failure onto the backend error taxonomy. Transport failures and
// deadlines are ErrBackendUnavailable; error replies and queries the store layer refused
// to build are ErrBackendQuery. The original error stays in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrBackendUnavailable) || errors.Is(err, domain.ErrBackendQuery) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	var de *Error
	if errors.As(err, &de) && !de.Server {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrBackendQuery, err)
}
