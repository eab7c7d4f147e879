package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/tagsearch/internal/db"
	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
)

// store is the consumer interface for index lifecycle and run bookkeeping (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexAttributes(ctx context.Context, name string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Run is the record of one tag indexing run.
type Run struct {
	Source   string           `json:"source"`
	Rows     int              `json:"rows"`
	Outcome  dombatch.Outcome `json:"outcome"`
	Finished time.Time        `json:"finished"`
}

// Repo creates indexes and keeps the last indexing run.
type Repo struct {
	store  store
	runKey string
}

// New creates an index repository. runKey is where the last run record is kept.
func New(s store, runKey string) *Repo {
	return &Repo{store: s, runKey: runKey}
}

// Ensure creates each index unless it already exists. Returns the names it created.
func (r *Repo) Ensure(ctx context.Context, defs ...*db.IndexDefinition) ([]string, error) {
	var created []string
	for _, def := range defs {
		err := r.store.CreateIndex(ctx, def)
		switch {
		case err == nil:
			created = append(created, def.Name)
		case errors.Is(err, db.ErrIndexExists):
		default:
			return created, fmt.Errorf("create index %s: %w", def.Name, db.Classify(err))
		}
	}
	return created, nil
}

// Recreate drops each index (keeping its documents) and creates it again from def.
// Documents under the prefix are re-indexed by the store in the background.
func (r *Repo) Recreate(ctx context.Context, defs ...*db.IndexDefinition) error {
	for _, def := range defs {
		if err := r.store.DropIndex(ctx, def.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", def.Name, db.Classify(err))
		}
		if err := r.store.CreateIndex(ctx, def); err != nil {
			return fmt.Errorf("create index %s: %w", def.Name, db.Classify(err))
		}
	}
	return nil
}

// Missing returns the names among names that do not exist.
func (r *Repo) Missing(ctx context.Context, names ...string) ([]string, error) {
	var missing []string
	for _, name := range names {
		ok, err := r.store.IndexExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("index info %s: %w", name, db.Classify(err))
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Schema reads the attributes the named index was created with.
func (r *Repo) Schema(ctx context.Context, name string) (Schema, error) {
	attrs, err := r.store.IndexAttributes(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("index schema %s: %w", name, db.Classify(err))
	}
	return NewSchema(attrs), nil
}

// SaveRun records the outcome of an indexing run.
func (r *Repo) SaveRun(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := r.store.Set(ctx, r.runKey, data); err != nil {
		return fmt.Errorf("save run %s: %w", r.runKey, db.Classify(err))
	}
	return nil
}

// LastRun returns the last recorded run. ok is false when no run was recorded.
func (r *Repo) LastRun(ctx context.Context) (Run, bool, error) {
	data, err := r.store.Get(ctx, r.runKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return Run{}, false, nil
		}
		return Run{}, false, fmt.Errorf("last run %s: %w", r.runKey, db.Classify(err))
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return Run{}, false, fmt.Errorf("last run %s parse: %w", r.runKey, err)
	}
	return run, true, nil
}
