package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/tagsearch/internal/db"
)

// JSONSetMulti stores multiple documents in a single DoMulti round-trip.
// Each item succeeds or fails on its own.
func (s *Store) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) []error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmds[i] = s.b().Arbitrary("JSON.SET").Keys(item.Key).Args(item.Path, string(item.Data)).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	errs := make([]error, len(items))
	for i, res := range results {
		if err := res.Error(); err != nil {
			e := opError(db.OpJSONSet, err)
			e.Err = fmt.Errorf("key %s: %w", items[i].Key, err)
			errs[i] = e
		}
	}
	return errs
}
