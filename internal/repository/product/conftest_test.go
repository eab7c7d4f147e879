package product

import (
	"context"
	"testing"

	"github.com/kailas-cloud/tagsearch/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn       func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) []error
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) []error {
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return make([]error, len(items))
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, Options{Index: "products", Prefix: "product:"}), ms
}
