// Package product queries and loads catalog documents in the product index.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/tagsearch/internal/db"
	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
)

// store is the consumer interface for product operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) []error
}

// Options configures the product repository.
type Options struct {
	Index        string
	Prefix       string
	QueryTimeout time.Duration
	BatchSize    int
	// Latency is observed per query label (stage, keyword, typeahead). Optional.
	Latency prometheus.ObserverVec
}

// Repo implements the product searcher used by the matcher and the search service.
type Repo struct {
	store store
	opts  Options
}

// New creates a product repository.
func New(s store, opts Options) *Repo {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Repo{store: s, opts: opts}
}

// Search runs q against the product index and decodes one page of products.
// label names the caller for latency metrics.
func (r *Repo) Search(ctx context.Context, label string, q query.Node, offset, limit int) (domproduct.Page, error) {
	if r.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := r.store.Search(ctx, &db.SearchQuery{
		IndexName:    r.opts.Index,
		Query:        q,
		Offset:       offset,
		Limit:        limit,
		ReturnFields: []string{"$"},
		WithScores:   true,
	})
	if r.opts.Latency != nil {
		r.opts.Latency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return domproduct.Page{}, fmt.Errorf("%s product search: %w", label, db.Classify(err))
	}

	page := domproduct.Page{Total: res.Total, Products: make([]domproduct.Product, 0, len(res.Entries))}
	for _, e := range res.Entries {
		var p domproduct.Product
		if err := db.DecodeJSON(e.Fields["$"], &p); err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return domproduct.Page{}, fmt.Errorf("%s product search: decode %s: %w", label, e.Key, db.Classify(err))
		}
		p.Score = e.Score
		page.Products = append(page.Products, p)
	}
	return page, nil
}

// Upsert writes products keyed by prefix+product_id in pipelined batches.
func (r *Repo) Upsert(ctx context.Context, products []domproduct.Product) []dombatch.Result {
	results := make([]dombatch.Result, 0, len(products))
	for start := 0; start < len(products); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(products))
		results = append(results, r.upsertChunk(ctx, products[start:end])...)
	}
	return results
}

func (r *Repo) upsertChunk(ctx context.Context, products []domproduct.Product) []dombatch.Result {
	results := make([]dombatch.Result, len(products))
	items := make([]db.JSONSetItem, 0, len(products))
	pos := make([]int, 0, len(products))

	for i := range products {
		id := products[i].ProductID
		if id == "" {
			results[i] = dombatch.NewError(fmt.Sprintf("#%d", i), errors.New("product_id is required"))
			continue
		}
		doc := products[i]
		doc.Score = 0
		data, err := json.Marshal(&doc)
		if err != nil {
			results[i] = dombatch.NewError(id, fmt.Errorf("marshal: %w", err))
			continue
		}
		items = append(items, db.JSONSetItem{Key: r.opts.Prefix + id, Path: "$", Data: data})
		pos = append(pos, i)
	}

	errs := r.store.JSONSetMulti(ctx, items)
	for j, i := range pos {
		if j < len(errs) && errs[j] != nil {
			results[i] = dombatch.NewError(products[i].ProductID, db.Classify(errs[j]))
			continue
		}
		results[i] = dombatch.NewOK(products[i].ProductID)
	}
	return results
}
