// Package tag reads and writes semantic tag documents in the tag store.
package tag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/tagsearch/internal/db"
	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
)

// tagAttr is the TEXT attribute holding the tag text.
const tagAttr = "tag"

// store is the consumer interface for tag operations (ISP).
type store interface {
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) []error
}

// Options configures the tag repository.
type Options struct {
	Index        string
	Prefix       string
	LookupSize   int
	QueryTimeout time.Duration
	BatchSize    int
	// Latency is observed per lookup kind (exact, phrase, fuzzy). Optional.
	Latency prometheus.ObserverVec
}

// Repo implements usecase/recognize.TagStore and usecase/tagindex.TagWriter.
type Repo struct {
	store store
	opts  Options
}

// New creates a tag repository.
func New(s store, opts Options) *Repo {
	if opts.LookupSize <= 0 {
		opts.LookupSize = 100
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Repo{store: s, opts: opts}
}

// MatchToken finds tags whose text contains token.
func (r *Repo) MatchToken(ctx context.Context, token string) ([]domtag.Hit, error) {
	return r.lookup(ctx, "exact", query.Match{Fields: []string{tagAttr}, Terms: []string{token}})
}

// MatchPhrase finds tags matching text as an exact word sequence.
func (r *Repo) MatchPhrase(ctx context.Context, text string) ([]domtag.Hit, error) {
	return r.lookup(ctx, "phrase", query.Phrase{Field: tagAttr, Text: text})
}

// MatchFuzzy finds tags within the automatic edit distance of token.
func (r *Repo) MatchFuzzy(ctx context.Context, token string) ([]domtag.Hit, error) {
	return r.lookup(ctx, "fuzzy", query.Fuzzy{Field: tagAttr, Term: token})
}

func (r *Repo) lookup(ctx context.Context, kind string, q query.Node) ([]domtag.Hit, error) {
	if r.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.QueryTimeout)
		defer cancel()
	}

	sq := &db.SearchQuery{
		IndexName:    r.opts.Index,
		Query:        q,
		Limit:        r.opts.LookupSize,
		ReturnFields: []string{"$", tagAttr},
		Highlight:    []string{tagAttr},
	}

	start := time.Now()
	res, err := r.store.Search(ctx, sq)
	if r.opts.Latency != nil {
		r.opts.Latency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("%s tag lookup: %w", kind, db.Classify(err))
	}

	hits := make([]domtag.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		var doc domtag.Document
		if err := db.DecodeJSON(e.Fields["$"], &doc); err != nil {
			return nil, fmt.Errorf("%s tag lookup: decode %s: %w", kind, e.Key, db.Classify(err))
		}
		h := domtag.Hit{Doc: doc}
		if hl := e.Fields[tagAttr]; strings.Contains(hl, db.HighlightOpen) {
			h.Highlighted = hl
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Upsert writes tag documents keyed by prefix+sourceId in pipelined batches.
// Every document gets its own result; a failed item does not stop the rest.
func (r *Repo) Upsert(ctx context.Context, docs []domtag.Document) []dombatch.Result {
	results := make([]dombatch.Result, 0, len(docs))
	for start := 0; start < len(docs); start += r.opts.BatchSize {
		end := min(start+r.opts.BatchSize, len(docs))
		results = append(results, r.upsertChunk(ctx, docs[start:end])...)
	}
	return results
}

func (r *Repo) upsertChunk(ctx context.Context, docs []domtag.Document) []dombatch.Result {
	results := make([]dombatch.Result, len(docs))
	items := make([]db.JSONSetItem, 0, len(docs))
	pos := make([]int, 0, len(docs))

	for i := range docs {
		data, err := json.Marshal(&docs[i])
		if err != nil {
			results[i] = dombatch.NewError(docs[i].SourceID, fmt.Errorf("marshal: %w", err))
			continue
		}
		items = append(items, db.JSONSetItem{Key: r.Key(docs[i].SourceID), Path: "$", Data: data})
		pos = append(pos, i)
	}

	errs := r.store.JSONSetMulti(ctx, items)
	for j, i := range pos {
		var err error
		if j < len(errs) {
			err = errs[j]
		}
		if err != nil {
			results[i] = dombatch.NewError(docs[i].SourceID, db.Classify(err))
			continue
		}
		results[i] = dombatch.NewOK(docs[i].SourceID)
	}
	return results
}

// Key returns the store key of a tag.
func (r *Repo) Key(sourceID string) string {
	return r.opts.Prefix + sourceID
}
