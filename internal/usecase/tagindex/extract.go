package tagindex

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kailas-cloud/tagsearch/internal/domain/dataset"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
	"github.com/kailas-cloud/tagsearch/internal/domain/tagfield"
)

// Extractor turns a catalog snapshot into candidate tag documents, one pool task per field.
type Extractor struct {
	fields tagfield.Config
	pool   *ants.Pool
}

// NewExtractor creates an extractor with a pool of workers. Call Release when done.
func NewExtractor(fields tagfield.Config, workers int) (*Extractor, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("extract pool: %w", err)
	}
	return &Extractor{fields: fields, pool: pool}, nil
}

// Release stops the worker pool.
func (e *Extractor) Release() {
	e.pool.Release()
}

// Extract returns the deduplicated candidates: fields in configured order, and within a
// field, values in first-seen order. On a source id collision the later document wins
// but keeps the earlier position.
func (e *Extractor) Extract(ctx context.Context, snap dataset.Snapshot) ([]domtag.Document, error) {
	names := e.fields.Names()
	perField := make([][]domtag.Document, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		entry, _ := e.fields.Get(name)
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			perField[i] = extractField(name, entry, snap.Rows())
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []domtag.Document
	for _, docs := range perField {
		all = append(all, docs...)
	}
	return dedupBySourceID(all), nil
}

func extractField(name string, entry tagfield.Entry, rows []dataset.Row) []domtag.Document {
	snake := dataset.SnakeCase(name)
	var docs []domtag.Document

	if entry.AsMap {
		seen := make(map[string]struct{})
		for _, row := range rows {
			nested, ok := row.Nested(name)
			if !ok {
				continue
			}
			keys := make([]string, 0, len(nested))
			for k := range nested {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				path := snake + "." + dataset.SnakeCase(k)
				v := nested[k]
				if _, dup := seen[path+"\x00"+v]; dup {
					continue
				}
				seen[path+"\x00"+v] = struct{}{}
				docs = append(docs, valueTags(v, path, entry)...)
			}
		}
		return docs
	}

	seen := make(map[string]struct{})
	for _, row := range rows {
		v, ok := row.Scalar(name)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		docs = append(docs, valueTags(v, snake, entry)...)
	}
	return docs
}

// valueTags emits the whole-value tag and/or one lowercased tag per whitespace token.
func valueTags(value, path string, entry tagfield.Entry) []domtag.Document {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var docs []domtag.Document
	if entry.Concept {
		docs = append(docs, domtag.NewDocument(value, path, domtag.TypeConcept))
	}
	if entry.Text {
		for _, tok := range strings.Fields(strings.ToLower(value)) {
			docs = append(docs, domtag.NewDocument(tok, path, domtag.TypeText))
		}
	}
	return docs
}

func dedupBySourceID(docs []domtag.Document) []domtag.Document {
	pos := make(map[string]int, len(docs))
	out := make([]domtag.Document, 0, len(docs))
	for _, d := range docs {
		if i, ok := pos[d.SourceID]; ok {
			out[i] = d
			continue
		}
		pos[d.SourceID] = len(out)
		out = append(out, d)
	}
	return out
}
