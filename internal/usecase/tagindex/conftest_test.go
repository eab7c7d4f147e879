package tagindex

import (
	"context"
	"errors"
	"sync"

	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
	"github.com/kailas-cloud/tagsearch/internal/repository/index"
)

// memTags is an in-memory tag store keyed by source id.
type memTags struct {
	mu     sync.Mutex
	docs   map[string]domtag.Document
	failOn map[string]bool
}

func newMemTags() *memTags {
	return &memTags{docs: map[string]domtag.Document{}, failOn: map[string]bool{}}
}

func (m *memTags) Upsert(_ context.Context, docs []domtag.Document) []dombatch.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dombatch.Result, 0, len(docs))
	for _, d := range docs {
		if m.failOn[d.SourceID] {
			out = append(out, dombatch.NewError(d.SourceID, errors.New("write refused")))
			continue
		}
		m.docs[d.SourceID] = d
		out = append(out, dombatch.NewOK(d.SourceID))
	}
	return out
}

type memRuns struct {
	runs []index.Run
	err  error
}

func (m *memRuns) SaveRun(_ context.Context, run index.Run) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}
