package tagindex

import (
	"context"

	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
	"github.com/kailas-cloud/tagsearch/internal/repository/index"
)

// TagWriter upserts tag documents by source id.
type TagWriter interface {
	Upsert(ctx context.Context, docs []domtag.Document) []dombatch.Result
}

// RunRecorder keeps the record of the last indexing run.
type RunRecorder interface {
	SaveRun(ctx context.Context, run index.Run) error
}
