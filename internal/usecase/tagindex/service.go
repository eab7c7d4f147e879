// Package tagindex builds the tag vocabulary from catalog snapshots.
package tagindex

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	"github.com/kailas-cloud/tagsearch/internal/domain/dataset"
	"github.com/kailas-cloud/tagsearch/internal/logger"
	"github.com/kailas-cloud/tagsearch/internal/metrics"
	"github.com/kailas-cloud/tagsearch/internal/repository/index"
)

// Service extracts tags from a snapshot and upserts them into the tag store.
type Service struct {
	extractor *Extractor
	tags      TagWriter
	runs      RunRecorder
	now       func() time.Time
}

// New creates the tag index writer. runs may be nil.
func New(extractor *Extractor, tags TagWriter, runs RunRecorder) *Service {
	return &Service{extractor: extractor, tags: tags, runs: runs, now: time.Now}
}

// IndexTags extracts and writes the snapshot's tags. Partial write failures are reported
// in the outcome, not as an error; documents already written stay written. Re-running on
// the same snapshot rewrites the same keys.
func (s *Service) IndexTags(ctx context.Context, source string, snap dataset.Snapshot) (dombatch.Outcome, error) {
	log := logger.Component(ctx, "tagindex")

	docs, err := s.extractor.Extract(ctx, snap)
	if err != nil {
		return dombatch.Outcome{}, fmt.Errorf("extract tags: %w", err)
	}

	outcome := dombatch.Summarize(s.tags.Upsert(ctx, docs))
	metrics.TagUpsertsTotal.WithLabelValues("written").Add(float64(outcome.Written))
	metrics.TagUpsertsTotal.WithLabelValues("failed").Add(float64(outcome.Failed))

	fields := []zap.Field{
		zap.String("source", source),
		zap.Int("rows", snap.Len()),
		zap.Int("candidates", len(docs)),
		zap.Int("written", outcome.Written),
		zap.Int("failed", outcome.Failed),
	}
	if outcome.Failed > 0 {
		log.Warn("tag indexing finished with failures", append(fields, zap.Strings("errors", outcome.Errors))...)
	} else {
		log.Info("tag indexing finished", fields...)
	}

	if s.runs != nil {
		run := index.Run{Source: source, Rows: snap.Len(), Outcome: outcome, Finished: s.now().UTC()}
		if err := s.runs.SaveRun(ctx, run); err != nil {
			log.Warn("save indexing run", zap.Error(err))
		}
	}
	return outcome, nil
}
