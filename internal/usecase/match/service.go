// Package match runs the semantic stage cascade over recognized tags.
package match

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagsearch/internal/domain"
	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
	domstage "github.com/kailas-cloud/tagsearch/internal/domain/stage"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
	"github.com/kailas-cloud/tagsearch/internal/logger"
	"github.com/kailas-cloud/tagsearch/internal/metrics"
)

// Options tunes composite query construction.
type Options struct {
	// OuterTieBreaker combines token groups, filters and the fallback clause.
	OuterTieBreaker float64
	// InnerTieBreaker combines the tag variants of one token group.
	InnerTieBreaker float64
	// FilterPolicy decides whether attribute filters boost or restrict.
	FilterPolicy filter.Policy
	// Indexed reports whether a field variant is an attribute of the product index.
	// Variants it rejects are never queried. Nil treats every variant as indexed.
	Indexed func(variant string) bool
}

// Result is the first stage page with hits.
type Result struct {
	Stage    string
	Total    int
	Products []domproduct.Product
}

// Service is the stage matcher. It holds only read-only configuration.
type Service struct {
	products ProductSearcher
	stages   domstage.Config
	opts     Options
}

// New creates a stage matcher over an immutable stage list.
func New(products ProductSearcher, stages domstage.Config, opts Options) *Service {
	if !opts.FilterPolicy.IsValid() {
		opts.FilterPolicy = filter.AsBoost
	}
	return &Service{products: products, stages: stages, opts: opts}
}

// group is the tag variants recognized for one original token.
type group struct {
	token string
	tags  []domtag.Recognized
}

// Match evaluates stages in order and returns the first one with hits. It returns
// domain.ErrNoSemanticMatch when every stage was skipped or empty. Stages are never
// queried concurrently: stage k+1 runs only after stage k produced nothing.
func (s *Service) Match(
	ctx context.Context, tags []domtag.Recognized, filters filter.Attributes, page, pageSize int,
) (Result, error) {
	if page < 1 || pageSize < 1 {
		return Result{}, fmt.Errorf("%w: page and page size must be positive", domain.ErrInvalidRequest)
	}
	log := logger.Component(ctx, "matcher")
	if len(tags) == 0 {
		metrics.StageOutcomesTotal.WithLabelValues("", metrics.StageNoMatch).Inc()
		return Result{}, domain.ErrNoSemanticMatch
	}

	percent := matchPercent(tags)
	groups := groupByToken(tags)
	offset := (page - 1) * pageSize

	stages := s.stages.Stages()
	for i := range stages {
		st := &stages[i]
		if percent < st.MinMatchPercent() {
			metrics.StageOutcomesTotal.WithLabelValues(st.Name(), metrics.StageSkippedGate).Inc()
			log.Debug("stage skipped", zap.String("stage", st.Name()),
				zap.Float64("match_percent", percent), zap.Float64("min", st.MinMatchPercent()))
			continue
		}

		q, ok := s.composite(st, groups, tags, filters)
		if !ok {
			metrics.StageOutcomesTotal.WithLabelValues(st.Name(), metrics.StageSkippedStageGate).Inc()
			log.Debug("stage gate not met", zap.String("stage", st.Name()))
			continue
		}

		res, err := s.products.Search(ctx, "stage", q, offset, pageSize)
		if err != nil {
			return Result{}, fmt.Errorf("stage %s: %w", st.Name(), err)
		}
		if res.Total > 0 {
			metrics.StageOutcomesTotal.WithLabelValues(st.Name(), metrics.StageHit).Inc()
			log.Debug("stage hit", zap.String("stage", st.Name()), zap.Int("total", res.Total))
			return Result{Stage: st.Name(), Total: res.Total, Products: res.Products}, nil
		}
		metrics.StageOutcomesTotal.WithLabelValues(st.Name(), metrics.StageEmpty).Inc()
	}

	metrics.StageOutcomesTotal.WithLabelValues("", metrics.StageNoMatch).Inc()
	return Result{}, domain.ErrNoSemanticMatch
}

// composite builds the stage query. It reports false when the share of token groups with
// at least one resolved variant is below the stage gate, or when nothing would be queried.
func (s *Service) composite(
	st *domstage.Stage, groups []group, tags []domtag.Recognized, filters filter.Attributes,
) (query.Node, bool) {
	var clauses []query.Node
	matched := 0
	for _, g := range groups {
		if inner, ok := s.groupClause(st, g); ok {
			clauses = append(clauses, inner)
			matched++
		}
	}

	stagePercent := 0.0
	if len(groups) > 0 {
		stagePercent = float64(matched) / float64(len(groups))
	}
	if stagePercent < st.MinMatchPercent() {
		return nil, false
	}

	if s.opts.FilterPolicy == filter.AsBoost {
		for _, c := range filters.Conditions() {
			if s.indexed(c.Field()) {
				clauses = append(clauses, query.Term{Field: c.Field(), Value: c.Value()})
			}
		}
	}

	if fields := s.indexedFields(st.FieldNames()); len(fields) > 0 {
		if words := unrecognisedTokens(tags); len(words) > 0 {
			clauses = append(clauses, query.Match{Fields: fields, Terms: words})
		}
	}

	if len(clauses) == 0 {
		return nil, false
	}
	var q query.Node = query.DisMax{TieBreaker: s.opts.OuterTieBreaker, Clauses: clauses}

	if s.opts.FilterPolicy == filter.AsRequired && !filters.IsEmpty() {
		and := query.And{Clauses: []query.Node{q}}
		for _, c := range filters.Conditions() {
			// No product carries an unindexed attribute, so the stage cannot hit.
			if !s.indexed(c.Field()) {
				return nil, false
			}
			and.Clauses = append(and.Clauses, query.Term{Field: c.Field(), Value: c.Value()})
		}
		q = and
	}
	return q, true
}

// groupClause builds the inner disjunction over the group's variants that resolve in st.
func (s *Service) groupClause(st *domstage.Stage, g group) (query.Node, bool) {
	var variants []query.Node
	for i := range g.tags {
		t := &g.tags[i]
		boost, ok := st.Resolve(t.FieldVariant())
		if !ok || !s.indexed(t.FieldVariant()) {
			continue
		}
		if t.MatchType == domtag.MatchSpellcheck {
			boost /= 2
		}
		variants = append(variants, query.Term{Field: t.FieldVariant(), Value: t.Tag, Boost: boost})
	}
	if len(variants) == 0 {
		return nil, false
	}
	return query.DisMax{TieBreaker: s.opts.InnerTieBreaker, Clauses: variants}, true
}

func (s *Service) indexed(variant string) bool {
	return s.opts.Indexed == nil || s.opts.Indexed(variant)
}

func (s *Service) indexedFields(fields []string) []string {
	out := fields[:0]
	for _, f := range fields {
		if s.indexed(f) {
			out = append(out, f)
		}
	}
	return out
}

func matchPercent(tags []domtag.Recognized) float64 {
	if len(tags) == 0 {
		return 0
	}
	recognized := 0
	for i := range tags {
		if tags[i].MatchType != domtag.MatchUnrecognised {
			recognized++
		}
	}
	return float64(recognized) / float64(len(tags))
}

// groupByToken groups tags by case-folded original token, in first-seen order.
func groupByToken(tags []domtag.Recognized) []group {
	idx := make(map[string]int)
	var out []group
	for i := range tags {
		key := strings.ToLower(tags[i].OriginalToken)
		j, ok := idx[key]
		if !ok {
			j = len(out)
			idx[key] = j
			out = append(out, group{token: key})
		}
		out[j].tags = append(out[j].tags, tags[i])
	}
	return out
}

func unrecognisedTokens(tags []domtag.Recognized) []string {
	var out []string
	for i := range tags {
		if tags[i].MatchType == domtag.MatchUnrecognised {
			out = append(out, tags[i].OriginalToken)
		}
	}
	return out
}
