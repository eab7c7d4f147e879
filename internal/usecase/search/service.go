// Package search answers product queries: semantic first, keyword as fallback.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagsearch/internal/domain"
	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
	"github.com/kailas-cloud/tagsearch/internal/logger"
)

// TypeaheadLimit caps typeahead suggestions.
const TypeaheadLimit = 10

// Keyword and typeahead product fields.
var (
	keywordFields   = []string{"name.text", "description.text", "search_keywords.text"}
	typeaheadFields = []string{"name.text", "search_keywords.text"}
)

// Options holds paging limits.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	// Indexed reports whether a field variant is an attribute of the product index.
	// Nil treats every variant as indexed.
	Indexed func(variant string) bool
}

// Request is a product search request. Zero Count and Page take the defaults.
type Request struct {
	Query   string
	Count   int
	Page    int
	Filters filter.Attributes
}

// Service handles product search.
type Service struct {
	recognizer Recognizer
	matcher    Matcher
	products   ProductSearcher
	opts       Options
}

// New creates a search service.
func New(recognizer Recognizer, matcher Matcher, products ProductSearcher, opts Options) *Service {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	return &Service{recognizer: recognizer, matcher: matcher, products: products, opts: opts}
}

// SemanticSearch recognizes tags in the query and runs the stage cascade. When no stage
// produces hits it answers with a keyword search; the response stage is then empty.
func (s *Service) SemanticSearch(ctx context.Context, req Request) (domproduct.Response, error) {
	req, err := s.normalize(req)
	if err != nil {
		return domproduct.Response{}, err
	}

	tags, err := s.recognizer.Recognize(ctx, req.Query)
	if err != nil {
		return domproduct.Response{}, fmt.Errorf("recognize: %w", err)
	}

	res, err := s.matcher.Match(ctx, tags, req.Filters, req.Page, req.Count)
	switch {
	case err == nil:
		return response(req, res.Stage, res.Total, res.Products), nil
	case errors.Is(err, domain.ErrNoSemanticMatch):
		logger.Component(ctx, "search").Debug("no semantic match, falling back to keyword search",
			zap.String("q", req.Query), zap.Int("tags", len(tags)))
		return s.keyword(ctx, req)
	default:
		return domproduct.Response{}, fmt.Errorf("semantic match: %w", err)
	}
}

// KeywordSearch runs a plain full-text query over name, description and search keywords.
// A blank query matches every product. Attribute filters are mandatory here.
func (s *Service) KeywordSearch(ctx context.Context, req Request) (domproduct.Response, error) {
	req, err := s.normalize(req)
	if err != nil {
		return domproduct.Response{}, err
	}
	return s.keyword(ctx, req)
}

func (s *Service) keyword(ctx context.Context, req Request) (domproduct.Response, error) {
	var q query.Node = query.MatchAll{}
	if words := strings.Fields(req.Query); len(words) > 0 {
		q = query.Match{Fields: keywordFields, Terms: words}
	}
	if !req.Filters.IsEmpty() {
		and := query.And{Clauses: []query.Node{q}}
		for _, c := range req.Filters.Conditions() {
			// No product carries an unindexed attribute.
			if s.opts.Indexed != nil && !s.opts.Indexed(c.Field()) {
				return response(req, "", 0, nil), nil
			}
			and.Clauses = append(and.Clauses, query.Term{Field: c.Field(), Value: c.Value()})
		}
		q = and
	}

	page, err := s.products.Search(ctx, "keyword", q, (req.Page-1)*req.Count, req.Count)
	if err != nil {
		return domproduct.Response{}, fmt.Errorf("keyword search: %w", err)
	}
	return response(req, "", page.Total, page.Products), nil
}

// Typeahead suggests up to TypeaheadLimit distinct product names. Every token but the
// last must match; the last one is matched as a prefix.
func (s *Service) Typeahead(ctx context.Context, text string) ([]string, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}, nil
	}

	and := query.And{}
	for _, w := range words[:len(words)-1] {
		and.Clauses = append(and.Clauses, query.Match{Fields: typeaheadFields, Terms: []string{w}})
	}
	last := words[len(words)-1]
	prefixes := make([]query.Node, 0, len(typeaheadFields))
	for _, f := range typeaheadFields {
		prefixes = append(prefixes, query.Prefix{Field: f, Value: last})
	}
	and.Clauses = append(and.Clauses, query.DisMax{Clauses: prefixes})

	page, err := s.products.Search(ctx, "typeahead", and, 0, TypeaheadLimit)
	if err != nil {
		return nil, fmt.Errorf("typeahead: %w", err)
	}

	seen := make(map[string]struct{}, len(page.Products))
	names := make([]string, 0, len(page.Products))
	for _, p := range page.Products {
		if p.Name == "" {
			continue
		}
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		names = append(names, p.Name)
	}
	return names, nil
}

func (s *Service) normalize(req Request) (Request, error) {
	if req.Count < 0 || req.Page < 0 {
		return req, fmt.Errorf("%w: count and page must not be negative", domain.ErrInvalidRequest)
	}
	if req.Count == 0 {
		req.Count = s.opts.DefaultPageSize
	}
	req.Count = min(req.Count, s.opts.MaxPageSize)
	if req.Page == 0 {
		req.Page = 1
	}
	req.Query = strings.TrimSpace(req.Query)
	return req, nil
}

func response(req Request, stage string, total int, products []domproduct.Product) domproduct.Response {
	if products == nil {
		products = []domproduct.Product{}
	}
	return domproduct.Response{
		Query:      req.Query,
		NumFound:   total,
		Attributes: req.Filters.Map(),
		Products:   products,
		Count:      len(products),
		Page:       req.Page,
		Stage:      stage,
	}
}
