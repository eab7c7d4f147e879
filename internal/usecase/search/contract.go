package search

import (
	"context"

	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
	"github.com/kailas-cloud/tagsearch/internal/usecase/match"
)

// Recognizer maps query text to tags.
type Recognizer interface {
	Recognize(ctx context.Context, query string) ([]domtag.Recognized, error)
}

// Matcher runs the semantic stage cascade.
type Matcher interface {
	Match(ctx context.Context, tags []domtag.Recognized, filters filter.Attributes, page, pageSize int) (match.Result, error)
}

// ProductSearcher runs plain queries against the product index.
type ProductSearcher interface {
	Search(ctx context.Context, label string, q query.Node, offset, limit int) (domproduct.Page, error)
}
