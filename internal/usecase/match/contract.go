package match

import (
	"context"

	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/domain/search/query"
)

// ProductSearcher runs composite queries against the product index.
type ProductSearcher interface {
	Search(ctx context.Context, label string, q query.Node, offset, limit int) (domproduct.Page, error)
}
