package batch

import (
	"context"

	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
)

// ProductUpserter creates or updates product documents in storage.
type ProductUpserter interface {
	Upsert(ctx context.Context, products []domproduct.Product) []dombatch.Result
}
