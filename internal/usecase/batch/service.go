// Package batch loads catalog products into the product index with per-item error reporting.
package batch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tagsearch/internal/domain"
	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	domproduct "github.com/kailas-cloud/tagsearch/internal/domain/product"
	"github.com/kailas-cloud/tagsearch/internal/logger"
)

// MaxBatchSize is the maximum number of items per API batch request.
const MaxBatchSize = 100

// Service validates and upserts products.
type Service struct {
	products     ProductUpserter
	maxBatchSize int
}

// New creates a batch service.
func New(products ProductUpserter) *Service {
	return &Service{products: products, maxBatchSize: MaxBatchSize}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Upsert creates or updates products in one request-sized batch. Oversized batches fail
// every item. Invalid items fail individually; the rest are written.
func (s *Service) Upsert(ctx context.Context, items []domproduct.Product) []dombatch.Result {
	if len(items) > s.maxBatchSize {
		results := make([]dombatch.Result, len(items))
		for i := range items {
			results[i] = dombatch.NewError(
				items[i].ProductID,
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidRequest),
			)
		}
		return results
	}
	return s.write(ctx, items)
}

// Load writes a whole catalog without the request size cap and summarizes the outcome.
func (s *Service) Load(ctx context.Context, items []domproduct.Product) dombatch.Outcome {
	outcome := dombatch.Summarize(s.write(ctx, items))
	logger.Component(ctx, "batch").Info("products loaded",
		zap.Int("written", outcome.Written), zap.Int("failed", outcome.Failed))
	return outcome
}

func (s *Service) write(ctx context.Context, items []domproduct.Product) []dombatch.Result {
	results := make([]dombatch.Result, len(items))
	valid := make([]domproduct.Product, 0, len(items))
	pos := make([]int, 0, len(items))

	for i := range items {
		if err := validate(&items[i]); err != nil {
			results[i] = dombatch.NewError(items[i].ProductID, err)
			continue
		}
		valid = append(valid, items[i])
		pos = append(pos, i)
	}
	if len(valid) == 0 {
		return results
	}

	written := s.products.Upsert(ctx, valid)
	for j, i := range pos {
		if j < len(written) {
			results[i] = written[j]
			continue
		}
		results[i] = dombatch.NewError(items[i].ProductID, fmt.Errorf("no write result"))
	}
	return results
}

func validate(p *domproduct.Product) error {
	if strings.TrimSpace(p.ProductID) == "" {
		return fmt.Errorf("product_id is required: %w", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product %s: name is required: %w", p.ProductID, domain.ErrInvalidRequest)
	}
	if p.Price < 0 {
		return fmt.Errorf("product %s: price must not be negative: %w", p.ProductID, domain.ErrInvalidRequest)
	}
	if p.Rating < 0 || p.Rating > 5 {
		return fmt.Errorf("product %s: rating must be between 0 and 5: %w", p.ProductID, domain.ErrInvalidRequest)
	}
	return nil
}
