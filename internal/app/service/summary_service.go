package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/metrics"
)

// Summarizer computes product extents from the index.
type Summarizer interface {
	Summarize(ctx context.Context, product string) (*domain.ProductSummary, error)
}

// SummaryService serves product summaries, caching them when a cache is
// configured. Cache failures fall through to the index.
type SummaryService struct {
	source  Summarizer
	cache   domain.Cache // nil disables caching
	ttl     time.Duration
	metrics *metrics.Provider
	logger  *zap.Logger
}

// NewSummaryService creates a new SummaryService. cache and m may be nil.
func NewSummaryService(source Summarizer, cache domain.Cache, ttl time.Duration, m *metrics.Provider, logger *zap.Logger) *SummaryService {
	return &SummaryService{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

func summaryKey(product string) string {
	return "summary:" + product
}

// Get returns the summary of a product.
func (s *SummaryService) Get(ctx context.Context, product string) (*domain.ProductSummary, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, summaryKey(product)); err == nil && data != nil {
			var sum domain.ProductSummary
			if err := json.Unmarshal(data, &sum); err == nil {
				s.metrics.ObserveSummaryCache(true)
				return &sum, nil
			}
			s.logger.Warn("discarding undecodable cached summary", zap.String("product", product))
		}
		s.metrics.ObserveSummaryCache(false)
	}

	sum, err := s.source.Summarize(ctx, product)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.FilterError{Kind: domain.FilterNotFound, Field: "product", Message: "unknown product " + product}
		}
		return nil, &domain.SourceError{Op: "summarize", Err: err}
	}

	if s.cache != nil {
		data, err := json.Marshal(sum)
		if err == nil {
			if err := s.cache.Set(ctx, summaryKey(product), data, s.ttl); err != nil {
				s.logger.Warn("caching summary failed", zap.String("product", product), zap.Error(err))
			}
		}
	}

	return sum, nil
}

// Invalidate drops cached summaries for the given products.
func (s *SummaryService) Invalidate(ctx context.Context, products ...string) error {
	if s.cache == nil || len(products) == 0 {
		return nil
	}
	keys := make([]string, len(products))
	for i, p := range products {
		keys[i] = summaryKey(p)
	}
	return s.cache.Delete(ctx, keys...)
}
