package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/metrics"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/region"
)

// DefaultBatchSize bounds the number of datasets written per upsert.
const DefaultBatchSize = 500

// IndexWriter stores ingested products and datasets.
type IndexWriter interface {
	UpsertProducts(ctx context.Context, products []*domain.Product) error
	UpsertDatasets(ctx context.Context, datasets []*domain.Dataset) error
}

// CatalogInvalidator drops cached product lookups.
type CatalogInvalidator interface {
	Invalidate()
}

// SyncService ingests products and datasets from upstream index providers.
type SyncService struct {
	repo      IndexWriter
	providers []domain.IndexProvider
	summaries *SummaryService
	catalog   CatalogInvalidator
	regions   *region.Coder
	batchSize int
	metrics   *metrics.Provider
	logger    *zap.Logger
}

// SyncOption configures a SyncService.
type SyncOption func(*SyncService)

// WithSummaries invalidates cached summaries of synced products.
func WithSummaries(s *SummaryService) SyncOption {
	return func(svc *SyncService) { svc.summaries = s }
}

// WithCatalog invalidates a product catalog cache after each sync.
func WithCatalog(c CatalogInvalidator) SyncOption {
	return func(svc *SyncService) { svc.catalog = c }
}

// WithRegionCoder assigns region codes to datasets that arrive without one.
func WithRegionCoder(c *region.Coder) SyncOption {
	return func(svc *SyncService) { svc.regions = c }
}

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) SyncOption {
	return func(svc *SyncService) {
		if n > 0 {
			svc.batchSize = n
		}
	}
}

// WithMetrics records per-provider sync outcomes.
func WithMetrics(m *metrics.Provider) SyncOption {
	return func(svc *SyncService) { svc.metrics = m }
}

// NewSyncService creates a new SyncService.
func NewSyncService(repo IndexWriter, providers []domain.IndexProvider, logger *zap.Logger, opts ...SyncOption) *SyncService {
	s := &SyncService{
		repo:      repo,
		providers: providers,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncResult holds the result of a sync operation.
type SyncResult struct {
	Provider string
	Products int
	Count    int
	Skipped  int
	Duration time.Duration
	Error    error
}

// SyncAll synchronizes every provider concurrently. Partial failures are
// allowed; each provider reports its own result.
func (s *SyncService) SyncAll(ctx context.Context) []SyncResult {
	results := make([]SyncResult, len(s.providers))
	var wg sync.WaitGroup

	s.logger.Info("starting sync from all providers",
		zap.Int("provider_count", len(s.providers)),
	)

	for i, provider := range s.providers {
		wg.Add(1)
		go func(idx int, p domain.IndexProvider) {
			defer wg.Done()
			results[idx] = s.syncProvider(ctx, p)
		}(i, provider)
	}

	wg.Wait()

	if s.catalog != nil {
		s.catalog.Invalidate()
	}

	totalSynced := 0
	totalErrors := 0
	for _, r := range results {
		if r.Error != nil {
			totalErrors++
		} else {
			totalSynced += r.Count
		}
	}

	s.logger.Info("sync completed",
		zap.Int("total_synced", totalSynced),
		zap.Int("providers_failed", totalErrors),
	)

	return results
}

// SyncProvider synchronizes a single provider by name. It returns
// domain.ErrNotFound when no provider has that name.
func (s *SyncService) SyncProvider(ctx context.Context, providerName string) (*SyncResult, error) {
	for _, p := range s.providers {
		if p.Name() == providerName {
			result := s.syncProvider(ctx, p)
			if s.catalog != nil {
				s.catalog.Invalidate()
			}
			return &result, result.Error
		}
	}
	return nil, fmt.Errorf("provider %q: %w", providerName, domain.ErrNotFound)
}

// GetProviderNames returns the names of all registered providers.
func (s *SyncService) GetProviderNames() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

func (s *SyncService) syncProvider(ctx context.Context, provider domain.IndexProvider) (result SyncResult) {
	start := time.Now()
	result.Provider = provider.Name()
	log := s.logger.With(zap.String("provider", provider.Name()))

	defer func() {
		result.Duration = time.Since(start)
		s.metrics.ObserveSync(result.Provider, result.Count, result.Error)
	}()

	log.Debug("syncing provider")

	products, err := provider.FetchProducts(ctx)
	if err != nil {
		result.Error = fmt.Errorf("fetch products: %w", err)
		log.Warn("provider product fetch failed", zap.Error(err))
		return result
	}
	if len(products) > 0 {
		if err := s.repo.UpsertProducts(ctx, products); err != nil {
			result.Error = fmt.Errorf("upsert products: %w", err)
			log.Error("product upsert failed", zap.Error(err))
			return result
		}
	}
	result.Products = len(products)

	datasets, err := provider.FetchDatasets(ctx)
	if err != nil {
		result.Error = fmt.Errorf("fetch datasets: %w", err)
		log.Warn("provider dataset fetch failed", zap.Error(err))
		return result
	}

	accepted := s.prepare(datasets, log)
	result.Skipped = len(datasets) - len(accepted)

	touched := map[string]struct{}{}
	for off := 0; off < len(accepted); off += s.batchSize {
		batch := accepted[off:min(off+s.batchSize, len(accepted))]
		if err := s.repo.UpsertDatasets(ctx, batch); err != nil {
			result.Error = fmt.Errorf("upsert datasets: %w", err)
			log.Error("dataset upsert failed", zap.Int("offset", off), zap.Error(err))
			break
		}
		result.Count += len(batch)
		for _, ds := range batch {
			touched[ds.Product] = struct{}{}
		}
	}

	if s.summaries != nil && len(touched) > 0 {
		names := make([]string, 0, len(touched))
		for name := range touched {
			names = append(names, name)
		}
		if err := s.summaries.Invalidate(ctx, names...); err != nil {
			log.Warn("summary invalidation failed", zap.Error(err))
		}
	}

	if result.Error == nil {
		log.Info("provider sync completed",
			zap.Int("products", result.Products),
			zap.Int("count", result.Count),
			zap.Int("skipped", result.Skipped),
			zap.Duration("duration", time.Since(start)),
		)
	}

	return result
}

// prepare normalizes datasets and drops the ones that cannot be indexed.
func (s *SyncService) prepare(datasets []*domain.Dataset, log *zap.Logger) []*domain.Dataset {
	out := make([]*domain.Dataset, 0, len(datasets))
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		id, err := uuid.Parse(ds.ID)
		if err != nil {
			log.Debug("skipping dataset with invalid id", zap.String("id", ds.ID))
			continue
		}
		ds.ID = id.String()
		if ds.Product == "" || ds.CenterTime.IsZero() {
			log.Debug("skipping incomplete dataset", zap.String("id", ds.ID))
			continue
		}
		ds.Normalize()
		out = append(out, ds)
	}
	if s.regions != nil {
		if n := s.regions.Fill(out); n > 0 {
			log.Debug("derived region codes", zap.Int("count", n))
		}
	}
	return out
}
