// Package memory provides an in-process dataset index backed by an R-tree.
// It serves the "memory" index backend and the search tests.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	// Degenerate boxes get this extent so the tree accepts them.
	minExtent = 1e-9
)

// entry wraps a dataset for R-tree indexing.
type entry struct {
	ds   *domain.Dataset
	rect *rtreego.Rect
}

func (e *entry) Bounds() *rtreego.Rect {
	return e.rect
}

// Store is a thread-safe domain.DatasetRepository.
type Store struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
	entries  map[string]*entry
	sorted   []*domain.Dataset // ascending by sort key
	tree     *rtreego.Rtree
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]*domain.Product),
		entries:  make(map[string]*entry),
		tree:     rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// Query implements domain.RecordSource.
func (s *Store) Query(ctx context.Context, f domain.Filter, after *domain.SortKey, limit int) ([]*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.BBox != nil {
		return s.queryTree(f, after, limit)
	}

	start := 0
	if after != nil {
		start = sort.Search(len(s.sorted), func(i int) bool {
			return after.Less(s.sorted[i].Key())
		})
	}

	out := make([]*domain.Dataset, 0, limit)
	for _, ds := range s.sorted[start:] {
		if !f.Matches(ds) {
			continue
		}
		out = append(out, ds)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) queryTree(f domain.Filter, after *domain.SortKey, limit int) ([]*domain.Dataset, error) {
	rect, err := toRect(*f.BBox)
	if err != nil {
		return nil, &domain.SourceError{Op: "query", Err: err}
	}

	var hits []*domain.Dataset
	for _, sp := range s.tree.SearchIntersect(rect) {
		ds := sp.(*entry).ds
		if !f.Matches(ds) {
			continue
		}
		if after != nil && !after.Less(ds.Key()) {
			continue
		}
		hits = append(hits, ds)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Key().Less(hits[j].Key()) })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// GetProduct implements domain.ProductCatalog.
func (s *Store) GetProduct(ctx context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProducts implements domain.ProductCatalog.
func (s *Store) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetDataset returns domain.ErrNotFound for unknown ids.
func (s *Store) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.ds, nil
}

// Summarize computes a product's extent by scanning its datasets.
func (s *Store) Summarize(ctx context.Context, product string) (*domain.ProductSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[product]; !ok {
		return nil, domain.ErrNotFound
	}

	sum := &domain.ProductSummary{Product: product}
	for _, ds := range s.sorted {
		if ds.Product != product {
			continue
		}
		sum.DatasetCount++
		t := ds.CenterTime
		if sum.TimeEarliest == nil {
			sum.TimeEarliest = &t
		}
		sum.TimeLatest = &t

		if ds.BBox.IsZero() {
			continue
		}
		if sum.BBox == nil {
			b := ds.BBox
			sum.BBox = &b
		} else {
			b := sum.BBox.Union(ds.BBox)
			sum.BBox = &b
		}
	}
	return sum, nil
}

// UpsertProducts creates or replaces products by name.
func (s *Store) UpsertProducts(ctx context.Context, products []*domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range products {
		cp := *p
		cp.UpdatedAt = now
		s.products[p.Name] = &cp
	}
	return nil
}

// UpsertDatasets creates or replaces datasets by id.
func (s *Store) UpsertDatasets(ctx context.Context, datasets []*domain.Dataset) error {
	if len(datasets) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, in := range datasets {
		ds := *in
		ds.Normalize()
		ds.IndexedAt = now

		rect, err := toRect(ds.BBox)
		if err != nil {
			return &domain.SourceError{Op: "upsert", Err: err}
		}

		if old, ok := s.entries[ds.ID]; ok {
			s.tree.Delete(old)
		}
		e := &entry{ds: &ds, rect: rect}
		s.entries[ds.ID] = e
		s.tree.Insert(e)
	}

	s.rebuildOrder()
	return nil
}

// Len returns the number of datasets held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) rebuildOrder() {
	s.sorted = s.sorted[:0]
	for _, e := range s.entries {
		s.sorted = append(s.sorted, e.ds)
	}
	sort.Slice(s.sorted, func(i, j int) bool { return s.sorted[i].Key().Less(s.sorted[j].Key()) })
}

func toRect(b domain.BBox) (*rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{b.MinX, b.MinY},
		[]float64{math.Max(b.MaxX-b.MinX, minExtent), math.Max(b.MaxY-b.MinY, minExtent)},
	)
}

// Ping reports the store as reachable unless ctx is done.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
