// Package service provides application use cases.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/search"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
)

// CatalogID identifies the root STAC catalog.
const CatalogID = "dea"

// SearchService resolves filters, pages through the index and renders
// STAC documents.
type SearchService struct {
	datasets  DatasetReader
	catalog   domain.ProductCatalog
	resolver  *search.Resolver
	paginator *search.Paginator
	formatter *stac.Formatter
	links     *stac.Links
	summaries *SummaryService
	info      CatalogInfo
	logger    *zap.Logger
}

// DatasetReader fetches single datasets.
type DatasetReader interface {
	GetDataset(ctx context.Context, id string) (*domain.Dataset, error)
}

// CatalogInfo describes the root catalog.
type CatalogInfo struct {
	Title       string
	Description string
}

// NewSearchService creates a new SearchService.
func NewSearchService(
	datasets DatasetReader,
	catalog domain.ProductCatalog,
	resolver *search.Resolver,
	paginator *search.Paginator,
	formatter *stac.Formatter,
	links *stac.Links,
	summaries *SummaryService,
	info CatalogInfo,
	logger *zap.Logger,
) *SearchService {
	return &SearchService{
		datasets:  datasets,
		catalog:   catalog,
		resolver:  resolver,
		paginator: paginator,
		formatter: formatter,
		links:     links,
		summaries: summaries,
		info:      info,
		logger:    logger,
	}
}

// Search returns the first page of datasets matching params.
func (s *SearchService) Search(ctx context.Context, params search.RawParams) (*stac.ItemCollection, error) {
	f, err := s.resolver.Resolve(ctx, params)
	if err != nil {
		s.logFailure("resolve filter", err)
		return nil, err
	}

	page, err := s.paginator.FirstPage(ctx, f)
	if err != nil {
		s.logFailure("first page", err)
		return nil, err
	}

	return s.render(ctx, page, s.searchNext)
}

// Continue returns the page following a cursor issued by Search.
func (s *SearchService) Continue(ctx context.Context, cursor string) (*stac.ItemCollection, error) {
	page, err := s.paginator.NextPage(ctx, cursor)
	if err != nil {
		s.logFailure("next page", err)
		return nil, err
	}

	return s.render(ctx, page, s.searchNext)
}

// Items returns the first page of one collection's datasets.
func (s *SearchService) Items(ctx context.Context, product string, params search.RawParams) (*stac.ItemCollection, error) {
	params.Product = product
	f, err := s.resolver.Resolve(ctx, params)
	if err != nil {
		s.logFailure("resolve filter", err)
		return nil, err
	}

	page, err := s.paginator.FirstPage(ctx, f)
	if err != nil {
		s.logFailure("first page", err)
		return nil, err
	}

	return s.render(ctx, page, s.itemsNext(product))
}

// ContinueItems resumes a collection listing. The cursor must have been
// issued for the same collection.
func (s *SearchService) ContinueItems(ctx context.Context, product, cursor string) (*stac.ItemCollection, error) {
	page, err := s.paginator.NextPage(ctx, cursor)
	if err != nil {
		s.logFailure("next page", err)
		return nil, err
	}
	if page.Filter.Product != product {
		return nil, &domain.CursorError{
			Reason: search.ReasonCollection,
			Err:    fmt.Errorf("issued for %q, not %q", page.Filter.Product, product),
		}
	}

	return s.render(ctx, page, s.itemsNext(product))
}

// Catalog lists every product as a child of the root catalog.
func (s *SearchService) Catalog(ctx context.Context) (*stac.Catalog, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, &domain.SourceError{Op: "list products", Err: err}
	}

	links := make([]stac.Link, 0, len(products)+1)
	for _, p := range products {
		links = append(links, stac.Link{
			Rel:         "child",
			Title:       p.Name,
			Description: p.Description,
			Href:        s.links.Collection(p.Name),
		})
	}
	links = append(links, stac.Link{Rel: "self", Href: s.links.Root()})

	return &stac.Catalog{
		StacVersion: stac.Version,
		ID:          CatalogID,
		Title:       s.info.Title,
		Description: s.info.Description,
		Links:       links,
	}, nil
}

// Collection describes one product and the extent of its datasets.
func (s *SearchService) Collection(ctx context.Context, name string) (*stac.Collection, error) {
	p, err := s.getProduct(ctx, name)
	if err != nil {
		return nil, err
	}

	c := &stac.Collection{
		StacVersion: stac.Version,
		ID:          p.Name,
		Title:       p.Name,
		Description: p.Description,
		Properties:  collectionProperties(p),
		Providers:   []any{},
		Links: []stac.Link{
			{Rel: "items", Href: s.links.Items(p.Name, nil)},
			{Rel: "self", Href: s.links.Collection(p.Name)},
			{Rel: "parent", Href: s.links.Root()},
		},
	}

	summary, err := s.summaries.Get(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	c.Found = summary.DatasetCount
	if summary.TimeEarliest != nil && summary.TimeLatest != nil {
		c.Extent = &stac.Extent{Temporal: []time.Time{summary.TimeEarliest.UTC(), summary.TimeLatest.UTC()}}
		if summary.BBox != nil {
			c.Extent.Spatial = summary.BBox.Array()
		}
	}

	return c, nil
}

// Collections describes every product, ordered by name.
func (s *SearchService) Collections(ctx context.Context) (*stac.CollectionList, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, &domain.SourceError{Op: "list products", Err: err}
	}

	list := &stac.CollectionList{
		Collections: make([]*stac.Collection, 0, len(products)),
		Links: []stac.Link{
			{Rel: "self", Href: s.links.Collections()},
			{Rel: "root", Href: s.links.Root()},
		},
	}
	for _, p := range products {
		c, err := s.Collection(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		list.Collections = append(list.Collections, c)
	}
	return list, nil
}

// Item returns one dataset of a collection.
func (s *SearchService) Item(ctx context.Context, product, id string) (*stac.Item, error) {
	ds, err := s.datasets.GetDataset(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.FilterError{Kind: domain.FilterNotFound, Field: "id", Message: "No such dataset"}
		}
		return nil, &domain.SourceError{Op: "get dataset", Err: err}
	}

	if ds.Product != product {
		return nil, &domain.FilterError{
			Kind:  domain.FilterNotFound,
			Field: "id",
			Message: fmt.Sprintf("No such dataset in collection. Perhaps you meant collection %s: %s",
				ds.Product, s.links.Item(ds.Product, ds.ID)),
		}
	}

	p, err := s.getProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	return s.formatter.Item(ds, p), nil
}

func (s *SearchService) render(ctx context.Context, page *domain.Page, next func(string) string) (*stac.ItemCollection, error) {
	products, err := s.productIndex(ctx)
	if err != nil {
		return nil, err
	}

	fc := &stac.ItemCollection{
		Type:     "FeatureCollection",
		Features: s.formatter.Items(page.Datasets, products),
		Links:    []stac.Link{},
		Context: stac.SearchContext{
			Returned: len(page.Datasets),
			Limit:    page.Filter.Limit,
		},
	}
	if page.HasMore() {
		fc.Links = append(fc.Links, stac.Link{Rel: "next", Href: next(page.NextCursor)})
	}
	return fc, nil
}

func (s *SearchService) searchNext(cursor string) string {
	return s.links.Search(url.Values{"cursor": {cursor}})
}

func (s *SearchService) itemsNext(product string) func(string) string {
	return func(cursor string) string {
		return s.links.Items(product, url.Values{"cursor": {cursor}})
	}
}

func (s *SearchService) productIndex(ctx context.Context) (map[string]*domain.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, &domain.SourceError{Op: "list products", Err: err}
	}
	m := make(map[string]*domain.Product, len(products))
	for _, p := range products {
		m[p.Name] = p
	}
	return m, nil
}

func (s *SearchService) getProduct(ctx context.Context, name string) (*domain.Product, error) {
	p, err := s.catalog.GetProduct(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.FilterError{
				Kind:    domain.FilterNotFound,
				Field:   "product",
				Message: fmt.Sprintf("unknown product %q", name),
			}
		}
		return nil, &domain.SourceError{Op: "get product", Err: err}
	}
	return p, nil
}

func (s *SearchService) logFailure(op string, err error) {
	if domain.IsClientError(err) {
		s.logger.Debug("search rejected", zap.String("op", op), zap.Error(err))
		return
	}
	s.logger.Error("search failed", zap.String("op", op), zap.Error(err))
}

func collectionProperties(p *domain.Product) map[string]any {
	props := map[string]any{}
	if p.Platform != "" {
		props["eo:platform"] = strings.ReplaceAll(strings.ToLower(p.Platform), "_", "-")
	}
	if p.Instrument != "" {
		props["eo:instrument"] = p.Instrument
	}
	if len(p.Bands) > 0 {
		bands := make([]map[string]string, len(p.Bands))
		for i, b := range p.Bands {
			bands[i] = map[string]string{"name": b}
		}
		props["eo:bands"] = bands
	}
	return props
}
