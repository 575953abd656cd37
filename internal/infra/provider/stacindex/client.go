// Package stacindex ingests products and datasets from an upstream STAC API.
package stacindex

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/provider"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
)

const (
	collectionsEndpoint = "/collections"
	searchEndpoint      = "/search"

	DefaultPageSize = 100
	DefaultMaxPages = 10000
)

// ErrTooManyPages is returned when an upstream keeps serving next links
// past the configured page bound.
var ErrTooManyPages = errors.New("upstream exceeded max pages")

// Config describes one upstream index.
type Config struct {
	Name     string
	Client   provider.ClientConfig
	PageSize int
	MaxPages int
}

// Client implements domain.IndexProvider for a STAC API.
type Client struct {
	name     string
	pageSize int
	maxPages int
	client   *resty.Client
	cb       *gobreaker.CircuitBreaker[*resty.Response]
	validate *validator.Validator
	logger   *zap.Logger
}

// New creates a new upstream client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	logger = logger.With(zap.String("provider", cfg.Name))
	return &Client{
		name:     cfg.Name,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
		client:   provider.NewRestyClient(cfg.Client),
		cb:       provider.NewCircuitBreaker[*resty.Response](cfg.Name, cfg.Client.CB, logger),
		validate: validator.New(),
		logger:   logger,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.name
}

// FetchProducts lists the upstream collections. The asset layout of each
// product is inferred from one sample item.
func (c *Client) FetchProducts(ctx context.Context) ([]*domain.Product, error) {
	var body CollectionsResponse
	if err := c.get(ctx, collectionsEndpoint, nil, &body); err != nil {
		return nil, err
	}

	products := make([]*domain.Product, 0, len(body.Collections))
	for i := range body.Collections {
		col := &body.Collections[i]
		if err := c.validate.Validate(col); err != nil {
			c.logger.Warn("skipping invalid collection", zap.Error(err))
			continue
		}

		layout, err := c.sampleLayout(ctx, col.ID)
		if err != nil {
			return nil, err
		}
		products = append(products, col.ToDomain(layout))
	}

	c.logger.Info("fetched products", zap.Int("count", len(products)))
	return products, nil
}

func (c *Client) sampleLayout(ctx context.Context, collection string) (domain.AssetLayout, error) {
	var page ItemCollection
	path := collectionsEndpoint + "/" + url.PathEscape(collection) + "/items"
	if err := c.get(ctx, path, url.Values{"limit": {"1"}}, &page); err != nil {
		return "", err
	}
	if len(page.Features) == 0 {
		return domain.AssetLayoutPerBand, nil
	}
	return page.Features[0].Layout(), nil
}

// FetchDatasets walks the upstream search, following rel=next links
// until none is returned.
func (c *Client) FetchDatasets(ctx context.Context) ([]*domain.Dataset, error) {
	var (
		datasets []*domain.Dataset
		invalid  int
	)

	href := searchEndpoint
	query := url.Values{"limit": {strconv.Itoa(c.pageSize)}}
	for pages := 0; href != ""; pages++ {
		if pages >= c.maxPages {
			return nil, fmt.Errorf("%s: %w (%d)", c.name, ErrTooManyPages, c.maxPages)
		}

		var page ItemCollection
		if err := c.get(ctx, href, query, &page); err != nil {
			return nil, err
		}

		for i := range page.Features {
			item := &page.Features[i]
			if err := c.validate.Validate(item); err != nil {
				invalid++
				c.logger.Debug("skipping invalid item", zap.String("id", item.ID), zap.Error(err))
				continue
			}
			datasets = append(datasets, item.ToDomain())
		}

		// Next links are absolute and already carry the query.
		href = page.Next()
		query = nil
	}

	c.logger.Info("fetched datasets",
		zap.Int("count", len(datasets)),
		zap.Int("invalid", invalid),
	)
	return datasets, nil
}

// HealthCheck verifies the upstream is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(collectionsEndpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("health check returned status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.cb.Execute(func() (*resty.Response, error) {
		r, err := c.client.R().
			SetContext(ctx).
			SetQueryParamsFromValues(query).
			SetResult(out).
			Get(path)
		if err != nil {
			return nil, err
		}
		if r.IsError() {
			return nil, fmt.Errorf("%s returned status %d", c.name, r.StatusCode())
		}
		return r, nil
	})
	if err != nil {
		c.logger.Warn("upstream request failed",
			zap.String("path", path),
			zap.Error(err),
			zap.String("state", c.cb.State().String()),
		)
		return fmt.Errorf("fetching %s from %s: %w", path, c.name, err)
	}
	return nil
}
