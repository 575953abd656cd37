// Package search turns client search parameters into validated filters and
// serves them as ordered pages with opaque continuation cursors.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// MaxPageSizeMessage prefixes the error for oversized limits.
const MaxPageSizeMessage = "Max page size exceeded"

// RawParams are search parameters as received from a client.
// Nil/empty fields are absent.
type RawParams struct {
	Product string
	BBox    []float64
	Time    string
	Limit   *int
}

// ResolverConfig bounds what the resolver accepts.
type ResolverConfig struct {
	DefaultLimit int
	MaxLimit     int
	// Location is used for times without an explicit offset.
	Location *time.Location
}

// Resolver validates and normalizes search filters.
type Resolver struct {
	catalog domain.ProductCatalog
	cfg     ResolverConfig
}

// NewResolver creates a Resolver. A nil Location means UTC.
func NewResolver(catalog domain.ProductCatalog, cfg ResolverConfig) *Resolver {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Resolver{catalog: catalog, cfg: cfg}
}

// Config returns the limits the resolver enforces.
func (r *Resolver) Config() ResolverConfig {
	return r.cfg
}

// Resolve validates raw parameters into a Filter.
func (r *Resolver) Resolve(ctx context.Context, p RawParams) (domain.Filter, error) {
	var f domain.Filter

	product, err := r.resolveProduct(ctx, p.Product)
	if err != nil {
		return domain.Filter{}, err
	}
	f.Product = product

	if p.BBox != nil {
		b, err := NewBBox(p.BBox)
		if err != nil {
			return domain.Filter{}, err
		}
		f.BBox = &b
	}

	if strings.TrimSpace(p.Time) != "" {
		tr, err := ParseTimeRange(p.Time, r.cfg.Location)
		if err != nil {
			return domain.Filter{}, err
		}
		f.Time = &tr
	}

	limit := r.cfg.DefaultLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	if err := r.checkLimit(limit); err != nil {
		return domain.Filter{}, err
	}
	f.Limit = limit

	return f, nil
}

// Revalidate re-checks a filter carried by a cursor against the current
// catalog and limits.
func (r *Resolver) Revalidate(ctx context.Context, f domain.Filter) (domain.Filter, error) {
	if f.Product != "" {
		if _, err := r.resolveProduct(ctx, f.Product); err != nil {
			return domain.Filter{}, err
		}
	}
	if f.BBox != nil {
		if err := validateBBox(*f.BBox); err != nil {
			return domain.Filter{}, err
		}
	}
	if f.Time != nil && f.Time.Start.After(f.Time.End) {
		return domain.Filter{}, domain.InvalidFilter("time", "start is after end")
	}
	if err := r.checkLimit(f.Limit); err != nil {
		return domain.Filter{}, err
	}
	return f, nil
}

func (r *Resolver) resolveProduct(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	if _, err := r.catalog.GetProduct(ctx, name); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", &domain.FilterError{
				Kind:    domain.FilterNotFound,
				Field:   "product",
				Message: fmt.Sprintf("unknown product %q", name),
			}
		}
		return "", &domain.SourceError{Op: "get product", Err: err}
	}
	return name, nil
}

func (r *Resolver) checkLimit(limit int) error {
	if limit < 1 {
		return domain.InvalidFilter("limit", "must be a positive integer, got %d", limit)
	}
	if limit > r.cfg.MaxLimit {
		return domain.InvalidFilter("limit", "%s (%d > %d)", MaxPageSizeMessage, limit, r.cfg.MaxLimit)
	}
	return nil
}

// NewBBox validates a [min_x, min_y, max_x, max_y] array.
func NewBBox(v []float64) (domain.BBox, error) {
	if len(v) != 4 {
		return domain.BBox{}, domain.InvalidFilter("bbox",
			"expected 4 values [min lon, min lat, max lon, max lat], got %d", len(v))
	}
	b := domain.BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}
	if err := validateBBox(b); err != nil {
		return domain.BBox{}, err
	}
	return b, nil
}

func validateBBox(b domain.BBox) error {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.InvalidFilter("bbox", "coordinates must be finite numbers")
		}
	}
	if b.MinX < -180 || b.MaxX > 180 {
		return domain.InvalidFilter("bbox", "longitude out of range [-180, 180]")
	}
	if b.MinY < -90 || b.MaxY > 90 {
		return domain.InvalidFilter("bbox", "latitude out of range [-90, 90]")
	}
	if b.MinX >= b.MaxX || b.MinY >= b.MaxY {
		return domain.InvalidFilter("bbox", "min must be less than max on both axes")
	}
	return nil
}

// ParseBBox reads a bbox given as a JSON array ("[114,-33,153,-10]") or
// as comma separated values ("114,-33,153,-10"). Empty input means absent.
func ParseBBox(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.HasPrefix(s, "[") {
		var v []float64
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, domain.InvalidFilter("bbox", "malformed JSON array %q", s)
		}
		return v, nil
	}

	parts := strings.Split(s, ",")
	v := make([]float64, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, domain.InvalidFilter("bbox", "%q is not a number", part)
		}
		v = append(v, f)
	}
	return v, nil
}

// ParseLimit reads an optional integer limit. Empty input means absent.
func ParseLimit(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, domain.InvalidFilter("limit", "%q is not an integer", s)
	}
	return &n, nil
}
