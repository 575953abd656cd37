package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/region"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
)

const (
	defaultOverviewPageSize = 1000
	defaultMaxFootprints    = 600

	// Daily timelines longer than this are regrouped by month.
	maxDayBuckets = 365
)

// Outliner dissolves many footprints into a coarser outline.
type Outliner interface {
	Outline(footprints []orb.Polygon) (orb.MultiPolygon, error)
}

// OverviewConfig tunes overview aggregation.
type OverviewConfig struct {
	// Location groups timeline buckets.
	Location *time.Location
	// MaxFootprints is the most footprints returned individually; larger
	// sets are dissolved by the Outliner.
	MaxFootprints int
	PageSize      int
}

// OverviewService aggregates footprints, regions and a timeline for a
// product over a period by walking the record source.
type OverviewService struct {
	source   domain.RecordSource
	catalog  domain.ProductCatalog
	outliner Outliner
	cfg      OverviewConfig
	logger   *zap.Logger
}

// NewOverviewService creates a new OverviewService.
func NewOverviewService(
	source domain.RecordSource,
	catalog domain.ProductCatalog,
	outliner Outliner,
	cfg OverviewConfig,
	logger *zap.Logger,
) *OverviewService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxFootprints <= 0 {
		cfg.MaxFootprints = defaultMaxFootprints
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultOverviewPageSize
	}
	return &OverviewService{
		source:   source,
		catalog:  catalog,
		outliner: outliner,
		cfg:      cfg,
		logger:   logger,
	}
}

// Overview aggregates the datasets of product whose center time falls in
// period. A nil period covers all time.
func (s *OverviewService) Overview(ctx context.Context, product string, period *domain.TimeRange) (*domain.Overview, error) {
	if _, err := s.catalog.GetProduct(ctx, product); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.FilterError{
				Kind:    domain.FilterNotFound,
				Field:   "product",
				Message: fmt.Sprintf("unknown product %q", product),
			}
		}
		return nil, &domain.SourceError{Op: "get product", Err: err}
	}

	agg := newOverviewAggregate(s.cfg.Location)
	f := domain.Filter{Product: product, Time: period}

	var after *domain.SortKey
	for {
		page, err := s.source.Query(ctx, f, after, s.cfg.PageSize)
		if err != nil {
			return nil, &domain.SourceError{Op: "query", Err: err}
		}
		for _, ds := range page {
			if after != nil && !after.Less(ds.Key()) {
				return nil, &domain.SourceError{
					Op:  "query",
					Err: fmt.Errorf("dataset %s out of order after %s", ds.ID, after.ID),
				}
			}
			k := ds.Key()
			after = &k
			agg.add(ds)
		}
		if len(page) < s.cfg.PageSize {
			break
		}
	}

	ov := &domain.Overview{
		Product:        product,
		Period:         period,
		DatasetCount:   agg.count,
		FootprintCount: len(agg.footprints),
		TimeEarliest:   agg.earliest,
		TimeLatest:     agg.latest,
		BBox:           agg.bbox,
	}

	var err error
	if ov.Footprint, err = s.shape(agg.footprints); err != nil {
		return nil, err
	}
	if ov.Regions, err = s.regions(agg); err != nil {
		return nil, err
	}
	ov.TimelinePeriod, ov.Timeline = agg.timeline()

	s.logger.Debug("overview aggregated",
		zap.String("product", product),
		zap.Int("datasets", ov.DatasetCount),
		zap.Int("footprints", ov.FootprintCount),
		zap.Int("regions", len(ov.Regions)),
	)
	return ov, nil
}

// Regions is Overview for callers that need region codes. A product with
// datasets in the period but no region codes is reported as not found.
func (s *OverviewService) Regions(ctx context.Context, product string, period *domain.TimeRange) (*domain.Overview, error) {
	ov, err := s.Overview(ctx, product, period)
	if err != nil {
		return nil, err
	}
	if ov.DatasetCount > 0 && len(ov.Regions) == 0 {
		return nil, &domain.FilterError{
			Kind:    domain.FilterNotFound,
			Field:   "product",
			Message: fmt.Sprintf("%s does not have regions", product),
		}
	}
	return ov, nil
}

// shape returns footprints individually while there are few of them and
// their outline otherwise. It returns an untyped nil for no footprints.
func (s *OverviewService) shape(footprints []orb.Polygon) (orb.Geometry, error) {
	switch {
	case len(footprints) == 0:
		return nil, nil
	case len(footprints) == 1:
		return footprints[0], nil
	case len(footprints) <= s.cfg.MaxFootprints || s.outliner == nil:
		return orb.MultiPolygon(footprints), nil
	}

	outline, err := s.outliner.Outline(footprints)
	if err != nil {
		return nil, &domain.SourceError{Op: "outline", Err: err}
	}
	if len(outline) == 0 {
		return nil, nil
	}
	return outline, nil
}

func (s *OverviewService) regions(agg *overviewAggregate) ([]domain.RegionOverview, error) {
	codes := make([]string, 0, len(agg.regions))
	for code := range agg.regions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]domain.RegionOverview, 0, len(codes))
	for _, code := range codes {
		r := agg.regions[code]
		ro := domain.RegionOverview{Code: code, Count: r.count, BBox: r.bbox}

		if cell, ok := region.CellOutline(code); ok {
			ro.Footprint = cell
		} else {
			shape, err := s.shape(r.footprints)
			if err != nil {
				return nil, err
			}
			ro.Footprint = shape
			if ro.Footprint == nil && r.bbox != nil {
				ro.Footprint = r.bbox.Bound().ToPolygon()
			}
		}
		out = append(out, ro)
	}
	return out, nil
}

type regionAggregate struct {
	count      int
	bbox       *domain.BBox
	footprints []orb.Polygon
}

type overviewAggregate struct {
	loc        *time.Location
	count      int
	earliest   *time.Time
	latest     *time.Time
	bbox       *domain.BBox
	footprints []orb.Polygon
	regions    map[string]*regionAggregate
	days       map[string]int
}

func newOverviewAggregate(loc *time.Location) *overviewAggregate {
	return &overviewAggregate{
		loc:     loc,
		regions: make(map[string]*regionAggregate),
		days:    make(map[string]int),
	}
}

func (a *overviewAggregate) add(ds *domain.Dataset) {
	a.count++

	t := ds.CenterTime
	if a.earliest == nil || t.Before(*a.earliest) {
		a.earliest = &t
	}
	if a.latest == nil || t.After(*a.latest) {
		a.latest = &t
	}
	a.days[t.In(a.loc).Format("2006-01-02")]++

	polys := footprintPolygons(ds.Geometry)
	a.footprints = append(a.footprints, polys...)
	if !ds.BBox.IsZero() {
		a.bbox = unionBBox(a.bbox, ds.BBox)
	}

	if ds.RegionCode == "" {
		return
	}
	r, ok := a.regions[ds.RegionCode]
	if !ok {
		r = &regionAggregate{}
		a.regions[ds.RegionCode] = r
	}
	r.count++
	r.footprints = append(r.footprints, polys...)
	if !ds.BBox.IsZero() {
		r.bbox = unionBBox(r.bbox, ds.BBox)
	}
}

// timeline buckets by day, or by month when there are too many days.
func (a *overviewAggregate) timeline() (string, []domain.TimelineBucket) {
	period := domain.TimelineDay
	counts := a.days
	if len(a.days) > maxDayBuckets {
		period = domain.TimelineMonth
		counts = make(map[string]int)
		for day, n := range a.days {
			counts[day[:len("2006-01")]] += n
		}
	}

	out := make([]domain.TimelineBucket, 0, len(counts))
	for date, n := range counts {
		out = append(out, domain.TimelineBucket{Date: date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return period, out
}

// footprintPolygons returns the polygons of a publishable footprint.
func footprintPolygons(g orb.Geometry) []orb.Polygon {
	if g == nil || stac.ValidateFootprint(g) != nil {
		return nil
	}
	switch g := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{g}
	case orb.MultiPolygon:
		return g
	}
	return nil
}

func unionBBox(acc *domain.BBox, b domain.BBox) *domain.BBox {
	if acc == nil {
		return &b
	}
	u := acc.Union(b)
	return &u
}
