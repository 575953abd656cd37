package stac

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// LocationAsset is the asset key used by single-location products.
const LocationAsset = "location"

// Formatter renders datasets as STAC items.
type Formatter struct {
	links  *Links
	logger *zap.Logger
}

func NewFormatter(links *Links, logger *zap.Logger) *Formatter {
	return &Formatter{links: links, logger: logger}
}

// Item renders one dataset. It never fails: a footprint that cannot be
// rendered becomes a null geometry and the stored bbox is used instead.
// p may be nil, in which case assets are emitted per band.
func (f *Formatter) Item(ds *domain.Dataset, p *domain.Product) *Item {
	item := &Item{
		StacVersion: Version,
		ID:          ds.ID,
		Type:        "Feature",
		Collection:  ds.Product,
		Properties:  f.properties(ds),
		Links: []Link{
			{Rel: "self", Href: f.links.Item(ds.Product, ds.ID)},
			{Rel: "parent", Href: f.links.Collection(ds.Product)},
		},
		Assets: f.assets(ds, p),
	}

	if ds.Geometry == nil {
		if !ds.BBox.IsZero() {
			item.BBox = ds.BBox.Array()
		}
		return item
	}

	if err := ValidateFootprint(ds.Geometry); err != nil {
		f.logger.Warn("dataset footprint not renderable",
			zap.String("dataset_id", ds.ID),
			zap.String("product", ds.Product),
			zap.Error(err),
		)
		item.Properties["cubedash:invalid_geometry"] = true
		if !ds.BBox.IsZero() {
			item.BBox = ds.BBox.Array()
		}
		return item
	}

	item.Geometry = geojson.NewGeometry(ds.Geometry)
	item.BBox = domain.BBoxFromBound(ds.Geometry.Bound()).Array()
	return item
}

// Items renders datasets in order. products is keyed by name.
func (f *Formatter) Items(datasets []*domain.Dataset, products map[string]*domain.Product) []*Item {
	out := make([]*Item, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, f.Item(ds, products[ds.Product]))
	}
	return out
}

func (f *Formatter) properties(ds *domain.Dataset) map[string]any {
	props := map[string]any{
		"datetime":    formatTime(ds.CenterTime),
		"odc:product": ds.Product,
	}
	if ds.CreationTime != nil {
		props["odc:creation-time"] = formatTime(*ds.CreationTime)
	}
	if ds.RegionCode != "" {
		props["cubedash:region_code"] = ds.RegionCode
	}
	if ds.CRS != "" {
		props["odc:crs"] = ds.CRS
	}
	if ds.TimeRange != nil && ds.TimeRange.Start.Before(ds.TimeRange.End) {
		props["dtr:start_datetime"] = formatTime(ds.TimeRange.Start)
		props["dtr:end_datetime"] = formatTime(ds.TimeRange.End)
	}
	return props
}

func (f *Formatter) assets(ds *domain.Dataset, p *domain.Product) map[string]Asset {
	layout := domain.AssetLayoutPerBand
	if p != nil && p.AssetLayout.Valid() {
		layout = p.AssetLayout
	}

	assets := map[string]Asset{}
	switch layout {
	case domain.AssetLayoutSingleLocation:
		href := locationHref(ds.BaseURI)
		if href == "" {
			return assets
		}
		assets[LocationAsset] = Asset{
			Href:           href,
			Title:          ds.Product,
			SecondaryHrefs: []string{},
			Bands:          bandNames(ds, p),
		}
	default:
		for _, band := range sortedKeys(ds.Measurements) {
			href := ResolveHref(ds.BaseURI, ds.Measurements[band])
			if href == "" {
				continue
			}
			assets[band] = Asset{
				Href:           href,
				SecondaryHrefs: []string{},
				Bands:          []string{band},
			}
		}
	}
	return assets
}

// ResolveHref resolves path against base. Absolute paths are kept as is.
// Returns "" when path is empty.
func ResolveHref(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	ref, err := url.Parse(path)
	if err != nil {
		return ""
	}
	if ref.IsAbs() || base == "" {
		return ref.String()
	}

	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// locationHref is the directory holding the dataset's metadata document.
func locationHref(base string) string {
	if base == "" {
		return ""
	}
	if strings.HasSuffix(base, "/") {
		return base
	}
	if i := strings.LastIndex(base, "/"); i >= 0 && strings.Contains(base[i:], ".") {
		return base[:i+1]
	}
	return base
}

func bandNames(ds *domain.Dataset, p *domain.Product) []string {
	set := map[string]struct{}{}
	for name := range ds.Measurements {
		set[name] = struct{}{}
	}
	if p != nil {
		for _, name := range p.Bands {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
