package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Dataset is one indexed spatiotemporal record belonging to a product.
type Dataset struct {
	ID      string
	Product string

	// CenterTime is the primary sort value. Stored at microsecond precision.
	CenterTime   time.Time
	TimeRange    *TimeRange // acquisition begin/end, optional
	CreationTime *time.Time

	// Geometry is the footprint in EPSG:4326. Nil when unknown.
	Geometry orb.Geometry
	BBox     BBox

	CRS        string
	RegionCode string
	BaseURI    string

	// Measurements maps band name to a path, relative to BaseURI or absolute.
	Measurements map[string]string

	IndexedAt time.Time
}

// Key returns the sort key of the dataset.
func (d *Dataset) Key() SortKey {
	return SortKey{CenterTime: d.CenterTime, ID: d.ID}
}

// Normalize truncates timestamps to the precision kept by the index and
// derives a bbox from the geometry when none was supplied.
func (d *Dataset) Normalize() {
	d.CenterTime = d.CenterTime.UTC().Truncate(time.Microsecond)
	if d.CreationTime != nil {
		t := d.CreationTime.UTC().Truncate(time.Microsecond)
		d.CreationTime = &t
	}
	if d.TimeRange != nil {
		d.TimeRange = &TimeRange{
			Start: d.TimeRange.Start.UTC().Truncate(time.Microsecond),
			End:   d.TimeRange.End.UTC().Truncate(time.Microsecond),
		}
	}
	if d.BBox.IsZero() && d.Geometry != nil {
		d.BBox = BBoxFromBound(d.Geometry.Bound())
	}
}

// SortKey orders datasets by center time, then by id.
type SortKey struct {
	CenterTime time.Time `cbor:"1,keyasint"`
	ID         string    `cbor:"2,keyasint"`
}

// Less reports whether k sorts strictly before other.
func (k SortKey) Less(other SortKey) bool {
	if !k.CenterTime.Equal(other.CenterTime) {
		return k.CenterTime.Before(other.CenterTime)
	}
	return k.ID < other.ID
}

// AssetLayout selects how a product's measurements become STAC assets.
type AssetLayout string

const (
	// AssetLayoutPerBand emits one asset per measurement.
	AssetLayoutPerBand AssetLayout = "per_band"
	// AssetLayoutSingleLocation emits one "location" asset listing every band.
	AssetLayoutSingleLocation AssetLayout = "single_location"
)

// Valid reports whether the layout is known.
func (l AssetLayout) Valid() bool {
	return l == AssetLayoutPerBand || l == AssetLayoutSingleLocation
}

// Product groups datasets of the same kind. Exposed as a STAC collection.
type Product struct {
	Name        string
	Description string
	Platform    string
	Instrument  string
	AssetLayout AssetLayout
	Bands       []string
	UpdatedAt   time.Time
}

// ProductSummary is the extent of the datasets indexed for a product.
type ProductSummary struct {
	Product      string     `json:"product"`
	DatasetCount int64      `json:"dataset_count"`
	TimeEarliest *time.Time `json:"time_earliest,omitempty"`
	TimeLatest   *time.Time `json:"time_latest,omitempty"`
	BBox         *BBox      `json:"bbox,omitempty"`
}
