package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// BBox is an axis-aligned box in lon/lat degrees.
type BBox struct {
	MinX float64 `json:"min_x" cbor:"1,keyasint"`
	MinY float64 `json:"min_y" cbor:"2,keyasint"`
	MaxX float64 `json:"max_x" cbor:"3,keyasint"`
	MaxY float64 `json:"max_y" cbor:"4,keyasint"`
}

// BBoxFromBound converts an orb bound.
func BBoxFromBound(b orb.Bound) BBox {
	return BBox{MinX: b.Min.X(), MinY: b.Min.Y(), MaxX: b.Max.X(), MaxY: b.Max.Y()}
}

// Bound returns the box as an orb bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinX, b.MinY}, Max: orb.Point{b.MaxX, b.MaxY}}
}

// IsZero reports whether every coordinate is zero.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Intersects reports whether the two boxes share any point, edges included.
func (b BBox) Intersects(other BBox) bool {
	return b.MinX <= other.MaxX && other.MinX <= b.MaxX &&
		b.MinY <= other.MaxY && other.MinY <= b.MaxY
}

// Union returns the smallest box covering both.
func (b BBox) Union(other BBox) BBox {
	return BBoxFromBound(b.Bound().Union(other.Bound()))
}

// Array returns the box in STAC order.
func (b BBox) Array() []float64 {
	return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY}
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `cbor:"1,keyasint"`
	End   time.Time `cbor:"2,keyasint"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Filter is a validated search filter. Only the resolver builds these.
type Filter struct {
	Product string     `cbor:"1,keyasint,omitempty"`
	BBox    *BBox      `cbor:"2,keyasint,omitempty"`
	Time    *TimeRange `cbor:"3,keyasint,omitempty"`
	Limit   int        `cbor:"4,keyasint"`
}

// Matches reports whether a dataset satisfies the filter predicates.
// Limit is not considered.
func (f Filter) Matches(d *Dataset) bool {
	if f.Product != "" && d.Product != f.Product {
		return false
	}
	if f.Time != nil && !f.Time.Contains(d.CenterTime) {
		return false
	}
	if f.BBox != nil && (d.BBox.IsZero() || !f.BBox.Intersects(d.BBox)) {
		return false
	}
	return true
}

// Page is one window of search results.
type Page struct {
	Datasets []*Dataset
	// NextCursor is empty on the last page.
	NextCursor string
	// Filter is the filter the page was drawn with.
	Filter Filter
}

// HasMore reports whether another page exists.
func (p *Page) HasMore() bool {
	return p.NextCursor != ""
}
