package stac

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

var errEmptyGeometry = errors.New("empty geometry")

// ValidateFootprint reports why a footprint cannot be published as
// GeoJSON, or nil if it can. Only polygonal footprints are accepted.
func ValidateFootprint(g orb.Geometry) error {
	switch g := g.(type) {
	case orb.Polygon:
		return validatePolygon(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return errEmptyGeometry
		}
		for i, p := range g {
			if err := validatePolygon(p); err != nil {
				return fmt.Errorf("polygon %d: %w", i, err)
			}
		}
		return nil
	case nil:
		return errEmptyGeometry
	default:
		return fmt.Errorf("unsupported footprint type %s", g.GeoJSONType())
	}
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return errEmptyGeometry
	}
	for i, r := range p {
		if err := validateRing(r); err != nil {
			return fmt.Errorf("ring %d: %w", i, err)
		}
	}
	return nil
}

func validateRing(r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("ring has %d points, need at least 4", len(r))
	}
	if !r.Closed() {
		return errors.New("ring is not closed")
	}
	for _, pt := range r {
		x, y := pt.X(), pt.Y()
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return errors.New("non-finite coordinate")
		}
		if x < -180 || x > 180 || y < -90 || y > 90 {
			return fmt.Errorf("coordinate %v outside lon/lat range", pt)
		}
	}
	if planar.Area(r) == 0 {
		return errors.New("ring has zero area")
	}
	if selfIntersects(dropRepeats(r)) {
		return errors.New("ring self-intersects")
	}
	return nil
}

// dropRepeats removes zero-length edges left by repeated vertices.
func dropRepeats(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for i, pt := range r {
		if i > 0 && pt.Equal(r[i-1]) {
			continue
		}
		out = append(out, pt)
	}
	return out
}

// selfIntersects checks every pair of non-adjacent edges.
func selfIntersects(r orb.Ring) bool {
	n := len(r) - 1 // closing point repeats the first
	for i := 0; i < n; i++ {
		a1, a2 := r[i], r[i+1]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(a1, a2, r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(q1, q2, p1)) ||
		(d2 == 0 && onSegment(q1, q2, p2)) ||
		(d3 == 0 && onSegment(p1, p2, q1)) ||
		(d4 == 0 && onSegment(p1, p2, q2))
}

func cross(a, b, c orb.Point) float64 {
	return (b.X()-a.X())*(c.Y()-a.Y()) - (b.Y()-a.Y())*(c.X()-a.X())
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a.X(), b.X()) <= p.X() && p.X() <= math.Max(a.X(), b.X()) &&
		math.Min(a.Y(), b.Y()) <= p.Y() && p.Y() <= math.Max(a.Y(), b.Y())
}
