package region

import (
	"fmt"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

// Outline dissolves footprints into the outline of the H3 cells covering
// them. A footprint smaller than a cell contributes the cell holding its
// centre, so every footprint is represented.
func (c *Coder) Outline(footprints []orb.Polygon) (orb.MultiPolygon, error) {
	seen := make(map[h3.Cell]struct{})
	var cells []h3.Cell

	for _, p := range footprints {
		if len(p) == 0 || len(p[0]) < 4 {
			continue
		}
		covered, err := h3.PolygonToCells(toGeoPolygon(p), c.res)
		if err != nil {
			return nil, fmt.Errorf("h3 polyfill: %w", err)
		}
		if len(covered) == 0 {
			center := p.Bound().Center()
			cell, err := h3.LatLngToCell(h3.NewLatLng(center.Y(), center.X()), c.res)
			if err != nil {
				return nil, fmt.Errorf("h3 cell: %w", err)
			}
			covered = []h3.Cell{cell}
		}
		for _, cell := range covered {
			if _, ok := seen[cell]; ok {
				continue
			}
			seen[cell] = struct{}{}
			cells = append(cells, cell)
		}
	}

	if len(cells) == 0 {
		return nil, nil
	}

	polys, err := h3.CellsToMultiPolygon(cells)
	if err != nil {
		return nil, fmt.Errorf("h3 outline: %w", err)
	}

	out := make(orb.MultiPolygon, 0, len(polys))
	for _, gp := range polys {
		poly := orb.Polygon{toRing(gp.GeoLoop)}
		for _, hole := range gp.Holes {
			poly = append(poly, toRing(hole))
		}
		out = append(out, poly)
	}
	return out, nil
}

// CellOutline returns the boundary of code when it names an H3 cell.
func CellOutline(code string) (orb.Polygon, bool) {
	cell := h3.Cell(h3.IndexFromString(code))
	if !cell.IsValid() || cell.String() != code {
		return nil, false
	}
	boundary, err := cell.Boundary()
	if err != nil {
		return nil, false
	}
	return orb.Polygon{toRing(h3.GeoLoop(boundary))}, true
}

// toGeoPolygon drops closing points; h3 loops are implicitly closed.
func toGeoPolygon(p orb.Polygon) h3.GeoPolygon {
	gp := h3.GeoPolygon{GeoLoop: toLoop(p[0])}
	for _, hole := range p[1:] {
		gp.Holes = append(gp.Holes, toLoop(hole))
	}
	return gp
}

func toLoop(r orb.Ring) h3.GeoLoop {
	n := len(r)
	if r.Closed() {
		n--
	}
	loop := make(h3.GeoLoop, 0, n)
	for _, pt := range r[:n] {
		loop = append(loop, h3.NewLatLng(pt.Y(), pt.X()))
	}
	return loop
}

func toRing(loop h3.GeoLoop) orb.Ring {
	ring := make(orb.Ring, 0, len(loop)+1)
	for _, ll := range loop {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}
