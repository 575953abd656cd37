// Package region assigns region codes to datasets that arrive without one.
package region

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
)

// DefaultResolution gives cells roughly 250 km² in area.
const DefaultResolution = 5

// Coder derives a region code from the H3 cell holding a dataset's
// footprint centre.
type Coder struct {
	res int
}

func NewCoder(res int) (*Coder, error) {
	if res < 0 || res > 15 {
		return nil, fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return &Coder{res: res}, nil
}

// Code returns the H3 cell of the centre of b.
func (c *Coder) Code(b domain.BBox) (string, error) {
	center := b.Bound().Center()
	cell, err := h3.LatLngToCell(h3.NewLatLng(center.Y(), center.X()), c.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return cell.String(), nil
}

// Fill sets RegionCode on datasets that have a bbox but no code. It
// returns how many datasets were assigned a code.
func (c *Coder) Fill(datasets []*domain.Dataset) int {
	n := 0
	for _, ds := range datasets {
		if ds.RegionCode != "" {
			continue
		}
		b := ds.BBox
		if b.IsZero() && ds.Geometry != nil {
			b = domain.BBoxFromBound(ds.Geometry.Bound())
		}
		if b.IsZero() {
			continue
		}
		code, err := c.Code(b)
		if err != nil {
			continue
		}
		ds.RegionCode = code
		n++
	}
	return n
}
