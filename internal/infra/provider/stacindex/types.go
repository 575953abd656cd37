package stacindex

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
)

// CollectionsResponse is the body of GET /collections.
type CollectionsResponse struct {
	Collections []Collection `json:"collections"`
}

// Collection is an upstream STAC collection.
type Collection struct {
	ID          string               `json:"id" validate:"required,product_name"`
	Description string               `json:"description"`
	Properties  CollectionProperties `json:"properties"`
}

type CollectionProperties struct {
	Platform   string `json:"eo:platform"`
	Instrument string `json:"eo:instrument"`
	Bands      []Band `json:"eo:bands"`
}

type Band struct {
	Name string `json:"name"`
}

// ItemCollection is one page of upstream search results.
type ItemCollection struct {
	Features []Item `json:"features"`
	Links    []Link `json:"links"`
}

// Next returns the href of the rel=next link, or "".
func (c *ItemCollection) Next() string {
	for _, l := range c.Links {
		if l.Rel == "next" {
			return l.Href
		}
	}
	return ""
}

type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// Item is an upstream STAC item.
type Item struct {
	ID         string            `json:"id" validate:"required"`
	Collection string            `json:"collection"`
	BBox       []float64         `json:"bbox" validate:"omitempty,len=4"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties ItemProperties    `json:"properties"`
	Assets     map[string]Asset  `json:"assets"`
}

type ItemProperties struct {
	Datetime      *time.Time `json:"datetime" validate:"required"`
	Product       string     `json:"odc:product"`
	CreationTime  *time.Time `json:"odc:creation-time"`
	RegionCode    string     `json:"cubedash:region_code"`
	CRS           string     `json:"odc:crs"`
	StartDatetime *time.Time `json:"dtr:start_datetime"`
	EndDatetime   *time.Time `json:"dtr:end_datetime"`
}

type Asset struct {
	Href  string   `json:"href"`
	Bands []string `json:"eo:bands"`
}

// ToDomain converts a collection to a product. The layout is decided by
// the caller from a sample item.
func (c *Collection) ToDomain(layout domain.AssetLayout) *domain.Product {
	bands := make([]string, 0, len(c.Properties.Bands))
	for _, b := range c.Properties.Bands {
		if b.Name != "" {
			bands = append(bands, b.Name)
		}
	}
	return &domain.Product{
		Name:        c.ID,
		Description: c.Description,
		Platform:    c.Properties.Platform,
		Instrument:  c.Properties.Instrument,
		AssetLayout: layout,
		Bands:       bands,
	}
}

// Layout infers how an item's measurements are stored.
func (it *Item) Layout() domain.AssetLayout {
	if _, ok := it.Assets[stac.LocationAsset]; ok && len(it.Assets) == 1 {
		return domain.AssetLayoutSingleLocation
	}
	return domain.AssetLayoutPerBand
}

// ToDomain converts an item to a dataset.
func (it *Item) ToDomain() *domain.Dataset {
	ds := &domain.Dataset{
		ID:           it.ID,
		Product:      it.Collection,
		CenterTime:   *it.Properties.Datetime,
		CreationTime: it.Properties.CreationTime,
		CRS:          it.Properties.CRS,
		RegionCode:   it.Properties.RegionCode,
		Measurements: map[string]string{},
	}
	if ds.Product == "" {
		ds.Product = it.Properties.Product
	}
	if it.Properties.StartDatetime != nil && it.Properties.EndDatetime != nil {
		ds.TimeRange = &domain.TimeRange{Start: *it.Properties.StartDatetime, End: *it.Properties.EndDatetime}
	}
	if it.Geometry != nil && it.Geometry.Coordinates != nil {
		ds.Geometry = it.Geometry.Coordinates
	}
	if len(it.BBox) == 4 {
		ds.BBox = domain.BBox{MinX: it.BBox[0], MinY: it.BBox[1], MaxX: it.BBox[2], MaxY: it.BBox[3]}
	}

	if loc, ok := it.Assets[stac.LocationAsset]; ok && it.Layout() == domain.AssetLayoutSingleLocation {
		ds.BaseURI = loc.Href
		for _, band := range loc.Bands {
			ds.Measurements[band] = ""
		}
		return ds
	}
	for name, a := range it.Assets {
		if a.Href != "" {
			ds.Measurements[name] = a.Href
		}
	}
	return ds
}
