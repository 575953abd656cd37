// Package stac renders indexed datasets and products as STAC documents.
package stac

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// Version is the STAC version written on every document.
const Version = "0.6.0"

type Link struct {
	Rel         string `json:"rel"`
	Href        string `json:"href"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
}

type Asset struct {
	Href           string   `json:"href"`
	Title          string   `json:"title,omitempty"`
	SecondaryHrefs []string `json:"odc:secondary_hrefs"`
	Bands          []string `json:"eo:bands"`
}

// Item is a GeoJSON feature for one dataset. Geometry is null when the
// footprint is missing or could not be rendered.
type Item struct {
	StacVersion string            `json:"stac_version"`
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Collection  string            `json:"collection,omitempty"`
	BBox        []float64         `json:"bbox,omitempty"`
	Geometry    *geojson.Geometry `json:"geometry"`
	Properties  map[string]any    `json:"properties"`
	Links       []Link            `json:"links"`
	Assets      map[string]Asset  `json:"assets"`
}

// SearchContext reports the size of a returned page.
type SearchContext struct {
	Returned int `json:"returned"`
	Limit    int `json:"limit"`
}

type ItemCollection struct {
	Type     string        `json:"type"`
	Features []*Item       `json:"features"`
	Links    []Link        `json:"links"`
	Context  SearchContext `json:"context"`
}

// NextLink returns the rel=next link, if any.
func (c *ItemCollection) NextLink() (Link, bool) {
	for _, l := range c.Links {
		if l.Rel == "next" {
			return l, true
		}
	}
	return Link{}, false
}

type Catalog struct {
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Links       []Link `json:"links"`
}

type Extent struct {
	Spatial  []float64   `json:"spatial,omitempty"`
	Temporal []time.Time `json:"temporal"`
}

type Collection struct {
	StacVersion string         `json:"stac_version"`
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Properties  map[string]any `json:"properties"`
	Providers   []any          `json:"providers"`
	Extent      *Extent        `json:"extent,omitempty"`
	Found       int64          `json:"found"`
	Links       []Link         `json:"links"`
}

// CollectionList is the body of the collections listing.
type CollectionList struct {
	Collections []*Collection `json:"collections"`
	Links       []Link        `json:"links"`
}
