// Package dto provides Data Transfer Objects for HTTP requests and responses.
package dto

import (
	"github.com/DeZhao-Zhang/datacube-explorer/internal/search"
)

// SearchQuery represents the query string of GET /stac/search and of the
// collection items listing. bbox and limit arrive as text and are parsed
// by ToRawParams.
type SearchQuery struct {
	Product  string `query:"product" json:"product" validate:"omitempty,max=200,product_name"`
	BBox     string `query:"bbox" json:"bbox" validate:"omitempty,max=200"`
	Time     string `query:"time" json:"time" validate:"omitempty,max=100"`
	Datetime string `query:"datetime" json:"datetime" validate:"omitempty,max=100"`
	Limit    string `query:"limit" json:"limit" validate:"omitempty,max=10"`
	Cursor   string `query:"cursor" json:"cursor" validate:"omitempty,max=4096"`
}

// ToRawParams converts the query into resolver input. "datetime" is the
// STAC name of the time parameter and is used when "time" is absent.
func (q *SearchQuery) ToRawParams() (search.RawParams, error) {
	bbox, err := search.ParseBBox(q.BBox)
	if err != nil {
		return search.RawParams{}, err
	}
	limit, err := search.ParseLimit(q.Limit)
	if err != nil {
		return search.RawParams{}, err
	}

	t := q.Time
	if t == "" {
		t = q.Datetime
	}

	return search.RawParams{
		Product: q.Product,
		BBox:    bbox,
		Time:    t,
		Limit:   limit,
	}, nil
}

// SearchBody represents the JSON body of POST /stac/search.
type SearchBody struct {
	Product  string    `json:"product" validate:"omitempty,max=200,product_name"`
	BBox     []float64 `json:"bbox" validate:"omitempty,len=4"`
	Time     string    `json:"time" validate:"omitempty,max=100"`
	Datetime string    `json:"datetime" validate:"omitempty,max=100"`
	Limit    *int      `json:"limit"`
	Cursor   string    `json:"cursor" validate:"omitempty,max=4096"`
}

// ToRawParams converts the body into resolver input.
func (b *SearchBody) ToRawParams() search.RawParams {
	t := b.Time
	if t == "" {
		t = b.Datetime
	}
	return search.RawParams{
		Product: b.Product,
		BBox:    b.BBox,
		Time:    t,
		Limit:   b.Limit,
	}
}

// SyncRequest represents the request body for manual sync.
type SyncRequest struct {
	Provider string `json:"provider" validate:"omitempty,max=50"`
}
