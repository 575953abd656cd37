package stac

import (
	"net/url"
	"strings"
)

// Links builds hrefs for STAC resources. With an empty base URL the hrefs
// are root-relative.
type Links struct {
	base string
}

func NewLinks(baseURL string) *Links {
	return &Links{base: strings.TrimRight(baseURL, "/")}
}

func (l *Links) Root() string {
	return l.base + "/stac"
}

func (l *Links) Search(q url.Values) string {
	href := l.base + "/stac/search"
	if len(q) > 0 {
		href += "?" + q.Encode()
	}
	return href
}

func (l *Links) Collections() string {
	return l.base + "/stac/collections"
}

func (l *Links) Collection(product string) string {
	return l.Collections() + "/" + url.PathEscape(product)
}

func (l *Links) Items(product string, q url.Values) string {
	href := l.Collection(product) + "/items"
	if len(q) > 0 {
		href += "?" + q.Encode()
	}
	return href
}

func (l *Links) Item(product, id string) string {
	return l.Collection(product) + "/items/" + url.PathEscape(id)
}
