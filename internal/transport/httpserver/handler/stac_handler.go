package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/search"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/dto"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
)

// StacHandler serves the browsable catalog: root, collections, their items
// and the legacy per-period dataset redirects.
type StacHandler struct {
	service   *service.SearchService
	links     *stac.Links
	location  *time.Location
	validator *validator.Validator
	logger    *zap.Logger
}

// NewStacHandler creates a new StacHandler. Periods in dataset redirects
// are expanded in loc.
func NewStacHandler(
	svc *service.SearchService,
	links *stac.Links,
	loc *time.Location,
	v *validator.Validator,
	logger *zap.Logger,
) *StacHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StacHandler{
		service:   svc,
		links:     links,
		location:  loc,
		validator: v,
		logger:    logger,
	}
}

// Root handles GET /stac
func (h *StacHandler) Root(c *fiber.Ctx) error {
	cat, err := h.service.Catalog(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cat)
}

// Collections handles GET /stac/collections
func (h *StacHandler) Collections(c *fiber.Ctx) error {
	list, err := h.service.Collections(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// Collection handles GET /stac/collections/:product
func (h *StacHandler) Collection(c *fiber.Ctx) error {
	col, err := h.service.Collection(c.UserContext(), param(c, "product"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(col)
}

// Items handles GET /stac/collections/:product/items
func (h *StacHandler) Items(c *fiber.Ctx) error {
	product := param(c, "product")

	var req dto.SearchQuery
	if err := c.QueryParser(&req); err != nil {
		return invalidParams(c, "invalid query parameters")
	}
	if err := h.validator.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	if req.Cursor != "" {
		fc, err := h.service.ContinueItems(c.UserContext(), product, req.Cursor)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fc, GeoJSON)
	}

	params, err := req.ToRawParams()
	if err != nil {
		return writeError(c, err)
	}
	fc, err := h.service.Items(c.UserContext(), product, params)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fc, GeoJSON)
}

// Item handles GET /stac/collections/:product/items/:id
func (h *StacHandler) Item(c *fiber.Ctx) error {
	item, err := h.service.Item(c.UserContext(), param(c, "product"), param(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(item, GeoJSON)
}

// Datasets handles GET /api/datasets/:product/:year?/:month?/:day? by
// redirecting to a search over the whole period. bbox and limit are
// passed through.
func (h *StacHandler) Datasets(c *fiber.Ctx) error {
	period, err := datasetPeriod(c.Params("year"), c.Params("month"), c.Params("day"))
	if err != nil {
		return invalidParams(c, err.Error())
	}

	q := url.Values{"product": {param(c, "product")}}
	if period != "" {
		r, err := search.ParseTimeRange(period, h.location)
		if err != nil {
			return writeError(c, err)
		}
		q.Set("time", search.FormatTimeRange(r))
	}
	for _, k := range []string{"bbox", "limit"} {
		if v := c.Query(k); v != "" {
			q.Set(k, v)
		}
	}

	return c.Redirect(h.links.Search(q), fiber.StatusFound)
}

// datasetPeriod renders year, month and day path segments as a date of
// matching precision. Later segments require the earlier ones.
func datasetPeriod(year, month, day string) (string, error) {
	if year == "" {
		return "", nil
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 || y > 9999 {
		return "", fmt.Errorf("invalid year %q", year)
	}
	if month == "" {
		return fmt.Sprintf("%04d", y), nil
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", fmt.Errorf("invalid month %q", month)
	}
	if day == "" {
		return fmt.Sprintf("%04d-%02d", y, m), nil
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", fmt.Errorf("invalid day %q", day)
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), nil
}

// param returns an unescaped route parameter.
func param(c *fiber.Ctx, name string) string {
	v := c.Params(name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
