package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/search"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/dto"
)

// OverviewHandler serves per-period footprints, regions and timelines of
// a product.
type OverviewHandler struct {
	service  *service.OverviewService
	location *time.Location
	logger   *zap.Logger
}

// NewOverviewHandler creates a new OverviewHandler. Periods are expanded
// in loc.
func NewOverviewHandler(svc *service.OverviewService, loc *time.Location, logger *zap.Logger) *OverviewHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OverviewHandler{
		service:  svc,
		location: loc,
		logger:   logger,
	}
}

// Footprint handles GET /api/footprint/:product/:year?/:month?/:day?
func (h *OverviewHandler) Footprint(c *fiber.Ctx) error {
	period, err := h.period(c)
	if err != nil {
		return invalidParams(c, err.Error())
	}
	ov, err := h.service.Overview(c.UserContext(), param(c, "product"), period)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FootprintFeature(ov), GeoJSON)
}

// Regions handles GET /api/regions/:product/:year?/:month?/:day?
func (h *OverviewHandler) Regions(c *fiber.Ctx) error {
	period, err := h.period(c)
	if err != nil {
		return invalidParams(c, err.Error())
	}
	ov, err := h.service.Regions(c.UserContext(), param(c, "product"), period)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.RegionsCollection(ov), GeoJSON)
}

// Timeline handles GET /api/timeline/:product/:year?/:month?/:day?
func (h *OverviewHandler) Timeline(c *fiber.Ctx) error {
	period, err := h.period(c)
	if err != nil {
		return invalidParams(c, err.Error())
	}
	ov, err := h.service.Overview(c.UserContext(), param(c, "product"), period)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromTimeline(ov))
}

// period returns nil when no year is given.
func (h *OverviewHandler) period(c *fiber.Ctx) (*domain.TimeRange, error) {
	s, err := datasetPeriod(c.Params("year"), c.Params("month"), c.Params("day"))
	if err != nil || s == "" {
		return nil, err
	}
	r, err := search.ParseTimeRange(s, h.location)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
