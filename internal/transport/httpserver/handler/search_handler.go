// Package handler provides HTTP handlers for the API.
package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/dto"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
)

// GeoJSON is the media type of feature collections and items.
const GeoJSON = "application/geo+json"

// SearchHandler serves /stac/search.
type SearchHandler struct {
	service   *service.SearchService
	validator *validator.Validator
	logger    *zap.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(svc *service.SearchService, v *validator.Validator, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// Search handles GET /stac/search. A cursor takes precedence over every
// other parameter since it carries the filter it was issued for.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	var req dto.SearchQuery
	if err := c.QueryParser(&req); err != nil {
		return invalidParams(c, "invalid query parameters")
	}
	if err := h.validator.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	if req.Cursor != "" {
		fc, err := h.service.Continue(c.UserContext(), req.Cursor)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fc, GeoJSON)
	}

	params, err := req.ToRawParams()
	if err != nil {
		return writeError(c, err)
	}
	fc, err := h.service.Search(c.UserContext(), params)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fc, GeoJSON)
}

// SearchPost handles POST /stac/search.
func (h *SearchHandler) SearchPost(c *fiber.Ctx) error {
	var req dto.SearchBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidParams(c, "invalid request body")
		}
	}
	if err := h.validator.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	if req.Cursor != "" {
		fc, err := h.service.Continue(c.UserContext(), req.Cursor)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fc, GeoJSON)
	}

	fc, err := h.service.Search(c.UserContext(), req.ToRawParams())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fc, GeoJSON)
}
