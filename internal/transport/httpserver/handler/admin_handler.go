package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/dto"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	syncService *service.SyncService
	validator   *validator.Validator
	logger      *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(syncSvc *service.SyncService, v *validator.Validator, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		syncService: syncSvc,
		validator:   v,
		logger:      logger,
	}
}

// SyncAll handles POST /api/v1/admin/sync
func (h *AdminHandler) SyncAll(c *fiber.Ctx) error {
	h.logger.Info("manual sync triggered")

	results := h.syncService.SyncAll(c.UserContext())

	return c.JSON(dto.FromSyncResults(results))
}

// SyncProvider handles POST /api/v1/admin/sync/:provider
func (h *AdminHandler) SyncProvider(c *fiber.Ctx) error {
	req := dto.SyncRequest{Provider: param(c, "provider")}
	if req.Provider == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "provider name is required",
			Code:  "MISSING_PROVIDER",
		})
	}
	if err := h.validator.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	h.logger.Info("manual provider sync triggered", zap.String("provider", req.Provider))

	result, err := h.syncService.SyncProvider(c.UserContext(), req.Provider)
	if errors.Is(err, domain.ErrNotFound) && result == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "provider not found",
			Code:  "PROVIDER_NOT_FOUND",
		})
	}
	if err != nil {
		resp := dto.ErrorResponse{Error: err.Error(), Code: "SYNC_FAILED"}
		if result != nil {
			resp.Details = dto.FromSyncResult(*result)
		}
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}

	return c.JSON(dto.FromSyncResult(*result))
}

// GetProviders handles GET /api/v1/admin/providers
func (h *AdminHandler) GetProviders(c *fiber.Ctx) error {
	return c.JSON(dto.ProvidersResponse{
		Providers: h.syncService.GetProviderNames(),
	})
}
