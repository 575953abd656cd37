package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver/dto"
)

const restartHint = "restart pagination from the first page"

// writeError maps domain errors to HTTP responses. Anything unrecognised
// is reported as an internal error without its message.
func writeError(c *fiber.Ctx, err error) error {
	var (
		fe *domain.FilterError
		ce *domain.CursorError
		se *domain.SourceError
	)

	// A stale cursor wraps the filter error it failed revalidation with.
	switch {
	case errors.As(err, &ce):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: ce.Error() + "; " + restartHint,
			Code:  dto.CodeInvalidCursor,
		})
	case errors.As(err, &fe):
		if fe.Kind == domain.FilterNotFound {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: fe.Error(),
				Code:  dto.CodeNotFound,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: fe.Error(),
			Code:  dto.CodeInvalidFilter,
		})
	case errors.As(err, &se):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "record source unavailable",
			Code:  dto.CodeSourceUnavailable,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "internal server error",
			Code:  dto.CodeInternal,
		})
	}
}

func invalidParams(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: msg,
		Code:  dto.CodeInvalidParams,
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error:   "validation failed",
		Code:    dto.CodeValidation,
		Details: err,
	})
}
