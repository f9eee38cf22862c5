package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/pkg/utils"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.uber.org/zap"
)

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrBusinessRule):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExternalService):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	code := httpStatus(err)

	if code >= fiber.StatusInternalServerError {
		mylogger.Error(c.UserContext(), logger, msg, zap.Int("http_status", code), zap.Error(err))
	} else {
		mylogger.Warn(c.UserContext(), logger, msg, zap.Int("http_status", code), zap.Error(err))
	}

	if code == fiber.StatusInternalServerError {
		return c.Status(code).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// parseBody decodes and validates the request body into dst. When ok is false the
// 400 response has already been written and err is the result of writing it.
func parseBody(c *fiber.Ctx, v *validator.Validate, dst any) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := v.Struct(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": utils.FormatValidationError(err),
		})
	}

	return true, nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": name + " is not a valid UUID",
		})
	}

	return id, true, nil
}
