package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

type KitchenHandler struct {
	kitchen *service.KitchenService
	logger  *zap.Logger
}

func NewKitchenHandler(kitchen *service.KitchenService, logger *zap.Logger) *KitchenHandler {
	return &KitchenHandler{kitchen: kitchen, logger: logger}
}

func (h *KitchenHandler) Queue(c *fiber.Ctx) error {
	queue, err := h.kitchen.Queue(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, "kitchen queue failed", err)
	}

	return c.JSON(snapshots(queue))
}
