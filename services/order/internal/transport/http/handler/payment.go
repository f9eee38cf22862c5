package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	payments service.PaymentService
	logger   *zap.Logger
}

func NewPaymentHandler(payments service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

type webhookPayload struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	created, err := h.payments.CreatePayment(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, "create payment failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// Webhook always answers 200 so the provider does not keep redelivering; failures are logged.
// The payment id comes from the JSON body or, for the legacy format, from ?id= / ?data.id=.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var payload webhookPayload
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			mylogger.Warn(ctx, h.logger, "Unparseable payment webhook", zap.Error(err))
		}
	}

	kind := firstNonEmpty(payload.Type, c.Query("type"), c.Query("topic"))
	paymentID := firstNonEmpty(payload.Data.ID, c.Query("data.id"), c.Query("id"))

	if kind != "" && kind != "payment" {
		mylogger.Debug(ctx, h.logger, "Ignoring non-payment webhook", zap.String("type", kind))
		return c.SendStatus(fiber.StatusOK)
	}

	if paymentID == "" {
		mylogger.Warn(ctx, h.logger, "Payment webhook without payment id")
		return c.SendStatus(fiber.StatusOK)
	}

	result, err := h.payments.ProcessPaymentNotification(ctx, paymentID)
	if err != nil {
		mylogger.Error(ctx, h.logger, "Payment webhook processing failed", zap.String("payment_id", paymentID), zap.Error(err))
		return c.SendStatus(fiber.StatusOK)
	}

	return c.JSON(fiber.Map{
		"outcome":  result.Outcome,
		"order_id": result.OrderID,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
