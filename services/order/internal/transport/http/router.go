package http

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/switq/fast-food-api/pkg/metrics"
	"github.com/switq/fast-food-api/services/order/internal/transport/http/handler"
)

type Handlers struct {
	Order    *handler.OrderHandler
	Payment  *handler.PaymentHandler
	Kitchen  *handler.KitchenHandler
	Product  *handler.ProductHandler
	Customer *handler.CustomerHandler
}

type Options struct {
	Metrics  *metrics.OrderMetrics
	Gatherer prometheus.Gatherer
	// Ready is consulted by /health; nil means always healthy.
	Ready func(ctx context.Context) error
}

func RegisterRoutes(app *fiber.App, h *Handlers, opts Options) {
	app.Use(observe(opts.Metrics))

	app.Get("/health", health(opts.Ready))
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Post("/webhooks/payment", h.Payment.Webhook)

	order := app.Group("/orders")
	order.Post("", h.Order.Create)
	order.Get("", h.Order.List)
	order.Get("/:id", h.Order.Get)
	order.Delete("/:id", h.Order.Delete)
	order.Post("/:id/items", h.Order.AddItems)
	order.Delete("/:id/items", h.Order.RemoveItems)
	order.Patch("/:id/items/:itemId", h.Order.UpdateItemQuantity)
	order.Patch("/:id/status", h.Order.UpdateStatus)
	order.Post("/:id/confirm", h.Order.Confirm)
	order.Post("/:id/confirm-payment", h.Order.ConfirmPayment)
	order.Post("/:id/prepare", h.Order.StartPreparing)
	order.Post("/:id/ready", h.Order.MarkReady)
	order.Post("/:id/deliver", h.Order.MarkDelivered)
	order.Post("/:id/cancel", h.Order.Cancel)
	order.Post("/:id/payment", h.Payment.Create)

	app.Get("/kitchen/queue", h.Kitchen.Queue)

	product := app.Group("/products")
	product.Post("", h.Product.Create)
	product.Get("", h.Product.List)
	product.Get("/:id", h.Product.FindByID)
	product.Put("/:id", h.Product.Update)
	product.Patch("/:id/stock", h.Product.UpdateStock)
	product.Delete("/:id", h.Product.Delete)

	customer := app.Group("/customers")
	customer.Post("", h.Customer.Register)
	customer.Get("", h.Customer.List)
	customer.Get("/:id", h.Customer.FindByID)
}

func health(ready func(ctx context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ready != nil {
			if err := ready(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
					"error":  err.Error(),
				})
			}
		}

		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func observe(m *metrics.OrderMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		code := c.Response().StatusCode()
		if err != nil {
			code = fiber.StatusInternalServerError

			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
		}

		m.ObserveHTTP(c.Method(), c.Route().Path, strconv.Itoa(code), time.Since(start).Seconds())

		return err
	}
}
