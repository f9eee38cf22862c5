package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orders   service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: validator.New(),
		logger:   logger,
	}
}

type OrderItemInput struct {
	ProductID   string `json:"product_id" validate:"required,uuid"`
	Quantity    int    `json:"quantity" validate:"gt=0,lte=10000"`
	Observation string `json:"observation" validate:"max=255"`
}

type CreateOrderInput struct {
	CustomerID *string          `json:"customer_id" validate:"omitempty,uuid"`
	Items      []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

type AddItemsInput struct {
	Items []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

type RemoveItemsInput struct {
	ItemIDs []string `json:"item_ids" validate:"required,min=1,dive,uuid"`
}

type UpdateQuantityInput struct {
	Quantity int `json:"quantity" validate:"gt=0,lte=10000"`
}

type UpdateStatusInput struct {
	Status string `json:"status" validate:"required"`
}

type OrderDetailsResponse struct {
	Order    domain.OrderSnapshot          `json:"order"`
	Customer *domain.Customer              `json:"customer,omitempty"`
	Products map[uuid.UUID]*domain.Product `json:"products"`
}

func toItemInputs(items []OrderItemInput) []service.ItemInput {
	out := make([]service.ItemInput, len(items))
	for i, item := range items {
		out[i] = service.ItemInput{
			// validated as uuid
			ProductID:   uuid.MustParse(item.ProductID),
			Quantity:    item.Quantity,
			Observation: item.Observation,
		}
	}

	return out
}

func toDetailsResponse(d service.OrderDetails) OrderDetailsResponse {
	return OrderDetailsResponse{
		Order:    d.Order.Snapshot(),
		Customer: d.Customer,
		Products: d.Products,
	}
}

func snapshots(orders []*domain.Order) []domain.OrderSnapshot {
	out := make([]domain.OrderSnapshot, len(orders))
	for i, o := range orders {
		out[i] = o.Snapshot()
	}

	return out
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var input CreateOrderInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	var customerID *uuid.UUID
	if input.CustomerID != nil {
		id := uuid.MustParse(*input.CustomerID)
		customerID = &id
	}

	order, err := h.orders.CreateOrder(c.UserContext(), service.CreateOrderInput{
		CustomerID: customerID,
		Items:      toItemInputs(input.Items),
	})
	if err != nil {
		return respondError(c, h.logger, "create order failed", err)
	}

	mylogger.Info(c.UserContext(), h.logger, "create order succeeded", zap.String("order_id", order.ID().String()))

	return c.Status(fiber.StatusCreated).JSON(order.Snapshot())
}

// List accepts ?status=, ?customer_id= and ?details=products|full. Filters are exclusive.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()

	switch c.Query("details") {
	case "products":
		list, err := h.orders.ListOrdersWithProducts(ctx)
		if err != nil {
			return respondError(c, h.logger, "list orders failed", err)
		}
		return c.JSON(detailsList(list))
	case "full":
		list, err := h.orders.ListOrdersWithDetails(ctx)
		if err != nil {
			return respondError(c, h.logger, "list orders failed", err)
		}
		return c.JSON(detailsList(list))
	}

	var (
		orders []*domain.Order
		err    error
	)

	switch {
	case c.Query("status") != "":
		status, parseErr := domain.ParseOrderStatus(c.Query("status"))
		if parseErr != nil {
			return respondError(c, h.logger, "list orders failed", parseErr)
		}
		orders, err = h.orders.ListOrdersByStatus(ctx, status)
	case c.Query("customer_id") != "":
		customerID, parseErr := uuid.Parse(c.Query("customer_id"))
		if parseErr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer_id is not a valid UUID"})
		}
		orders, err = h.orders.ListOrdersByCustomer(ctx, customerID)
	default:
		orders, err = h.orders.ListOrders(ctx)
	}

	if err != nil {
		return respondError(c, h.logger, "list orders failed", err)
	}

	return c.JSON(snapshots(orders))
}

func detailsList(list []service.OrderDetails) []OrderDetailsResponse {
	out := make([]OrderDetailsResponse, len(list))
	for i, d := range list {
		out[i] = toDetailsResponse(d)
	}

	return out
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	if c.QueryBool("details") {
		details, err := h.orders.GetOrderWithDetails(c.UserContext(), id)
		if err != nil {
			return respondError(c, h.logger, "get order failed", err)
		}
		return c.JSON(toDetailsResponse(*details))
	}

	order, err := h.orders.GetOrder(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, "get order failed", err)
	}

	return c.JSON(order.Snapshot())
}

func (h *OrderHandler) Delete(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	if err := h.orders.DeleteOrder(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, "delete order failed", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *OrderHandler) AddItems(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	var input AddItemsInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	order, err := h.orders.AddItemsToOrder(c.UserContext(), id, toItemInputs(input.Items))
	if err != nil {
		return respondError(c, h.logger, "add items failed", err)
	}

	return c.JSON(order.Snapshot())
}

func (h *OrderHandler) RemoveItems(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	var input RemoveItemsInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	itemIDs := make([]uuid.UUID, len(input.ItemIDs))
	for i, raw := range input.ItemIDs {
		itemIDs[i] = uuid.MustParse(raw)
	}

	order, err := h.orders.RemoveItemsFromOrder(c.UserContext(), id, itemIDs)
	if err != nil {
		return respondError(c, h.logger, "remove items failed", err)
	}

	return c.JSON(order.Snapshot())
}

func (h *OrderHandler) UpdateItemQuantity(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}
	itemID, ok, err := paramUUID(c, "itemId")
	if !ok {
		return err
	}

	var input UpdateQuantityInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	order, err := h.orders.UpdateItemQuantity(c.UserContext(), id, itemID, input.Quantity)
	if err != nil {
		return respondError(c, h.logger, "update item quantity failed", err)
	}

	return c.JSON(order.Snapshot())
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	var input UpdateStatusInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	status, err := domain.ParseOrderStatus(input.Status)
	if err != nil {
		return respondError(c, h.logger, "update order status failed", err)
	}

	order, err := h.orders.UpdateOrderStatus(c.UserContext(), id, status)
	if err != nil {
		return respondError(c, h.logger, "update order status failed", err)
	}

	return c.JSON(order.Snapshot())
}

// transition builds a handler for one of the single-step lifecycle endpoints.
func (h *OrderHandler) transition(action string, fn func(c *fiber.Ctx, id uuid.UUID) (*domain.Order, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := paramUUID(c, "id")
		if !ok {
			return err
		}

		order, err := fn(c, id)
		if err != nil {
			return respondError(c, h.logger, action+" failed", err)
		}

		mylogger.Info(
			c.UserContext(),
			h.logger,
			action+" succeeded",
			zap.String("order_id", id.String()),
			zap.String("status", string(order.Status())),
		)

		return c.JSON(order.Snapshot())
	}
}

func (h *OrderHandler) Confirm(c *fiber.Ctx) error {
	return h.transition("confirm order", func(c *fiber.Ctx, id uuid.UUID) (*domain.Order, error) {
		return h.orders.ConfirmOrder(c.UserContext(), id)
	})(c)
}

func (h *OrderHandler) ConfirmPayment(c *fiber.Ctx) error {
	return h.transition("confirm payment", func(c *fiber.Ctx, id uuid.UUID) (*domain.Order, error) {
		return h.orders.ConfirmPayment(c.UserContext(), id)
	})(c)
}

func (h *OrderHandler) StartPreparing(c *fiber.Ctx) error {
	return h.transition("start preparing", func(c *fiber.Ctx, id uuid.UUID) (*domain.Order, error) {
		return h.orders.StartPreparingOrder(c.UserContext(), id)
	})(c)
}

func (h *OrderHandler) MarkReady(c *fiber.Ctx) error {
	return h.transition("mark ready", func(c *fiber.Ctx, id uuid.UUID) (*domain.Order, error) {
		return h.orders.MarkOrderAsReady(c.UserContext(), id)
	})(c)
}

func (h *OrderHandler) MarkDelivered(c *fiber.Ctx) error {
	return h.transition("mark delivered", func(c *fiber.Ctx, id uuid.UUID) (*domain.Order, error) {
		return h.orders.MarkOrderAsDelivered(c.UserContext(), id)
	})(c)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	return h.transition("cancel order", func(c *fiber.Ctx, id uuid.UUID) (*domain.Order, error) {
		return h.orders.CancelOrder(c.UserContext(), id)
	})(c)
}
