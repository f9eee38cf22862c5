package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/switq/fast-food-api/pkg/metrics"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CreateOrderInput struct {
	CustomerID *uuid.UUID
	Items      []ItemInput
}

type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error)
	ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error)

	AddItemsToOrder(ctx context.Context, id uuid.UUID, items []ItemInput) (*domain.Order, error)
	RemoveItemsFromOrder(ctx context.Context, id uuid.UUID, itemIDs []uuid.UUID) (*domain.Order, error)
	UpdateItemQuantity(ctx context.Context, id, itemID uuid.UUID, quantity int) (*domain.Order, error)

	ConfirmOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	StartPreparingOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	MarkOrderAsReady(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	MarkOrderAsDelivered(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	GetOrderWithDetails(ctx context.Context, id uuid.UUID) (*OrderDetails, error)
	ListOrdersWithProducts(ctx context.Context) ([]OrderDetails, error)
	ListOrdersWithDetails(ctx context.Context) ([]OrderDetails, error)
}

type orderService struct {
	orders    repository.OrderRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
	stock     *StockCoordinator
	numbers   domain.OrderNumberGenerator
	metrics   *metrics.OrderMetrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	numbers domain.OrderNumberGenerator,
	m *metrics.OrderMetrics,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orders:    orders,
		products:  products,
		customers: customers,
		stock:     NewStockCoordinator(products, logger),
		numbers:   numbers,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("order_service"),
	}
}

// CreateOrder persists an empty order, validates every item, reserves stock for the
// whole batch and then saves the order with its items. A failed validation or
// reservation removes the empty order again.
func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	span.SetAttributes(attribute.Int("items_count", len(input.Items)))

	if input.CustomerID != nil {
		if _, err := s.customers.FindByID(ctx, *input.CustomerID); err != nil {
			span.RecordError(err)
			mylogger.Warn(ctx, s.logger, "Customer lookup failed", zap.String("customer_id", input.CustomerID.String()), zap.Error(err))

			return nil, err
		}
	}

	order := domain.NewOrder(input.CustomerID)
	span.SetAttributes(attribute.String("order_id", order.ID().String()))

	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	items, reservations, err := s.stock.Validate(ctx, input.Items)
	if err != nil {
		s.rejectOrder(ctx, order.ID(), err)
		return nil, err
	}

	if err := s.stock.Reserve(ctx, reservations); err != nil {
		s.rejectOrder(ctx, order.ID(), err)
		return nil, err
	}

	if len(items) > 0 {
		if err := order.AddItems(items...); err != nil {
			s.releaseStock(ctx, order.ID(), reservations)
			s.rejectOrder(ctx, order.ID(), err)
			return nil, err
		}
	}

	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		s.releaseStock(ctx, order.ID(), reservations)
		s.rejectOrder(ctx, order.ID(), err)

		return nil, fmt.Errorf("failed to save order items: %w", err)
	}

	s.metrics.OrderCreated()
	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID().String()),
		zap.String("total", order.TotalAmount().StringFixed(2)),
	)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	return s.orders.FindByID(ctx, id)
}

func (s *orderService) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	return s.orders.FindAll(ctx)
}

func (s *orderService) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrdersByCustomer")
	defer span.End()

	return s.orders.FindByCustomerID(ctx, customerID)
}

func (s *orderService) ListOrdersByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrdersByStatus")
	defer span.End()

	return s.orders.FindByStatus(ctx, status)
}

// AddItemsToOrder loads the order, then checks that the products exist and are
// available. Stock is only reserved when an order is created.
func (s *orderService) AddItemsToOrder(ctx context.Context, id uuid.UUID, inputs []ItemInput) (*domain.Order, error) {
	return s.mutate(ctx, "AddItemsToOrder", id, func(order *domain.Order) error {
		if err := order.RequirePending(); err != nil {
			return err
		}

		items, err := s.stock.ValidateAvailability(ctx, inputs)
		if err != nil {
			return err
		}

		return order.AddItems(items...)
	})
}

func (s *orderService) RemoveItemsFromOrder(ctx context.Context, id uuid.UUID, itemIDs []uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, "RemoveItemsFromOrder", id, func(order *domain.Order) error {
		return order.RemoveItems(itemIDs...)
	})
}

func (s *orderService) UpdateItemQuantity(ctx context.Context, id, itemID uuid.UUID, quantity int) (*domain.Order, error) {
	return s.mutate(ctx, "UpdateItemQuantity", id, func(order *domain.Order) error {
		return order.UpdateItemQuantity(itemID, quantity)
	})
}

func (s *orderService) ConfirmOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, "ConfirmOrder", id, func(order *domain.Order) error {
		return order.Confirm(ctx, s.numbers)
	})
}

func (s *orderService) ConfirmPayment(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, "ConfirmPayment", id, (*domain.Order).ConfirmPayment)
}

func (s *orderService) StartPreparingOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, "StartPreparingOrder", id, (*domain.Order).StartPreparing)
}

func (s *orderService) MarkOrderAsReady(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, "MarkOrderAsReady", id, (*domain.Order).MarkAsReady)
}

func (s *orderService) MarkOrderAsDelivered(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, "MarkOrderAsDelivered", id, (*domain.Order).MarkAsDelivered)
}

func (s *orderService) CancelOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.mutate(ctx, "CancelOrder", id, (*domain.Order).Cancel)
}

// UpdateOrderStatus dispatches to the transition that leads to status. PENDING is not a target.
func (s *orderService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	return s.mutate(ctx, "UpdateOrderStatus", id, func(order *domain.Order) error {
		switch status {
		case domain.OrderStatusConfirmed:
			return order.Confirm(ctx, s.numbers)
		case domain.OrderStatusPaymentConfirmed:
			return order.ConfirmPayment()
		case domain.OrderStatusPreparing:
			return order.StartPreparing()
		case domain.OrderStatusReady:
			return order.MarkAsReady()
		case domain.OrderStatusDelivered:
			return order.MarkAsDelivered()
		case domain.OrderStatusCancelled:
			return order.Cancel()
		default:
			return &domain.TransitionError{
				Action:  "update status of",
				Current: order.Status(),
				Reason:  fmt.Sprintf("%q is not a valid target status", status),
			}
		}
	})
}

func (s *orderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.DeleteOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id.String()))

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if order.Status() != domain.OrderStatusPending {
		return fmt.Errorf("%w: cannot delete order %s in %s status", domain.ErrOrderNotPending, id, order.Status())
	}

	if err := s.orders.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	mylogger.Info(ctx, s.logger, "Order deleted", zap.String("order_id", id.String()))
	return nil
}

// mutate loads the order, applies fn and persists the result. Errors from fn are returned unchanged.
func (s *orderService) mutate(ctx context.Context, op string, id uuid.UUID, fn func(order *domain.Order) error) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService."+op)
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id.String()))

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	previous := order.Status()

	if err := fn(order); err != nil {
		span.RecordError(err)
		mylogger.Warn(
			ctx,
			s.logger,
			"Order operation rejected",
			zap.String("operation", op),
			zap.String("order_id", id.String()),
			zap.String("status", string(previous)),
			zap.Error(err),
		)

		return nil, err
	}

	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if order.Status() != previous {
		s.metrics.Transition(string(order.Status()))
		mylogger.Info(
			ctx,
			s.logger,
			"Order status changed",
			zap.String("order_id", id.String()),
			zap.String("from", string(previous)),
			zap.String("to", string(order.Status())),
		)
	}

	return order, nil
}

func (s *orderService) rejectOrder(ctx context.Context, id uuid.UUID, cause error) {
	s.metrics.OrderRejected(rejectionReason(cause))
	mylogger.Warn(ctx, s.logger, "Order rejected", zap.String("order_id", id.String()), zap.Error(cause))

	if err := s.orders.Delete(ctx, id); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to remove rejected order", zap.String("order_id", id.String()), zap.Error(err))
	}
}

func (s *orderService) releaseStock(ctx context.Context, id uuid.UUID, reservations []domain.StockReservation) {
	if err := s.stock.Release(ctx, reservations); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to release reserved stock", zap.String("order_id", id.String()), zap.Error(err))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	default:
		return "other"
	}
}
