package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ItemInput struct {
	ProductID   uuid.UUID
	Quantity    int
	Observation string
}

// StockCoordinator checks requested items against the catalog and reserves stock for them.
type StockCoordinator struct {
	products repository.ProductRepository
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewStockCoordinator(products repository.ProductRepository, logger *zap.Logger) *StockCoordinator {
	return &StockCoordinator{
		products: products,
		logger:   logger,
		tracer:   otel.Tracer("stock_coordinator"),
	}
}

// Validate builds order items priced from the catalog. Each product must exist, be
// available and hold enough stock for the total quantity requested across the batch.
// Nothing is written.
func (c *StockCoordinator) Validate(ctx context.Context, inputs []ItemInput) ([]domain.OrderItem, []domain.StockReservation, error) {
	ctx, span := c.tracer.Start(ctx, "StockCoordinator.Validate")
	defer span.End()

	span.SetAttributes(attribute.Int("items_count", len(inputs)))

	items, err := c.buildItems(ctx, inputs, true)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	reservations := make([]domain.StockReservation, len(items))
	for i, item := range items {
		reservations[i] = domain.StockReservation{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	return items, reservations, nil
}

// ValidateAvailability checks existence and availability only.
func (c *StockCoordinator) ValidateAvailability(ctx context.Context, inputs []ItemInput) ([]domain.OrderItem, error) {
	ctx, span := c.tracer.Start(ctx, "StockCoordinator.ValidateAvailability")
	defer span.End()

	items, err := c.buildItems(ctx, inputs, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return items, nil
}

// Reserve takes the whole batch out of stock in one atomic store call.
func (c *StockCoordinator) Reserve(ctx context.Context, reservations []domain.StockReservation) error {
	ctx, span := c.tracer.Start(ctx, "StockCoordinator.Reserve")
	defer span.End()

	if len(reservations) == 0 {
		return nil
	}

	if err := c.products.ReserveStock(ctx, reservations); err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, c.logger, "Stock reservation rejected", zap.Error(err))

		return err
	}

	return nil
}

// Release gives reserved stock back. Used only to undo a reservation whose order could not be saved.
func (c *StockCoordinator) Release(ctx context.Context, reservations []domain.StockReservation) error {
	if len(reservations) == 0 {
		return nil
	}

	return c.products.ReleaseStock(ctx, reservations)
}

func (c *StockCoordinator) buildItems(ctx context.Context, inputs []ItemInput, checkStock bool) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(inputs))
	products := make(map[uuid.UUID]*domain.Product, len(inputs))
	requested := make(map[uuid.UUID]int, len(inputs))

	for _, input := range inputs {
		product, ok := products[input.ProductID]
		if !ok {
			found, err := c.products.FindByID(ctx, input.ProductID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					mylogger.Error(ctx, c.logger, "Product lookup failed", zap.String("product_id", input.ProductID.String()), zap.Error(err))
				}
				return nil, err
			}

			product = found
			products[input.ProductID] = product
		}

		if !product.IsAvailable {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, product.Name)
		}

		item, err := domain.NewOrderItem(product.ID, input.Quantity, product.Price, input.Observation)
		if err != nil {
			return nil, err
		}

		// the same product may appear on several lines of one order;
		// compare against what is left so the running total never overflows
		already := requested[product.ID]
		if checkStock && item.Quantity > product.Stock-already {
			return nil, fmt.Errorf(
				"%w for product %s (requested %d, available %d)",
				domain.ErrInsufficientStock, product.Name, already+item.Quantity, product.Stock,
			)
		}
		requested[product.ID] = already + item.Quantity

		items = append(items, item)
	}

	return items, nil
}
