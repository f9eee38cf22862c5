package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const lookupConcurrency = 8

// OrderDetails is an order together with the catalog and customer records it references.
// Customer is nil for anonymous orders and when the customer could not be loaded.
type OrderDetails struct {
	Order    *domain.Order
	Customer *domain.Customer
	Products map[uuid.UUID]*domain.Product
}

func (s *orderService) GetOrderWithDetails(ctx context.Context, id uuid.UUID) (*OrderDetails, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrderWithDetails")
	defer span.End()

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	details, err := s.enrich(ctx, []*domain.Order{order}, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &details[0], nil
}

func (s *orderService) ListOrdersWithProducts(ctx context.Context) ([]OrderDetails, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrdersWithProducts")
	defer span.End()

	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return s.enrich(ctx, orders, false)
}

func (s *orderService) ListOrdersWithDetails(ctx context.Context) ([]OrderDetails, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrdersWithDetails")
	defer span.End()

	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return s.enrich(ctx, orders, true)
}

// enrich looks every distinct product and customer up once. A failed product lookup
// fails the whole call; a failed customer lookup leaves Customer nil.
func (s *orderService) enrich(ctx context.Context, orders []*domain.Order, withCustomers bool) ([]OrderDetails, error) {
	productIDs := make(map[uuid.UUID]struct{})
	customerIDs := make(map[uuid.UUID]struct{})

	for _, order := range orders {
		for _, item := range order.Items() {
			productIDs[item.ProductID] = struct{}{}
		}
		if withCustomers && order.CustomerID() != nil {
			customerIDs[*order.CustomerID()] = struct{}{}
		}
	}

	products, err := s.resolveProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	customers := s.resolveCustomers(ctx, customerIDs)

	result := make([]OrderDetails, len(orders))
	for i, order := range orders {
		details := OrderDetails{
			Order:    order,
			Products: make(map[uuid.UUID]*domain.Product),
		}

		for _, item := range order.Items() {
			details.Products[item.ProductID] = products[item.ProductID]
		}

		if id := order.CustomerID(); id != nil {
			details.Customer = customers[*id]
		}

		result[i] = details
	}

	return result, nil
}

func (s *orderService) resolveProducts(ctx context.Context, ids map[uuid.UUID]struct{}) (map[uuid.UUID]*domain.Product, error) {
	var (
		mu       sync.Mutex
		products = make(map[uuid.UUID]*domain.Product, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)

	for id := range ids {
		g.Go(func() error {
			product, err := s.products.FindByID(gctx, id)
			if err != nil {
				return err
			}

			mu.Lock()
			products[id] = product
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		mylogger.Warn(ctx, s.logger, "Product lookup failed while enriching orders", zap.Error(err))
		return nil, err
	}

	return products, nil
}

func (s *orderService) resolveCustomers(ctx context.Context, ids map[uuid.UUID]struct{}) map[uuid.UUID]*domain.Customer {
	var (
		mu        sync.Mutex
		customers = make(map[uuid.UUID]*domain.Customer, len(ids))
	)

	var g errgroup.Group
	g.SetLimit(lookupConcurrency)

	for id := range ids {
		g.Go(func() error {
			customer, err := s.customers.FindByID(ctx, id)
			if err != nil {
				mylogger.Warn(ctx, s.logger, "Customer lookup failed, continuing without it", zap.String("customer_id", id.String()), zap.Error(err))
				return nil
			}

			mu.Lock()
			customers[id] = customer
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return customers
}
