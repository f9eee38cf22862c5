package tests

import (
	"errors"
	"sync"
	"time"

	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/service"
)

func (s *IntegrationTestSuite) TestCreateOrder_PersistsItemsAndReservesStock() {
	burger := s.seedProduct("X-Burger", "18.50", 10)
	fries := s.seedProduct("Fries", "9.90", 5)
	customer := s.seedCustomer("ana@example.com")
	customerID := customer.ID

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		CustomerID: &customerID,
		Items: []service.ItemInput{
			{ProductID: burger.ID, Quantity: 2, Observation: "no onion"},
			{ProductID: fries.ID, Quantity: 1},
		},
	})
	s.Require().NoError(err)

	s.Equal(8, s.stockOf(burger.ID))
	s.Equal(4, s.stockOf(fries.ID))

	stored, err := s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, stored.Status())
	s.Equal("46.90", stored.TotalAmount().StringFixed(2))
	s.Require().Len(stored.Items(), 2)
	s.Equal(burger.ID, stored.Items()[0].ProductID)
	s.Equal("no onion", stored.Items()[0].Observation)
	s.Equal(fries.ID, stored.Items()[1].ProductID)
	s.Require().NotNil(stored.CustomerID())
	s.Equal(customer.ID, *stored.CustomerID())

	s.requirePublished(order.ID(), "OrderCreated")

	var (
		created int
		total   string
		lines   int
	)
	err = s.DbPool.QueryRow(s.Ctx, `
		SELECT COUNT(*) OVER (), payload->'payload'->>'total_amount', jsonb_array_length(payload->'payload'->'items')
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = 'OrderCreated'
	`, order.ID().String()).Scan(&created, &total, &lines)
	s.Require().NoError(err)
	s.Equal(1, created)
	s.Equal("46.90", total)
	s.Equal(2, lines)
}

func (s *IntegrationTestSuite) TestCreateOrder_InsufficientStockLeavesNothingBehind() {
	burger := s.seedProduct("X-Burger", "18.50", 10)
	soda := s.seedProduct("Soda", "6.00", 1)

	_, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{
			{ProductID: burger.ID, Quantity: 1},
			{ProductID: soda.ID, Quantity: 2},
		},
	})
	s.Require().ErrorIs(err, domain.ErrInsufficientStock)

	s.Equal(10, s.stockOf(burger.ID))
	s.Equal(1, s.stockOf(soda.ID))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM orders`))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM order_items`))
	s.Zero(s.countRows(`SELECT COUNT(*) FROM outbox`))
}

func (s *IntegrationTestSuite) TestCreateOrder_RepeatedLinesCheckedTogether() {
	soda := s.seedProduct("Soda", "6.00", 3)

	_, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{
			{ProductID: soda.ID, Quantity: 2},
			{ProductID: soda.ID, Quantity: 2},
		},
	})
	s.Require().ErrorIs(err, domain.ErrInsufficientStock)
	s.Equal(3, s.stockOf(soda.ID))
}

func (s *IntegrationTestSuite) TestCreateOrder_LastUnitGoesToExactlyOneOrder() {
	pie := s.seedProduct("Apple Pie", "7.00", 1)

	const buyers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
				Items: []service.ItemInput{{ProductID: pie.ID, Quantity: 1}},
			})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(buyers-1, rejected)
	s.Zero(s.stockOf(pie.ID))
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM orders`))
}

func (s *IntegrationTestSuite) TestDeleteOrder_EmitsEventAndCascadesItems() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 1}},
	})
	s.Require().NoError(err)

	s.Require().NoError(s.OrderService.DeleteOrder(s.Ctx, order.ID()))

	_, err = s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().ErrorIs(err, domain.ErrOrderNotFound)
	s.Zero(s.countRows(`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID()))

	s.requirePublished(order.ID(), "OrderDeleted")
}

func (s *IntegrationTestSuite) TestOutbox_PurgeRemovesOnlyOldPublishedRows() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 1}},
	})
	s.Require().NoError(err)
	s.requirePublished(order.ID(), "OrderCreated")

	_, err = s.DbPool.Exec(s.Ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload, topic)
		VALUES ('Order', 'pending-row', 'OrderCreated', '{}', 'unused')
	`)
	s.Require().NoError(err)

	_, err = s.DbPool.Exec(s.Ctx, `UPDATE outbox SET published_at = NOW() - INTERVAL '8 days' WHERE aggregate_id = $1`, order.ID().String())
	s.Require().NoError(err)

	purged, err := s.OutboxRepo.PurgePublished(s.Ctx, time.Now().Add(-7*24*time.Hour))
	s.Require().NoError(err)
	s.EqualValues(1, purged)

	s.Zero(s.countRows(`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1`, order.ID().String()))
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM outbox WHERE aggregate_id = 'pending-row'`))
}
