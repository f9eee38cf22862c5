package tests

import (
	"time"

	"github.com/google/uuid"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/service"
)

func (s *IntegrationTestSuite) TestLifecycle_StatusChangesArePublished() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 1}},
	})
	s.Require().NoError(err)

	steps := []func() (*domain.Order, error){
		func() (*domain.Order, error) { return s.OrderService.ConfirmOrder(s.Ctx, order.ID()) },
		func() (*domain.Order, error) { return s.OrderService.ConfirmPayment(s.Ctx, order.ID()) },
		func() (*domain.Order, error) { return s.OrderService.StartPreparingOrder(s.Ctx, order.ID()) },
		func() (*domain.Order, error) { return s.OrderService.MarkOrderAsReady(s.Ctx, order.ID()) },
		func() (*domain.Order, error) { return s.OrderService.MarkOrderAsDelivered(s.Ctx, order.ID()) },
	}
	for _, step := range steps {
		_, err := step()
		s.Require().NoError(err)
	}

	stored, err := s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusDelivered, stored.Status())
	s.Require().NotNil(stored.OrderNumber())
	s.Equal(1, *stored.OrderNumber())

	s.Equal(5, s.countRows(
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'OrderStatusChanged'`,
		order.ID().String(),
	))

	query := `
		SELECT COUNT(*)
		FROM outbox
		WHERE aggregate_id = $1 AND event_type = 'OrderStatusChanged' AND published_at IS NULL
	`
	s.Require().Eventually(func() bool {
		var pending int
		err := s.DbPool.QueryRow(s.Ctx, query, order.ID().String()).Scan(&pending)
		return err == nil && pending == 0
	}, 10*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestLifecycle_InvalidTransitionKeepsRow() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 1}},
	})
	s.Require().NoError(err)

	_, err = s.OrderService.StartPreparingOrder(s.Ctx, order.ID())
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)

	stored, err := s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, stored.Status())
	s.Zero(s.countRows(
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = 'OrderStatusChanged'`,
		order.ID().String(),
	))
}

func (s *IntegrationTestSuite) TestCancelOrder_DoesNotRestoreStock() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 3}},
	})
	s.Require().NoError(err)

	cancelled, err := s.OrderService.CancelOrder(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusCancelled, cancelled.Status())
	s.Equal(7, s.stockOf(burger.ID))

	s.requirePublished(order.ID(), "OrderStatusChanged")

	_, err = s.OrderService.CancelOrder(s.Ctx, order.ID())
	s.Require().ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *IntegrationTestSuite) TestItemMutations_RoundTripThroughPostgres() {
	burger := s.seedProduct("X-Burger", "18.50", 10)
	fries := s.seedProduct("Fries", "9.90", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 1}},
	})
	s.Require().NoError(err)

	order, err = s.OrderService.AddItemsToOrder(s.Ctx, order.ID(), []service.ItemInput{
		{ProductID: fries.ID, Quantity: 2},
	})
	s.Require().NoError(err)
	s.Require().Len(order.Items(), 2)

	friesLine := order.Items()[1].ID
	order, err = s.OrderService.UpdateItemQuantity(s.Ctx, order.ID(), friesLine, 3)
	s.Require().NoError(err)
	s.Equal("48.20", order.TotalAmount().StringFixed(2))

	burgerLine := order.Items()[0].ID
	_, err = s.OrderService.RemoveItemsFromOrder(s.Ctx, order.ID(), []uuid.UUID{burgerLine})
	s.Require().NoError(err)

	stored, err := s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Require().Len(stored.Items(), 1)
	s.Equal(fries.ID, stored.Items()[0].ProductID)
	s.Equal(3, stored.Items()[0].Quantity)
	s.Equal("29.70", stored.TotalAmount().StringFixed(2))
}
