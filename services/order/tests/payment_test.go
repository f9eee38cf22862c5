package tests

import (
	"context"
	"errors"

	"github.com/switq/fast-food-api/pkg/outbox/utils"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestPayment_ApprovalConfirmsAndNumbersOrder() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 2}},
	})
	s.Require().NoError(err)

	created, err := s.PaymentService.CreatePayment(s.Ctx, order.ID())
	s.Require().NoError(err)

	stored, err := s.Orders.FindByPaymentProviderID(s.Ctx, created.ProviderID)
	s.Require().NoError(err)
	s.Equal(order.ID(), stored.ID())

	s.Gateway.approve(created.ProviderID)

	result, err := s.PaymentService.ProcessPaymentNotification(s.Ctx, created.ProviderID)
	s.Require().NoError(err)
	s.Equal(service.OutcomeApplied, result.Outcome)

	stored, err = s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaymentConfirmed, stored.Status())
	s.Equal(domain.PaymentStatusApproved, stored.PaymentStatus())
	s.Require().NotNil(stored.OrderNumber())
	s.Equal(1, *stored.OrderNumber())

	s.requirePublished(order.ID(), "OrderStatusChanged")

	replay, err := s.PaymentService.ProcessPaymentNotification(s.Ctx, created.ProviderID)
	s.Require().NoError(err)
	s.Equal(service.OutcomeDuplicateApproval, replay.Outcome)

	stored, err = s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPaymentConfirmed, stored.Status())
	s.Equal(1, *stored.OrderNumber())
}

func (s *IntegrationTestSuite) TestPayment_ProviderOutageRecordsError() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	order, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 1}},
	})
	s.Require().NoError(err)

	created, err := s.PaymentService.CreatePayment(s.Ctx, order.ID())
	s.Require().NoError(err)

	s.Gateway.err = domain.ErrPaymentProviderDown

	result, err := s.PaymentService.ProcessPaymentNotification(s.Ctx, created.ProviderID)
	s.Require().NoError(err)
	s.Equal(service.OutcomeProviderUnavailable, result.Outcome)

	stored, err := s.Orders.FindByID(s.Ctx, order.ID())
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusPending, stored.Status())
	s.Equal(domain.PaymentStatusError, stored.PaymentStatus())
}

func (s *IntegrationTestSuite) TestPayment_UnknownReferenceIsBenign() {
	s.Gateway.states["mp-ghost"] = &domain.PaymentState{
		Status:            domain.PaymentStatusApproved,
		ExternalReference: "00000000-0000-0000-0000-000000000001",
	}

	result, err := s.PaymentService.ProcessPaymentNotification(s.Ctx, "mp-ghost")
	s.Require().NoError(err)
	s.Equal(service.OutcomeOrderNotFound, result.Outcome)
	s.True(result.Benign())
}

func (s *IntegrationTestSuite) TestDeduplication_RunsActionOncePerKey() {
	var calls int
	action := func(context.Context) error {
		calls++
		return nil
	}

	key := "order_events:event:42"
	s.Require().NoError(utils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), key, action))
	s.Require().NoError(utils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), key, action))

	s.Equal(1, calls)
	s.Equal(1, s.countRows(`SELECT COUNT(*) FROM processed_events WHERE event_key = $1`, key))
}

func (s *IntegrationTestSuite) TestDeduplication_FailedActionLeavesKeyFree() {
	boom := errors.New("boom")
	key := "order_events:0:7"

	err := utils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), key, func(context.Context) error {
		return boom
	})
	s.Require().ErrorIs(err, boom)
	s.Zero(s.countRows(`SELECT COUNT(*) FROM processed_events WHERE event_key = $1`, key))

	var ran bool
	err = utils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), key, func(context.Context) error {
		ran = true
		return nil
	})
	s.Require().NoError(err)
	s.True(ran)
}
