package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/service"
)

func orderAt(status domain.OrderStatus, createdAt time.Time) *domain.Order {
	return domain.RestoreOrder(domain.OrderSnapshot{
		ID:            uuid.New(),
		Status:        status,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	})
}

func TestRankKitchenQueue(t *testing.T) {
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	paidOld := orderAt(domain.OrderStatusPaymentConfirmed, base)
	readyNew := orderAt(domain.OrderStatusReady, base.Add(5*time.Minute))
	delivered := orderAt(domain.OrderStatusDelivered, base.Add(time.Minute))
	preparing := orderAt(domain.OrderStatusPreparing, base.Add(2*time.Minute))
	pending := orderAt(domain.OrderStatusPending, base.Add(-time.Minute))
	readyOld := orderAt(domain.OrderStatusReady, base.Add(3*time.Minute))
	paidNew := orderAt(domain.OrderStatusPaymentConfirmed, base.Add(4*time.Minute))

	input := []*domain.Order{paidOld, readyNew, delivered, preparing, pending, readyOld, paidNew}

	ranked := service.RankKitchenQueue(input)

	want := []*domain.Order{readyOld, readyNew, preparing, paidOld, paidNew}
	require.Len(t, ranked, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID(), ranked[i].ID(), "position %d", i)
	}

	assert.Equal(t, paidOld, input[0], "input must not be reordered")
}

func TestRankKitchenQueue_Empty(t *testing.T) {
	assert.Empty(t, service.RankKitchenQueue(nil))
	assert.Empty(t, service.RankKitchenQueue([]*domain.Order{
		orderAt(domain.OrderStatusCancelled, time.Now()),
	}))
}

func TestKitchenService_Queue(t *testing.T) {
	burger := product(t, "X-Burger", "10.00", 10)
	e := newEnv(t, false, burger)
	ctx := context.Background()

	first := e.createOrder(t, service.ItemInput{ProductID: burger.ID, Quantity: 1})
	second := e.createOrder(t, service.ItemInput{ProductID: burger.ID, Quantity: 1})
	e.createOrder(t, service.ItemInput{ProductID: burger.ID, Quantity: 1})

	for _, id := range []uuid.UUID{first.ID(), second.ID()} {
		_, err := e.svc.ConfirmOrder(ctx, id)
		require.NoError(t, err)
		_, err = e.svc.ConfirmPayment(ctx, id)
		require.NoError(t, err)
	}

	_, err := e.svc.StartPreparingOrder(ctx, second.ID())
	require.NoError(t, err)

	queue, err := e.kitchen.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, second.ID(), queue[0].ID())
	assert.Equal(t, first.ID(), queue[1].ID())
}
