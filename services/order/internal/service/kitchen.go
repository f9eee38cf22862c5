package service

import (
	"context"
	"slices"

	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var kitchenStatuses = []domain.OrderStatus{
	domain.OrderStatusReady,
	domain.OrderStatusPreparing,
	domain.OrderStatusPaymentConfirmed,
}

func kitchenPriority(s domain.OrderStatus) int {
	switch s {
	case domain.OrderStatusReady:
		return 1
	case domain.OrderStatusPreparing:
		return 2
	case domain.OrderStatusPaymentConfirmed:
		return 3
	default:
		return 4
	}
}

// RankKitchenQueue keeps the orders the kitchen still has to act on, ready ones first,
// oldest first within a status. The input slice is left untouched.
func RankKitchenQueue(orders []*domain.Order) []*domain.Order {
	queue := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if o != nil && slices.Contains(kitchenStatuses, o.Status()) {
			queue = append(queue, o)
		}
	}

	slices.SortStableFunc(queue, func(a, b *domain.Order) int {
		if pa, pb := kitchenPriority(a.Status()), kitchenPriority(b.Status()); pa != pb {
			return pa - pb
		}

		return a.CreatedAt().Compare(b.CreatedAt())
	})

	return queue
}

type KitchenService struct {
	orders repository.OrderRepository
	logger *zap.Logger
	tracer trace.Tracer
}

func NewKitchenService(orders repository.OrderRepository, logger *zap.Logger) *KitchenService {
	return &KitchenService{
		orders: orders,
		logger: logger,
		tracer: otel.Tracer("service/kitchen"),
	}
}

func (s *KitchenService) Queue(ctx context.Context) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "KitchenService.Queue")
	defer span.End()

	orders, err := s.orders.FindByStatus(ctx, kitchenStatuses...)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to load kitchen orders", zap.Error(err))

		return nil, err
	}

	queue := RankKitchenQueue(orders)
	span.SetAttributes(attribute.Int("queue.size", len(queue)))

	return queue, nil
}
