package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	generalDomain "github.com/switq/fast-food-api/pkg/domain"
	"github.com/switq/fast-food-api/pkg/kafka"
	"github.com/switq/fast-food-api/pkg/mylogger"
	outboxUtils "github.com/switq/fast-food-api/pkg/outbox/utils"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

// Deduplicator runs action unless eventKey was already handled.
type Deduplicator func(ctx context.Context, eventKey string, action func(ctx context.Context) error) error

// PostgresDeduplicator records handled keys in processed_events.
func PostgresDeduplicator(pool *pgxpool.Pool, logger *zap.Logger) Deduplicator {
	return func(ctx context.Context, eventKey string, action func(ctx context.Context) error) error {
		return outboxUtils.ProcessWithDeduplication(ctx, pool, logger, eventKey, action)
	}
}

type Consumer struct {
	payments service.PaymentService
	dedup    Deduplicator
	logger   *zap.Logger
}

func NewConsumer(payments service.PaymentService, dedup Deduplicator, logger *zap.Logger) *Consumer {
	return &Consumer{
		payments: payments,
		dedup:    dedup,
		logger:   logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string, groupID, topic string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{topic},
		c.processMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

type eventWrapper struct {
	Event   string          `json:"event"`
	EventID *int64          `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Debug(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
		zap.Int64("offset", msg.Offset),
	)

	var wrapper eventWrapper
	if err := json.Unmarshal(msg.Value, &wrapper); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper, skipping", zap.Error(err))
		return nil
	}

	if wrapper.Event != generalDomain.EventPaymentNotification {
		mylogger.Warn(ctx, c.logger, "Ignored event type", zap.String("event_type", wrapper.Event))
		return nil
	}

	var event generalDomain.PaymentNotificationEvent
	if err := json.Unmarshal(wrapper.Payload, &event); err != nil || event.PaymentID == "" {
		mylogger.Error(ctx, c.logger, "Invalid payment notification payload, skipping", zap.Error(err))
		return nil
	}

	return c.dedup(ctx, eventKey(msg, wrapper), func(ctx context.Context) error {
		result, err := c.payments.ProcessPaymentNotification(ctx, event.PaymentID)
		if err != nil {
			return err
		}

		mylogger.Info(
			ctx,
			c.logger,
			"Payment notification consumed",
			zap.String("payment_id", event.PaymentID),
			zap.String("outcome", string(result.Outcome)),
		)

		return nil
	})
}

// eventKey prefers the publisher's event id and falls back to the message position.
func eventKey(msg *sarama.ConsumerMessage, wrapper eventWrapper) string {
	if wrapper.EventID != nil {
		return fmt.Sprintf("%s:event:%d", msg.Topic, *wrapper.EventID)
	}

	return fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
}
