package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// order numbers wrap after this value so they stay short on the kitchen display
const maxOrderNumber = 999

type pgOrderNumbers struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

// NewOrderNumberRepository keeps one counter row per business day.
func NewOrderNumberRepository(pool *pgxpool.Pool, logger *zap.Logger) domain.OrderNumberGenerator {
	return &pgOrderNumbers{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("order_number_repository"),
	}
}

func (r *pgOrderNumbers) Next(ctx context.Context, dateKey string) (int, error) {
	ctx, span := r.tracer.Start(ctx, "OrderNumberRepository.Next")
	defer span.End()

	span.SetAttributes(attribute.String("date_key", dateKey))

	query := `
		INSERT INTO order_number_sequences (business_day, value)
		VALUES ($1::date, 1)
		ON CONFLICT (business_day)
		DO UPDATE SET value = order_number_sequences.value % $2 + 1
		RETURNING value
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, dateKey, maxOrderNumber).Scan(&n); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to advance order number", zap.String("date_key", dateKey), zap.Error(err))

		return 0, fmt.Errorf("failed to advance order number: %w", err)
	}

	return n, nil
}

type redisOrderNumbers struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger *zap.Logger
}

// NewRedisOrderNumbers counts with INCR on a per-day key that expires after two days.
func NewRedisOrderNumbers(client *redis.Client, logger *zap.Logger) domain.OrderNumberGenerator {
	return &redisOrderNumbers{
		client: client,
		ttl:    48 * time.Hour,
		logger: logger,
		tracer: otel.Tracer("order_number_redis"),
	}
}

func (r *redisOrderNumbers) Next(ctx context.Context, dateKey string) (int, error) {
	ctx, span := r.tracer.Start(ctx, "RedisOrderNumbers.Next")
	defer span.End()

	key := "order_number:" + dateKey
	span.SetAttributes(attribute.String("key", key))

	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to increment order number", zap.String("key", key), zap.Error(err))

		return 0, fmt.Errorf("failed to increment order number: %w", err)
	}

	if n == 1 {
		if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
			mylogger.Warn(ctx, r.logger, "Failed to set order number expiry", zap.String("key", key), zap.Error(err))
		}
	}

	return int((n-1)%maxOrderNumber) + 1, nil
}
