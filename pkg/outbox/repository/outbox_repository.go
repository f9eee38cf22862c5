package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/pkg/outbox/domain"
	"github.com/switq/fast-food-api/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// rows failing this many times are left for manual inspection
	maxAttempts = 10

	maxErrorLength = 1024
)

type outboxRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewOutboxRepository(pool *pgxpool.Pool, logger *zap.Logger) worker.OutboxRepository {
	return &outboxRepo{
		pool:   pool,
		tracer: otel.Tracer("outbox_repository"),
		logger: logger,
	}
}

// SaveOutboxEvent writes event inside the caller's transaction together with the
// trace context of ctx.
func (r *outboxRepo) SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.SaveOutboxEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("aggregate_type", event.AggregateType),
		attribute.String("aggregate_id", event.AggregateID),
		attribute.String("event_type", event.EventType),
	)

	event.CaptureTrace(ctx)

	query := `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload, headers, topic)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	var headers any
	if len(event.Headers) > 0 {
		headers = event.Headers
	}

	err := tx.QueryRow(
		ctx,
		query,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		headers,
		event.Topic,
	).Scan(&event.Id, &event.CreatedAt)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to save outbox event", zap.String("event_type", event.EventType), zap.Error(err))

		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	return nil
}

// GetUnpublishedEvents locks up to batchSize pending rows, oldest first.
// Rows locked by another worker are skipped.
func (r *outboxRepo) GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error) {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.GetUnpublishedEvents")
	defer span.End()

	span.SetAttributes(attribute.Int("batch_size", batchSize))

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, headers,
			created_at, published_at, attempts, last_error, topic
		FROM outbox
		WHERE published_at IS NULL AND attempts < $2
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, batchSize, maxAttempts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[domain.OutboxEvent])
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read unpublished events: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(events)))

	return events, nil
}

func (r *outboxRepo) MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkEventPublished")
	defer span.End()

	span.SetAttributes(attribute.Int64("event_id", eventID))

	_, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW(), last_error = NULL WHERE id = $1`, eventID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

func (r *outboxRepo) MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkEventFailed")
	defer span.End()

	if len(errMsg) > maxErrorLength {
		errMsg = errMsg[:maxErrorLength]
	}

	span.SetAttributes(
		attribute.Int64("event_id", eventID),
		attribute.String("outbox.error_message", errMsg),
	)

	_, err := tx.Exec(ctx, `UPDATE outbox SET last_error = $1, attempts = attempts + 1 WHERE id = $2`, errMsg, eventID)
	if err != nil {
		span.RecordError(err)
	}

	return err
}

// PurgePublished deletes rows published before the cutoff and reports how many went.
func (r *outboxRepo) PurgePublished(ctx context.Context, before time.Time) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.PurgePublished")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, before)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to purge published outbox rows", zap.Error(err))

		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}

	span.SetAttributes(attribute.Int64("purged", tag.RowsAffected()))

	return tag.RowsAffected(), nil
}
