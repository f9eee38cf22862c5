package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/pkg/outbox/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	SaveOutboxEvent(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	GetUnpublishedEvents(ctx context.Context, tx pgx.Tx, batchSize int) ([]*domain.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, tx pgx.Tx, eventID int64) error
	MarkEventFailed(ctx context.Context, tx pgx.Tx, eventID int64, errMsg string) error
	PurgePublished(ctx context.Context, before time.Time) (int64, error)
}

type KafkaProducer interface {
	ProduceMessage(ctx context.Context, topic, key string, message any) error
}

// OutboxProcessor polls the outbox and hands pending rows to Kafka keyed by aggregate id,
// so events of one order keep their relative order on a partition.
type OutboxProcessor struct {
	pool      *pgxpool.Pool
	repo      OutboxRepository
	producer  KafkaProducer
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	retention time.Duration
	tracer    trace.Tracer
}

type Option func(*OutboxProcessor)

func WithBatchSize(n int) Option {
	return func(p *OutboxProcessor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(p *OutboxProcessor) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithRetention makes the processor delete rows published longer than d ago.
// Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(p *OutboxProcessor) {
		if d > 0 {
			p.retention = d
		}
	}
}

func NewOutboxProcessor(
	pool *pgxpool.Pool,
	repo OutboxRepository,
	producer KafkaProducer,
	logger *zap.Logger,
	opts ...Option,
) *OutboxProcessor {
	p := &OutboxProcessor{
		pool:      pool,
		repo:      repo,
		producer:  producer,
		logger:    logger,
		batchSize: 50,
		interval:  500 * time.Millisecond,
		tracer:    otel.Tracer("outbox-worker"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start blocks until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		p.logger,
		"Starting outbox processor",
		zap.Int("batch_size", p.batchSize),
		zap.Duration("interval", p.interval),
		zap.Duration("retention", p.retention),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var purge <-chan time.Time
	if p.retention > 0 {
		purgeTicker := time.NewTicker(min(p.retention, time.Hour))
		defer purgeTicker.Stop()
		purge = purgeTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				mylogger.Error(ctx, p.logger, "Error processing outbox batch", zap.Error(err))
			}
		case <-purge:
			p.purge(ctx)
		}
	}
}

// ProcessBatch publishes one batch and returns how many rows were published.
// A row that fails to publish has its attempt counter bumped and stays pending.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.ProcessBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(cleanupCtx, p.logger, "Outbox worker failed to rollback transaction", zap.Error(err))
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	span.SetAttributes(attribute.Int("outbox.batch", len(events)))

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			mylogger.Warn(
				ctx,
				p.logger,
				"Outbox event publish failed",
				zap.Int64("id", event.Id),
				zap.String("event_type", event.EventType),
				zap.Int64("attempts", event.Attempts+1),
				zap.Error(err),
			)

			if dbErr := p.repo.MarkEventFailed(ctx, tx, event.Id, err.Error()); dbErr != nil {
				return 0, fmt.Errorf("mark event %d failed: %w", event.Id, dbErr)
			}

			continue
		}

		if err := p.repo.MarkEventPublished(ctx, tx, event.Id); err != nil {
			return 0, fmt.Errorf("mark event %d published: %w", event.Id, err)
		}
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}

	mylogger.Debug(ctx, p.logger, "Outbox batch published", zap.Int("published", published), zap.Int("batch", len(events)))

	return published, nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *domain.OutboxEvent) error {
	ctx, span := p.tracer.Start(
		event.TraceContext(ctx),
		"OutboxProcessor.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.Int64("outbox.event_id", event.Id),
			attribute.String("messaging.destination", event.Topic),
		),
	)
	defer span.End()

	message, err := event.Message()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode event payload: %w", err)
	}

	if err := p.producer.ProduceMessage(ctx, event.Topic, event.AggregateID, message); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (p *OutboxProcessor) purge(ctx context.Context) {
	n, err := p.repo.PurgePublished(ctx, time.Now().Add(-p.retention))
	if err != nil {
		return
	}
	if n > 0 {
		mylogger.Info(ctx, p.logger, "Purged published outbox rows", zap.Int64("count", n))
	}
}
