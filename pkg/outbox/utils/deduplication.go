package utils

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProcessWithDeduplication runs action at most once per eventKey.
//
// The key is claimed in processed_events inside a transaction that commits only after
// action returns nil. A failing action rolls the claim back so a redelivery can retry it,
// and a concurrent delivery of the same key blocks on the claim until the first one ends.
func ProcessWithDeduplication(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger *zap.Logger,
	eventKey string,
	action func(ctx context.Context) error,
) error {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("dedup.key", eventKey))

	skipped := false
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO processed_events (event_key)
			VALUES ($1)
			ON CONFLICT (event_key) DO NOTHING
		`, eventKey)
		if err != nil {
			return fmt.Errorf("claim event %s: %w", eventKey, err)
		}

		if tag.RowsAffected() == 0 {
			skipped = true
			return nil
		}

		if err := action(ctx); err != nil {
			return fmt.Errorf("failed to process event %s: %w", eventKey, err)
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, logger, "Deduplicated processing failed", zap.String("event_key", eventKey), zap.Error(err))

		return err
	}

	if skipped {
		span.SetAttributes(attribute.Bool("dedup.skipped", true))
		mylogger.Info(ctx, logger, "Event already processed, skipping", zap.String("event_key", eventKey))
	}

	return nil
}
