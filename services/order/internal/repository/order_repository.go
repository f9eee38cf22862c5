package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	events "github.com/switq/fast-food-api/pkg/domain"
	"github.com/switq/fast-food-api/pkg/mylogger"
	outboxDomain "github.com/switq/fast-food-api/pkg/outbox/domain"
	"github.com/switq/fast-food-api/pkg/outbox/worker"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	orderAggregateType = "Order"

	orderColumns = `id, customer_id, status, payment_status, payment_provider_id, order_number, created_at, updated_at`
)

type orderRepo struct {
	pool        *pgxpool.Pool
	outboxRepo  worker.OutboxRepository
	eventsTopic string
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewOrderRepository stores orders and writes their lifecycle events to the outbox
// in the same transaction.
func NewOrderRepository(pool *pgxpool.Pool, outboxRepo worker.OutboxRepository, eventsTopic string, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:        pool,
		outboxRepo:  outboxRepo,
		eventsTopic: eventsTopic,
		logger:      logger,
		tracer:      otel.Tracer("order_repository"),
	}
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	snap := order.Snapshot()
	span.SetAttributes(
		attribute.String("order_id", snap.ID.String()),
		attribute.Int("items_count", len(snap.Items)),
	)

	err := withTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		announced := len(snap.Items) > 0

		query := `
			INSERT INTO orders (id, customer_id, status, payment_status, total_amount, payment_provider_id, order_number, announced, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`

		if _, err := tx.Exec(
			ctx,
			query,
			snap.ID,
			snap.CustomerID,
			string(snap.Status),
			string(snap.PaymentStatus),
			snap.TotalAmount,
			snap.PaymentProviderID,
			snap.OrderNumber,
			announced,
			snap.CreatedAt,
			snap.UpdatedAt,
		); err != nil {
			if isPgError(err, pgForeignKeyViolation) {
				return fmt.Errorf("%w: %v", domain.ErrCustomerNotFound, snap.CustomerID)
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}

		if err := r.insertItems(ctx, tx, snap.ID, snap.Items); err != nil {
			return err
		}

		if !announced {
			return nil
		}

		return r.emit(ctx, tx, snap.ID, events.EventOrderCreated, orderCreatedEvent(snap))
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to create order", zap.String("order_id", snap.ID.String()), zap.Error(err))

		return err
	}

	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id.String()))

	orders, err := r.findOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}

	return orders[0], nil
}

func (r *orderRepo) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindByCustomerID")
	defer span.End()

	span.SetAttributes(attribute.String("customer_id", customerID.String()))

	orders, err := r.findOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at ASC`, customerID)
	if err != nil {
		span.RecordError(err)
	}

	return orders, err
}

func (r *orderRepo) FindAll(ctx context.Context) ([]*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindAll")
	defer span.End()

	orders, err := r.findOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at ASC`)
	if err != nil {
		span.RecordError(err)
	}

	return orders, err
}

func (r *orderRepo) FindByStatus(ctx context.Context, statuses ...domain.OrderStatus) ([]*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindByStatus")
	defer span.End()

	names := make([]string, len(statuses))
	for i, status := range statuses {
		names[i] = string(status)
	}
	span.SetAttributes(attribute.StringSlice("statuses", names))

	orders, err := r.findOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = ANY($1) ORDER BY created_at ASC`, names)
	if err != nil {
		span.RecordError(err)
	}

	return orders, err
}

func (r *orderRepo) FindByPaymentProviderID(ctx context.Context, providerID string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindByPaymentProviderID")
	defer span.End()

	span.SetAttributes(attribute.String("payment_provider_id", providerID))

	orders, err := r.findOrders(
		ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_provider_id = $1 ORDER BY updated_at DESC LIMIT 1`,
		providerID,
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: no order for payment %s", domain.ErrOrderNotFound, providerID)
	}

	return orders[0], nil
}

// Update overwrites the order row and replaces its items. The first save that carries
// items publishes OrderCreated; a status change is published as OrderStatusChanged.
func (r *orderRepo) Update(ctx context.Context, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Update")
	defer span.End()

	snap := order.Snapshot()
	span.SetAttributes(
		attribute.String("order_id", snap.ID.String()),
		attribute.String("status", string(snap.Status)),
	)

	err := withTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		var (
			previous  string
			announced bool
		)
		err := tx.QueryRow(ctx, `SELECT status, announced FROM orders WHERE id = $1 FOR UPDATE`, snap.ID).
			Scan(&previous, &announced)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, snap.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		query := `
			UPDATE orders
			SET customer_id = $2,
				status = $3,
				payment_status = $4,
				total_amount = $5,
				payment_provider_id = $6,
				order_number = $7,
				updated_at = $8
			WHERE id = $1
		`

		if _, err := tx.Exec(
			ctx,
			query,
			snap.ID,
			snap.CustomerID,
			string(snap.Status),
			string(snap.PaymentStatus),
			snap.TotalAmount,
			snap.PaymentProviderID,
			snap.OrderNumber,
			snap.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, snap.ID); err != nil {
			return fmt.Errorf("failed to clear order items: %w", err)
		}

		if err := r.insertItems(ctx, tx, snap.ID, snap.Items); err != nil {
			return err
		}

		if !announced && len(snap.Items) > 0 {
			if _, err := tx.Exec(ctx, `UPDATE orders SET announced = TRUE WHERE id = $1`, snap.ID); err != nil {
				return fmt.Errorf("failed to mark order announced: %w", err)
			}
			if err := r.emit(ctx, tx, snap.ID, events.EventOrderCreated, orderCreatedEvent(snap)); err != nil {
				return err
			}
		}

		if previous == string(snap.Status) {
			return nil
		}

		return r.emit(ctx, tx, snap.ID, events.EventOrderStatusChanged, events.OrderStatusChangedEvent{
			OrderID:       snap.ID.String(),
			OrderNumber:   snap.OrderNumber,
			From:          previous,
			To:            string(snap.Status),
			PaymentStatus: string(snap.PaymentStatus),
			ChangedAt:     snap.UpdatedAt,
		})
	})
	if err != nil {
		span.RecordError(err)

		if errors.Is(err, domain.ErrOrderNotFound) {
			mylogger.Warn(ctx, r.logger, "Order not found", zap.String("order_id", snap.ID.String()))
		} else {
			mylogger.Error(ctx, r.logger, "Failed to update order", zap.String("order_id", snap.ID.String()), zap.Error(err))
		}

		return err
	}

	return nil
}

func (r *orderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id.String()))

	err := withTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		var announced bool
		err := tx.QueryRow(ctx, `DELETE FROM orders WHERE id = $1 RETURNING announced`, id).Scan(&announced)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}

		// consumers never heard of an order that was rejected before it got items
		if !announced {
			return nil
		}

		return r.emit(ctx, tx, id, events.EventOrderDeleted, events.OrderDeletedEvent{
			OrderID:   id.String(),
			DeletedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Failed to delete order", zap.String("order_id", id.String()), zap.Error(err))

		return err
	}

	return nil
}

func (r *orderRepo) insertItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, position, quantity, unit_price, observation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(query, item.ID, orderID, item.ProductID, i, item.Quantity, item.UnitPrice, item.Observation)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: order %s references an unknown product", domain.ErrProductNotFound, orderID)
		}
		return fmt.Errorf("failed to insert order items: %w", err)
	}

	return nil
}

func (r *orderRepo) emit(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, eventType string, payload any) error {
	event, err := outboxDomain.NewEvent(orderAggregateType, orderID.String(), eventType, r.eventsTopic, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	return r.outboxRepo.SaveOutboxEvent(ctx, tx, event)
}

func (r *orderRepo) findOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to query orders", zap.Error(err))
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	snapshots, err := pgx.CollectRows(rows, scanOrderRow)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to scan orders", zap.Error(err))
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}

	if len(snapshots) == 0 {
		return []*domain.Order{}, nil
	}

	ids := make([]uuid.UUID, len(snapshots))
	for i, snap := range snapshots {
		ids[i] = snap.ID
	}

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to load order items", zap.Error(err))
		return nil, err
	}

	orders := make([]*domain.Order, len(snapshots))
	for i, snap := range snapshots {
		snap.Items = items[snap.ID]
		orders[i] = domain.RestoreOrder(snap)
	}

	return orders, nil
}

func scanOrderRow(row pgx.CollectableRow) (domain.OrderSnapshot, error) {
	var (
		snap          domain.OrderSnapshot
		status        string
		paymentStatus string
	)

	err := row.Scan(
		&snap.ID,
		&snap.CustomerID,
		&status,
		&paymentStatus,
		&snap.PaymentProviderID,
		&snap.OrderNumber,
		&snap.CreatedAt,
		&snap.UpdatedAt,
	)

	snap.Status = domain.OrderStatus(status)
	snap.PaymentStatus = domain.PaymentStatus(paymentStatus)

	return snap, err
}

func loadItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, observation
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`

	rows, err := q.Query(ctx, query, uuidStrings(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item    domain.OrderItem
			orderID uuid.UUID
		)

		if err := rows.Scan(
			&item.ID,
			&orderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Observation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		item.OrderID = &orderID
		result[orderID] = append(result[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return result, nil
}

func orderCreatedEvent(snap domain.OrderSnapshot) events.OrderCreatedEvent {
	event := events.OrderCreatedEvent{
		OrderID:     snap.ID.String(),
		TotalAmount: snap.TotalAmount.StringFixed(2),
		Items:       make([]events.OrderItem, len(snap.Items)),
		CreatedAt:   snap.CreatedAt,
	}

	if snap.CustomerID != nil {
		customerID := snap.CustomerID.String()
		event.CustomerID = &customerID
	}

	for i, item := range snap.Items {
		event.Items[i] = events.OrderItem{
			ID:          item.ID.String(),
			ProductID:   item.ProductID.String(),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Observation: item.Observation,
		}
	}

	return event
}
