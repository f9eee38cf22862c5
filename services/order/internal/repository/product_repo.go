package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const productColumns = `id, name, description, category, price, is_available, stock, created_at, updated_at`

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("product_repository"),
	}
}

func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", product.ID.String()))

	query := `
		INSERT INTO products (id, name, description, category, price, is_available, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Category,
		product.Price,
		product.IsAvailable,
		product.Stock,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)

		if isPgError(err, pgUniqueViolation) {
			mylogger.Warn(ctx, r.logger, "Product already exists", zap.String("name", product.Name))
			return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, product.Name)
		}

		mylogger.Error(ctx, r.logger, "Failed to insert product", zap.Error(err))
		return fmt.Errorf("failed to insert product: %w", err)
	}

	return nil
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", id.String()))

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query product", zap.String("product_id", id.String()), zap.Error(err))

		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	product, err := pgx.CollectExactlyOneRow(rows, scanProductRow)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	return &product, nil
}

func (r *productRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindByIDs")
	defer span.End()

	span.SetAttributes(attribute.Int("ids_count", len(ids)))

	result := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProductRow)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}

	for i := range products {
		result[products[i].ID] = &products[i]
	}

	return result, nil
}

func (r *productRepo) List(ctx context.Context, category string) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	span.SetAttributes(attribute.String("category", category))

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category = $1)
		ORDER BY category, name
	`

	rows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to list products", zap.Error(err))

		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProductRow)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}

	return products, nil
}

func (r *productRepo) Update(ctx context.Context, product *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", product.ID.String()))

	query := `
		UPDATE products
		SET name = $2, description = $3, category = $4, price = $5, is_available = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.pool.QueryRow(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Category,
		product.Price,
		product.IsAvailable,
	).Scan(&product.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, product.ID)
		case isPgError(err, pgUniqueViolation):
			return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, product.Name)
		}

		mylogger.Error(ctx, r.logger, "Failed to update product", zap.String("product_id", product.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

func (r *productRepo) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.UpdateStock")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_id", id.String()),
		attribute.Int("stock", stock),
	)

	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrValidation)
	}

	commandTag, err := r.pool.Exec(ctx, `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`, id, stock)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to update stock", zap.String("product_id", id.String()), zap.Error(err))

		return fmt.Errorf("failed to update stock: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	return nil
}

// ReserveStock runs one conditional decrement per product inside a single transaction.
// A decrement that matches no row rolls back the whole batch.
func (r *productRepo) ReserveStock(ctx context.Context, reservations []domain.StockReservation) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.ReserveStock")
	defer span.End()

	merged := domain.MergeReservations(reservations)
	span.SetAttributes(attribute.Int("products_count", len(merged)))

	err := withTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		query := `
			UPDATE products
			SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1
				AND stock >= $2
		`

		for _, reservation := range merged {
			commandTag, err := tx.Exec(ctx, query, reservation.ProductID, reservation.Quantity)
			if err != nil {
				return fmt.Errorf("error decreasing stock for product %s: %w", reservation.ProductID, err)
			}

			if commandTag.RowsAffected() == 0 {
				return r.explainMissedDecrement(ctx, tx, reservation.ProductID)
			}
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Warn(ctx, r.logger, "Stock reservation failed", zap.Error(err))

		return err
	}

	return nil
}

func (r *productRepo) ReleaseStock(ctx context.Context, reservations []domain.StockReservation) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.ReleaseStock")
	defer span.End()

	merged := domain.MergeReservations(reservations)
	span.SetAttributes(attribute.Int("products_count", len(merged)))

	err := withTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		query := `
			UPDATE products
			SET stock = stock + $2, updated_at = NOW()
			WHERE id = $1
		`

		for _, reservation := range merged {
			commandTag, err := tx.Exec(ctx, query, reservation.ProductID, reservation.Quantity)
			if err != nil {
				return fmt.Errorf("error increasing stock for product %s: %w", reservation.ProductID, err)
			}

			if commandTag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, reservation.ProductID)
			}
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Stock release failed", zap.Error(err))

		return err
	}

	return nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", id.String()))

	commandTag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)

		if isPgError(err, pgForeignKeyViolation) {
			return fmt.Errorf("%w: %s", domain.ErrProductInUse, id)
		}

		mylogger.Error(ctx, r.logger, "Failed to delete product", zap.String("product_id", id.String()), zap.Error(err))
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	return nil
}

func (r *productRepo) explainMissedDecrement(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var name string
	err := tx.QueryRow(ctx, `SELECT name FROM products WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to query product %s: %w", id, err)
	}

	return fmt.Errorf("%w for product %s", domain.ErrInsufficientStock, name)
}

func scanProductRow(row pgx.CollectableRow) (domain.Product, error) {
	var p domain.Product

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.IsAvailable,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)

	return p, err
}
