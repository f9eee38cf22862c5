package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const customerColumns = `id, name, email, cpf, created_at, updated_at`

type customerRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewCustomerRepository(pool *pgxpool.Pool, logger *zap.Logger) CustomerRepository {
	return &customerRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("customer_repository"),
	}
}

func (r *customerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.Create")
	defer span.End()

	span.SetAttributes(attribute.String("customer_id", customer.ID.String()))

	query := `
		INSERT INTO customers (id, name, email, cpf, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, customer.ID, customer.Name, customer.Email, customer.CPF, customer.CreatedAt, customer.UpdatedAt)
	if err != nil {
		span.RecordError(err)

		if isPgError(err, pgUniqueViolation) {
			mylogger.Warn(ctx, r.logger, "Customer already exists", zap.String("email", customer.Email))
			return fmt.Errorf("%w: %s", domain.ErrDuplicateCustomer, customer.Email)
		}

		mylogger.Error(ctx, r.logger, "Failed to insert customer", zap.Error(err))
		return fmt.Errorf("failed to insert customer: %w", err)
	}

	return nil
}

func (r *customerRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.FindByID")
	defer span.End()

	span.SetAttributes(attribute.String("customer_id", id.String()))

	customer, err := r.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query customer", zap.String("customer_id", id.String()), zap.Error(err))

		return nil, fmt.Errorf("failed to query customer: %w", err)
	}

	return customer, nil
}

func (r *customerRepo) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.FindByEmail")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))

	customer, err := r.findOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, email)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}

	return customer, nil
}

func (r *customerRepo) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.List")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	customers, err := pgx.CollectRows(rows, scanCustomerRow)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to scan customers: %w", err)
	}

	return customers, nil
}

func (r *customerRepo) findOne(ctx context.Context, query string, arg any) (*domain.Customer, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}

	customer, err := pgx.CollectExactlyOneRow(rows, scanCustomerRow)
	if err != nil {
		return nil, err
	}

	return &customer, nil
}

func scanCustomerRow(row pgx.CollectableRow) (domain.Customer, error) {
	var c domain.Customer

	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.CPF, &c.CreatedAt, &c.UpdatedAt)

	return c, err
}
