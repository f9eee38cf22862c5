package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CreateProductInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
}

type ProductService interface {
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, category string) ([]domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input domain.UpdateProductInput) (*domain.Product, error)
	UpdateStock(ctx context.Context, id uuid.UUID, stock int) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	products repository.ProductRepository
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewProductService(products repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		products: products,
		logger:   logger,
		tracer:   otel.Tracer("service/product_service"),
	}
}

func (s *productService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()

	product, err := domain.NewProduct(input.Name, input.Description, input.Category, input.Price, input.Stock)
	if err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error creating product", zap.String("name", product.Name), zap.Error(err))

		return nil, fmt.Errorf("error creating product: %w", err)
	}

	return product, nil
}

func (s *productService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindByID")
	defer span.End()

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			mylogger.Warn(ctx, s.logger, "Product not found", zap.String("product_id", id.String()))
			return nil, err
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error getting product", zap.Error(err))

		return nil, fmt.Errorf("error getting product by id: %w", err)
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, category string) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.List")
	defer span.End()

	list, err := s.products.List(ctx, category)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error listing products", zap.Error(err))

		return nil, fmt.Errorf("error listing products: %w", err)
	}

	return list, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, input domain.UpdateProductInput) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer span.End()

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := input.Apply(product); err != nil {
		return nil, err
	}

	if err := s.products.Update(ctx, product); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error updating product", zap.String("product_id", id.String()), zap.Error(err))

		return nil, err
	}

	return product, nil
}

func (s *productService) UpdateStock(ctx context.Context, id uuid.UUID, stock int) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.UpdateStock")
	defer span.End()

	if stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative, got %d", domain.ErrValidation, stock)
	}

	if err := s.products.UpdateStock(ctx, id, stock); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return s.products.FindByID(ctx, id)
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()

	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrProductInUse) {
			mylogger.Warn(ctx, s.logger, "Product not deleted", zap.String("product_id", id.String()), zap.Error(err))
			return err
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error deleting product", zap.Error(err))

		return err
	}

	return nil
}
