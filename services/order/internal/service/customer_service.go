package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CustomerService interface {
	Register(ctx context.Context, name, email string, cpf *string) (*domain.Customer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	FindByEmail(ctx context.Context, email string) (*domain.Customer, error)
	List(ctx context.Context) ([]domain.Customer, error)
}

type customerService struct {
	customers repository.CustomerRepository
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewCustomerService(customers repository.CustomerRepository, logger *zap.Logger) CustomerService {
	return &customerService{
		customers: customers,
		logger:    logger,
		tracer:    otel.Tracer("service/customer_service"),
	}
}

func (s *customerService) Register(ctx context.Context, name, email string, cpf *string) (*domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.Register")
	defer span.End()

	customer, err := domain.NewCustomer(name, email, cpf)
	if err != nil {
		return nil, err
	}

	if err := s.customers.Create(ctx, customer); err != nil {
		if errors.Is(err, domain.ErrDuplicateCustomer) {
			mylogger.Warn(ctx, s.logger, "Customer already registered", zap.String("email", customer.Email))
			return nil, err
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error registering customer", zap.Error(err))

		return nil, err
	}

	mylogger.Info(ctx, s.logger, "Customer registered", zap.String("customer_id", customer.ID.String()))

	return customer, nil
}

func (s *customerService) FindByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.FindByID")
	defer span.End()

	return s.customers.FindByID(ctx, id)
}

func (s *customerService) FindByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.FindByEmail")
	defer span.End()

	return s.customers.FindByEmail(ctx, email)
}

func (s *customerService) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.List")
	defer span.End()

	list, err := s.customers.List(ctx)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Error listing customers", zap.Error(err))

		return nil, err
	}

	return list, nil
}
