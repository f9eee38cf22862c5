package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/switq/fast-food-api/pkg/metrics"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PaymentGateway interface {
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentCreated, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentState, error)
}

type ReconcileOutcome string

const (
	// OutcomeApplied means the provider status was recorded and any transition it implies was made.
	OutcomeApplied             ReconcileOutcome = "applied"
	OutcomeNoReference         ReconcileOutcome = "no_reference"
	OutcomeOrderNotFound       ReconcileOutcome = "order_not_found"
	OutcomeDuplicateApproval   ReconcileOutcome = "duplicate_approval"
	OutcomeOrderCancelled      ReconcileOutcome = "order_cancelled"
	OutcomeProviderUnavailable ReconcileOutcome = "provider_unavailable"
	// OutcomePaymentNotFound means the provider has no payment with the notified id.
	OutcomePaymentNotFound ReconcileOutcome = "payment_not_found"
)

type ReconcileResult struct {
	Outcome ReconcileOutcome
	// OrderID is uuid.Nil when no order was matched.
	OrderID uuid.UUID
}

// Benign reports whether the notification needs no follow-up.
func (r ReconcileResult) Benign() bool {
	return r.Outcome != OutcomeApplied
}

type PaymentConfig struct {
	// StrictReplay lets a repeated approval fail with an invalid transition
	// instead of being skipped.
	StrictReplay    bool
	GuestEmail      string
	PaymentMethodID string
}

type PaymentService interface {
	CreatePayment(ctx context.Context, orderID uuid.UUID) (*domain.PaymentCreated, error)
	ProcessPaymentNotification(ctx context.Context, paymentID string) (ReconcileResult, error)
}

type paymentService struct {
	orders    repository.OrderRepository
	customers repository.CustomerRepository
	gateway   PaymentGateway
	numbers   domain.OrderNumberGenerator
	cfg       PaymentConfig
	metrics   *metrics.OrderMetrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewPaymentService(
	orders repository.OrderRepository,
	customers repository.CustomerRepository,
	gateway PaymentGateway,
	numbers domain.OrderNumberGenerator,
	cfg PaymentConfig,
	m *metrics.OrderMetrics,
	logger *zap.Logger,
) PaymentService {
	if cfg.GuestEmail == "" {
		cfg.GuestEmail = "guest@fastfood.local"
	}
	if cfg.PaymentMethodID == "" {
		cfg.PaymentMethodID = "pix"
	}

	return &paymentService{
		orders:    orders,
		customers: customers,
		gateway:   gateway,
		numbers:   numbers,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("service/payment_service"),
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, orderID uuid.UUID) (*domain.PaymentCreated, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.CreatePayment")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID.String()))

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if order.Status() != domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotPending, orderID, order.Status())
	}

	created, err := s.gateway.CreatePayment(ctx, domain.PaymentRequest{
		Amount:          order.TotalAmount(),
		Description:     fmt.Sprintf("Order %s", orderID),
		OrderID:         orderID,
		CustomerEmail:   s.customerEmail(ctx, order),
		PaymentMethodID: s.cfg.PaymentMethodID,
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Payment creation failed", zap.String("order_id", orderID.String()), zap.Error(err))

		return nil, fmt.Errorf("%w: create payment for order %s: %w", domain.ErrExternalService, orderID, err)
	}

	order.AttachPayment(created.ProviderID)

	if err := s.orders.Update(ctx, order); err != nil {
		span.RecordError(err)
		return nil, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Payment created",
		zap.String("order_id", orderID.String()),
		zap.String("payment_id", created.ProviderID),
	)

	return created, nil
}

// ProcessPaymentNotification brings an order in line with the provider's view of a payment.
// Missing references, unknown payments or orders and provider outages are reported
// through the result, not as errors.
func (s *paymentService) ProcessPaymentNotification(ctx context.Context, paymentID string) (ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "PaymentService.ProcessPaymentNotification")
	defer span.End()

	span.SetAttributes(attribute.String("payment_id", paymentID))

	result, err := s.reconcile(ctx, paymentID)
	if err != nil {
		span.RecordError(err)
		s.metrics.Reconciled("failed")

		return result, err
	}

	span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
	s.metrics.Reconciled(string(result.Outcome))

	return result, nil
}

func (s *paymentService) reconcile(ctx context.Context, paymentID string) (ReconcileResult, error) {
	state, err := s.gateway.GetPaymentStatus(ctx, paymentID)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		mylogger.Warn(ctx, s.logger, "Provider does not know the notified payment, ignoring", zap.String("payment_id", paymentID))
		return ReconcileResult{Outcome: OutcomePaymentNotFound}, nil
	}
	if err != nil {
		return s.recordProviderFailure(ctx, paymentID, err)
	}

	if state.ExternalReference == "" {
		mylogger.Warn(ctx, s.logger, "Payment has no external reference, ignoring", zap.String("payment_id", paymentID))
		return ReconcileResult{Outcome: OutcomeNoReference}, nil
	}

	orderID, err := uuid.Parse(state.ExternalReference)
	if err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Payment references a malformed order id, ignoring",
			zap.String("payment_id", paymentID),
			zap.String("external_reference", state.ExternalReference),
		)

		return ReconcileResult{Outcome: OutcomeOrderNotFound}, nil
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		mylogger.Warn(
			ctx,
			s.logger,
			"Payment references an unknown order, ignoring",
			zap.String("payment_id", paymentID),
			zap.String("order_id", orderID.String()),
		)

		return ReconcileResult{Outcome: OutcomeOrderNotFound}, nil
	}
	if err != nil {
		return ReconcileResult{}, err
	}

	result := ReconcileResult{Outcome: OutcomeApplied, OrderID: orderID}

	order.RecordPaymentStatus(paymentID, state.Status)

	if state.Status.IsApproved() {
		outcome, err := s.applyApproval(ctx, order, paymentID)
		if err != nil {
			return ReconcileResult{OrderID: orderID}, err
		}
		result.Outcome = outcome
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return ReconcileResult{OrderID: orderID}, err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Payment notification reconciled",
		zap.String("payment_id", paymentID),
		zap.String("order_id", orderID.String()),
		zap.String("payment_status", string(state.Status)),
		zap.String("order_status", string(order.Status())),
		zap.String("outcome", string(result.Outcome)),
	)

	return result, nil
}

func (s *paymentService) applyApproval(ctx context.Context, order *domain.Order, paymentID string) (ReconcileOutcome, error) {
	status := order.Status()

	switch {
	case status == domain.OrderStatusCancelled:
		mylogger.Warn(
			ctx,
			s.logger,
			"Payment approved for a cancelled order",
			zap.String("payment_id", paymentID),
			zap.String("order_id", order.ID().String()),
		)

		return OutcomeOrderCancelled, nil
	case status.ReachedPayment():
		if s.cfg.StrictReplay {
			return "", order.ConfirmPayment()
		}

		mylogger.Warn(
			ctx,
			s.logger,
			"Duplicate payment approval, order already paid",
			zap.String("payment_id", paymentID),
			zap.String("order_id", order.ID().String()),
			zap.String("status", string(status)),
		)

		return OutcomeDuplicateApproval, nil
	}

	if status == domain.OrderStatusPending {
		if err := order.Confirm(ctx, s.numbers); err != nil {
			return "", err
		}
	}

	if err := order.ConfirmPayment(); err != nil {
		return "", err
	}

	return OutcomeApplied, nil
}

// recordProviderFailure marks the order tied to paymentID, if any, with an error payment status.
func (s *paymentService) recordProviderFailure(ctx context.Context, paymentID string, cause error) (ReconcileResult, error) {
	mylogger.Error(ctx, s.logger, "Payment status lookup failed", zap.String("payment_id", paymentID), zap.Error(cause))

	result := ReconcileResult{Outcome: OutcomeProviderUnavailable}

	order, err := s.orders.FindByPaymentProviderID(ctx, paymentID)
	if errors.Is(err, domain.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return result, err
	}

	result.OrderID = order.ID()
	order.RecordPaymentStatus(paymentID, domain.PaymentStatusError)

	if err := s.orders.Update(ctx, order); err != nil {
		return result, err
	}

	return result, nil
}

func (s *paymentService) customerEmail(ctx context.Context, order *domain.Order) string {
	customerID := order.CustomerID()
	if customerID == nil {
		return s.cfg.GuestEmail
	}

	customer, err := s.customers.FindByID(ctx, *customerID)
	if err != nil {
		mylogger.Warn(ctx, s.logger, "Customer lookup failed, using guest email", zap.String("customer_id", customerID.String()), zap.Error(err))
		return s.cfg.GuestEmail
	}

	return customer.Email
}
