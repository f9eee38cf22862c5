package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository/memory"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

// spyProducts counts the calls that touch stock.
type spyProducts struct {
	*memory.ProductStore
	reserveCalls atomic.Int32
	updateCalls  atomic.Int32
	findCalls    atomic.Int32
}

func (s *spyProducts) ReserveStock(ctx context.Context, r []domain.StockReservation) error {
	s.reserveCalls.Add(1)
	return s.ProductStore.ReserveStock(ctx, r)
}

func (s *spyProducts) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	s.updateCalls.Add(1)
	return s.ProductStore.UpdateStock(ctx, id, stock)
}

func (s *spyProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s.findCalls.Add(1)
	return s.ProductStore.FindByID(ctx, id)
}

type fakeGateway struct {
	mu        sync.Mutex
	states    map[string]*domain.PaymentState
	statusErr error
	createErr error
	created   []domain.PaymentRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{states: map[string]*domain.PaymentState{}}
}

func (g *fakeGateway) set(paymentID string, status domain.PaymentStatus, ref string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[paymentID] = &domain.PaymentState{Status: status, ExternalReference: ref}
}

func (g *fakeGateway) CreatePayment(_ context.Context, req domain.PaymentRequest) (*domain.PaymentCreated, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)

	return &domain.PaymentCreated{ProviderID: "pay-" + req.OrderID.String()[:8], QRCode: "qr", QRCodeBase64: "cXI="}, nil
}

func (g *fakeGateway) GetPaymentStatus(_ context.Context, paymentID string) (*domain.PaymentState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.statusErr != nil {
		return nil, g.statusErr
	}
	state, ok := g.states[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
	}
	copied := *state

	return &copied, nil
}

type env struct {
	orders    *memory.OrderStore
	products  *spyProducts
	customers *memory.CustomerStore
	numbers   *memory.OrderNumbers
	gateway   *fakeGateway
	svc       service.OrderService
	payments  service.PaymentService
	kitchen   *service.KitchenService
}

func newEnv(t *testing.T, strict bool, products ...domain.Product) *env {
	t.Helper()

	e := &env{
		orders:    memory.NewOrderStore(),
		products:  &spyProducts{ProductStore: memory.NewProductStore(products...)},
		customers: memory.NewCustomerStore(),
		numbers:   memory.NewOrderNumbers(),
		gateway:   newFakeGateway(),
	}

	logger := zap.NewNop()
	e.svc = service.NewOrderService(e.orders, e.products, e.customers, e.numbers, nil, logger)
	e.payments = service.NewPaymentService(
		e.orders,
		e.customers,
		e.gateway,
		e.numbers,
		service.PaymentConfig{StrictReplay: strict},
		nil,
		logger,
	)
	e.kitchen = service.NewKitchenService(e.orders, logger)

	return e
}

func product(t *testing.T, name, price string, stock int) domain.Product {
	t.Helper()

	p, err := domain.NewProduct(name, "", "lanche", decimal.RequireFromString(price), stock)
	require.NoError(t, err)

	return *p
}

func (e *env) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()

	p, err := e.products.ProductStore.FindByID(context.Background(), id)
	require.NoError(t, err)

	return p.Stock
}

func (e *env) createOrder(t *testing.T, items ...service.ItemInput) *domain.Order {
	t.Helper()

	order, err := e.svc.CreateOrder(context.Background(), service.CreateOrderInput{Items: items})
	require.NoError(t, err)

	return order
}
