package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/switq/fast-food-api/pkg/metrics"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository/memory"
	"github.com/switq/fast-food-api/services/order/internal/service"
	transport "github.com/switq/fast-food-api/services/order/internal/transport/http"
	"github.com/switq/fast-food-api/services/order/internal/transport/http/handler"
	"go.uber.org/zap"
)

type stubGateway struct {
	states map[string]*domain.PaymentState
	err    error
}

func (g *stubGateway) CreatePayment(_ context.Context, req domain.PaymentRequest) (*domain.PaymentCreated, error) {
	return &domain.PaymentCreated{ProviderID: "mp-1", QRCode: "qr"}, nil
}

func (g *stubGateway) GetPaymentStatus(_ context.Context, id string) (*domain.PaymentState, error) {
	if g.err != nil {
		return nil, g.err
	}
	state, ok := g.states[id]
	if !ok {
		return nil, errors.New("unknown payment")
	}
	return state, nil
}

type testApp struct {
	app      *fiber.App
	products *memory.ProductStore
	gateway  *stubGateway
	burger   domain.Product
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	burger, err := domain.NewProduct("X-Burger", "", "lanche", decimal.RequireFromString("10.00"), 5)
	require.NoError(t, err)

	logger := zap.NewNop()
	orders := memory.NewOrderStore()
	products := memory.NewProductStore(*burger)
	customers := memory.NewCustomerStore()
	numbers := memory.NewOrderNumbers()
	gateway := &stubGateway{states: map[string]*domain.PaymentState{}}

	registry := prometheus.NewRegistry()
	m := metrics.NewOrderMetrics(registry, "test")

	orderService := service.NewOrderService(orders, products, customers, numbers, m, logger)
	paymentService := service.NewPaymentService(orders, customers, gateway, numbers, service.PaymentConfig{}, m, logger)

	app := fiber.New()
	transport.RegisterRoutes(app, &transport.Handlers{
		Order:    handler.NewOrderHandler(orderService, logger),
		Payment:  handler.NewPaymentHandler(paymentService, logger),
		Kitchen:  handler.NewKitchenHandler(service.NewKitchenService(orders, logger), logger),
		Product:  handler.NewProductHandler(service.NewProductService(products, logger), logger),
		Customer: handler.NewCustomerHandler(service.NewCustomerService(customers, logger), logger),
	}, transport.Options{Metrics: m, Gatherer: registry})

	return &testApp{app: app, products: products, gateway: gateway, burger: *burger}
}

func (a *testApp) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func (a *testApp) createOrder(t *testing.T, quantity int) domain.OrderSnapshot {
	t.Helper()

	code, body := a.do(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"product_id": a.burger.ID.String(), "quantity": quantity}},
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	var snap domain.OrderSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))

	return snap
}

func TestCreateOrder_HTTP(t *testing.T) {
	a := newTestApp(t)

	snap := a.createOrder(t, 2)
	assert.Equal(t, domain.OrderStatusPending, snap.Status)
	assert.Equal(t, "20.00", snap.TotalAmount.StringFixed(2))
	require.Len(t, snap.Items, 1)

	code, body := a.do(t, http.MethodGet, "/orders/"+snap.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), snap.ID.String())
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed product id", map[string]any{"items": []map[string]any{{"product_id": "x", "quantity": 1}}}, http.StatusBadRequest},
		{"no items", map[string]any{"items": []map[string]any{}}, http.StatusBadRequest},
		{"unknown product", map[string]any{"items": []map[string]any{{"product_id": uuid.NewString(), "quantity": 1}}}, http.StatusNotFound},
		{"insufficient stock", map[string]any{"items": []map[string]any{{"product_id": a.burger.ID.String(), "quantity": 6}}}, http.StatusUnprocessableEntity},
		{"quantity above line limit", map[string]any{"items": []map[string]any{{"product_id": a.burger.ID.String(), "quantity": 10001}}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := a.do(t, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.want, code, string(body))
		})
	}
}

func TestOrderTransitions_HTTP(t *testing.T) {
	a := newTestApp(t)
	snap := a.createOrder(t, 1)
	base := "/orders/" + snap.ID.String()

	code, _ := a.do(t, http.MethodPost, base+"/prepare", nil)
	assert.Equal(t, http.StatusConflict, code)

	for _, step := range []string{"/confirm", "/confirm-payment", "/prepare"} {
		code, body := a.do(t, http.MethodPost, base+step, nil)
		require.Equal(t, http.StatusOK, code, step+": "+string(body))
	}

	code, body := a.do(t, http.MethodGet, "/kitchen/queue", nil)
	require.Equal(t, http.StatusOK, code)

	var queue []domain.OrderSnapshot
	require.NoError(t, json.Unmarshal(body, &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, domain.OrderStatusPreparing, queue[0].Status)

	code, _ = a.do(t, http.MethodPatch, base+"/status", map[string]string{"status": "ready"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.do(t, http.MethodPatch, base+"/status", map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = a.do(t, http.MethodGet, "/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPaymentWebhook_AlwaysOK(t *testing.T) {
	a := newTestApp(t)
	snap := a.createOrder(t, 1)

	a.gateway.states["55"] = &domain.PaymentState{Status: domain.PaymentStatusApproved, ExternalReference: snap.ID.String()}

	code, body := a.do(t, http.MethodPost, "/webhooks/payment", map[string]any{
		"type": "payment",
		"data": map[string]string{"id": "55"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "applied")

	code, body = a.do(t, http.MethodGet, "/orders/"+snap.ID.String(), nil)
	require.Equal(t, http.StatusOK, code)
	var stored domain.OrderSnapshot
	require.NoError(t, json.Unmarshal(body, &stored))
	assert.Equal(t, domain.OrderStatusPaymentConfirmed, stored.Status)

	code, _ = a.do(t, http.MethodPost, "/webhooks/payment?topic=payment&id=56", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.do(t, http.MethodPost, "/webhooks/payment", map[string]any{"type": "merchant_order"})
	assert.Equal(t, http.StatusOK, code)

	a.gateway.err = errors.New("boom")
	code, _ = a.do(t, http.MethodPost, "/webhooks/payment?type=payment&data.id=55", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCreatePayment_HTTP(t *testing.T) {
	a := newTestApp(t)
	snap := a.createOrder(t, 1)

	code, body := a.do(t, http.MethodPost, "/orders/"+snap.ID.String()+"/payment", nil)
	require.Equal(t, http.StatusCreated, code, string(body))

	var created domain.PaymentCreated
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "mp-1", created.ProviderID)
}

func TestCatalogAndCustomers_HTTP(t *testing.T) {
	a := newTestApp(t)

	code, body := a.do(t, http.MethodPost, "/products", map[string]any{
		"name": "Fries", "category": "acompanhamento", "price": "7.50", "stock": 3,
	})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, body = a.do(t, http.MethodGet, "/products?category=acompanhamento", nil)
	require.Equal(t, http.StatusOK, code)
	var list []domain.Product
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Fries", list[0].Name)

	code, _ = a.do(t, http.MethodPatch, "/products/"+list[0].ID.String()+"/stock", map[string]int{"stock": 9})
	assert.Equal(t, http.StatusOK, code)

	code, body = a.do(t, http.MethodPost, "/customers", map[string]any{"name": "Ana", "email": "ana@example.com"})
	require.Equal(t, http.StatusCreated, code, string(body))

	code, _ = a.do(t, http.MethodPost, "/customers", map[string]any{"name": "Ana", "email": "ana@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = a.do(t, http.MethodPost, "/customers", map[string]any{"name": "Ana", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestApp(t)
	a.createOrder(t, 1)

	code, _ := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body := a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "test_orders_created_total 1")
	assert.Contains(t, string(body), "test_http_requests_total")
}
