package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/switq/fast-food-api/pkg/config"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *MercadoPagoClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewMercadoPagoClient(config.Payment{
		BaseURL:         srv.URL + "/",
		AccessToken:     "test-token",
		NotificationURL: "https://example.com/webhook",
		Timeout:         time.Second,
	}, zap.NewNop())
}

func TestCreatePayment_SendsOrderReference(t *testing.T) {
	orderID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, orderID.String(), r.Header.Get("X-Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, orderID.String(), body["external_reference"])
		assert.Equal(t, "pix", body["payment_method_id"])
		assert.EqualValues(t, 25.5, body["transaction_amount"])
		assert.Equal(t, "https://example.com/webhook", body["notification_url"])
		assert.Equal(t, map[string]any{"email": "ana@example.com"}, body["payer"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 123456789,
			"status": "pending",
			"point_of_interaction": {"transaction_data": {"qr_code": "000201", "qr_code_base64": "aGVsbG8="}}
		}`))
	})

	created, err := client.CreatePayment(t.Context(), domain.PaymentRequest{
		Amount:          decimal.RequireFromString("25.50"),
		Description:     "Order",
		OrderID:         orderID,
		CustomerEmail:   "ana@example.com",
		PaymentMethodID: "pix",
	})
	require.NoError(t, err)
	assert.Equal(t, "123456789", created.ProviderID)
	assert.Equal(t, "000201", created.QRCode)
	assert.Equal(t, "aGVsbG8=", created.QRCodeBase64)
}

func TestGetPaymentStatus_NormalizesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/987", r.URL.Path)

		_, _ = w.Write([]byte(`{"id": 987, "status": "APPROVED", "external_reference": "ref-1"}`))
	})

	state, err := client.GetPaymentStatus(t.Context(), "987")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, state.Status)
	assert.Equal(t, "ref-1", state.ExternalReference)
}

func TestGetPaymentStatus_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})

	_, err := client.GetPaymentStatus(t.Context(), "987")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPaymentProviderDown))
	assert.True(t, errors.Is(err, domain.ErrExternalService))
	assert.Contains(t, err.Error(), "500")
}

func TestGetPaymentStatus_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for range 10 {
		_, err := client.GetPaymentStatus(t.Context(), "1")
		require.Error(t, err)
	}

	assert.Equal(t, 5, calls)
}

func TestGetPaymentStatus_UnknownPaymentsKeepBreakerClosed(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v1/payments/987" {
			http.Error(w, `{"message":"Payment not found"}`, http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(`{"id": 987, "status": "approved", "external_reference": "ref-1"}`))
	})

	for range 5 {
		_, err := client.GetPaymentStatus(t.Context(), "bogus")
		require.ErrorIs(t, err, domain.ErrPaymentNotFound)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.False(t, errors.Is(err, domain.ErrExternalService))
	}

	state, err := client.GetPaymentStatus(t.Context(), "987")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusApproved, state.Status)
	assert.Equal(t, 6, calls)
}

func TestIsClientError(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusNotFound, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			err := &statusError{method: http.MethodGet, path: "/v1/payments/1", code: tc.code}
			assert.Equal(t, tc.want, isClientError(err))
		})
	}

	assert.False(t, isClientError(errors.New("connection refused")))
}
