package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/switq/fast-food-api/pkg/config"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/pkg/utils"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// errorBodyLimit caps how much of a failed response is kept in the error message.
const errorBodyLimit = 512

type MercadoPagoClient struct {
	baseURL         string
	accessToken     string
	notificationURL string
	httpClient      *http.Client
	cb              *gobreaker.CircuitBreaker
	logger          *zap.Logger
	tracer          trace.Tracer
}

func NewMercadoPagoClient(cfg config.Payment, logger *zap.Logger) *MercadoPagoClient {
	return &MercadoPagoClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		accessToken:     cfg.AccessToken,
		notificationURL: cfg.NotificationURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb:     utils.NewBreaker("mercadopago", logger, isClientError),
		logger: logger,
		tracer: otel.Tracer("infrastructure/mercadopago"),
	}
}

// statusError is a non-2xx reply from the provider.
type statusError struct {
	method string
	path   string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.method, e.path, e.code, e.body)
}

// isClientError matches 4xx replies other than timeouts and rate limiting.
// The provider answered, so they say nothing about its health.
func isClientError(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}

	return se.code >= 400 && se.code < 500 &&
		se.code != http.StatusRequestTimeout && se.code != http.StatusTooManyRequests
}

type payer struct {
	Email string `json:"email"`
}

type createPaymentRequest struct {
	TransactionAmount json.Number `json:"transaction_amount"`
	Description       string      `json:"description"`
	PaymentMethodID   string      `json:"payment_method_id"`
	ExternalReference string      `json:"external_reference"`
	NotificationURL   string      `json:"notification_url,omitempty"`
	Payer             payer       `json:"payer"`
}

type paymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	ExternalReference  string      `json:"external_reference"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (c *MercadoPagoClient) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentCreated, error) {
	ctx, span := c.tracer.Start(ctx, "MercadoPagoClient.CreatePayment")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", req.OrderID.String()))

	body := createPaymentRequest{
		TransactionAmount: json.Number(req.Amount.StringFixed(2)),
		Description:       req.Description,
		PaymentMethodID:   req.PaymentMethodID,
		ExternalReference: req.OrderID.String(),
		NotificationURL:   c.notificationURL,
		Payer:             payer{Email: req.CustomerEmail},
	}

	headers := http.Header{}
	headers.Set("X-Idempotency-Key", req.OrderID.String())

	resp, err := utils.ExecuteWithBreaker(c.cb, func() (*paymentResponse, error) {
		return c.do(ctx, http.MethodPost, "/v1/payments", body, headers)
	})
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, c.logger, "Mercado Pago create payment failed", zap.String("order_id", req.OrderID.String()), zap.Error(err))

		return nil, c.wrap(err)
	}

	return &domain.PaymentCreated{
		ProviderID:   resp.ID.String(),
		QRCode:       resp.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: resp.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

func (c *MercadoPagoClient) GetPaymentStatus(ctx context.Context, paymentID string) (*domain.PaymentState, error) {
	ctx, span := c.tracer.Start(ctx, "MercadoPagoClient.GetPaymentStatus")
	defer span.End()

	span.SetAttributes(attribute.String("payment_id", paymentID))

	resp, err := utils.ExecuteWithBreaker(c.cb, func() (*paymentResponse, error) {
		return c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, nil)
	})
	if err != nil {
		span.RecordError(err)

		var se *statusError
		if errors.As(err, &se) && (se.code == http.StatusNotFound || se.code == http.StatusBadRequest) {
			mylogger.Warn(ctx, c.logger, "Mercado Pago does not know this payment", zap.String("payment_id", paymentID), zap.Int("status", se.code))
			return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
		}

		mylogger.Warn(ctx, c.logger, "Mercado Pago payment lookup failed", zap.String("payment_id", paymentID), zap.Error(err))

		return nil, c.wrap(err)
	}

	return &domain.PaymentState{
		Status:            domain.PaymentStatus(strings.ToLower(resp.Status)),
		ExternalReference: resp.ExternalReference,
	}, nil
}

func (c *MercadoPagoClient) do(ctx context.Context, method, path string, body any, headers http.Header) (*paymentResponse, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
		return nil, &statusError{method: method, path: path, code: res.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	var out paymentResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &out, nil
}

func (c *MercadoPagoClient) wrap(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrPaymentProviderDown, err)
}
