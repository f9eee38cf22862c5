package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	Amount          decimal.Decimal
	Description     string
	OrderID         uuid.UUID
	CustomerEmail   string
	PaymentMethodID string
}

type PaymentCreated struct {
	ProviderID   string `json:"provider_id"`
	QRCode       string `json:"qr_code,omitempty"`
	QRCodeBase64 string `json:"qr_code_base64,omitempty"`
}

// PaymentState is the provider's current view of a payment.
// ExternalReference carries the order id the payment was created for, when present.
type PaymentState struct {
	Status            PaymentStatus
	ExternalReference string
}
