package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MaxObservationLength = 255
	// MaxItemQuantity bounds a single line so summed quantities stay far from int overflow.
	MaxItemQuantity = 10000
)

type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     *uuid.UUID      `json:"order_id,omitempty"`
	ProductID   uuid.UUID       `json:"product_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Observation string          `json:"observation,omitempty"`
}

// NewOrderItem builds an item not yet attached to an order.
func NewOrderItem(productID uuid.UUID, quantity int, unitPrice decimal.Decimal, observation string) (OrderItem, error) {
	item := OrderItem{
		ID:          uuid.New(),
		ProductID:   productID,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Observation: observation,
	}

	if err := item.Validate(); err != nil {
		return OrderItem{}, err
	}

	return item, nil
}

func (i OrderItem) Validate() error {
	if i.ID == uuid.Nil {
		return validationErrorf("item id is required")
	}
	if i.ProductID == uuid.Nil {
		return validationErrorf("product id is required")
	}
	if i.Quantity <= 0 {
		return validationErrorf("quantity must be greater than 0, got %d", i.Quantity)
	}
	if i.Quantity > MaxItemQuantity {
		return validationErrorf("quantity must be at most %d, got %d", MaxItemQuantity, i.Quantity)
	}
	if i.UnitPrice.IsNegative() {
		return validationErrorf("unit price must not be negative, got %s", i.UnitPrice.StringFixed(2))
	}
	if utf8.RuneCountInString(i.Observation) > MaxObservationLength {
		return validationErrorf("observation must be at most %d characters", MaxObservationLength)
	}

	return nil
}

func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
