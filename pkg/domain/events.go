package domain

import "time"

// Event names carried in the outbox envelope.
const (
	EventOrderCreated        = "OrderCreated"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventOrderDeleted        = "OrderDeleted"
	EventPaymentNotification = "PaymentNotification"
)

type OrderItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Observation string `json:"observation,omitempty"`
}

type OrderCreatedEvent struct {
	OrderID     string      `json:"order_id"`
	CustomerID  *string     `json:"customer_id,omitempty"`
	TotalAmount string      `json:"total_amount"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
}

type OrderStatusChangedEvent struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   *int      `json:"order_number,omitempty"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	PaymentStatus string    `json:"payment_status"`
	ChangedAt     time.Time `json:"changed_at"`
}

type OrderDeletedEvent struct {
	OrderID   string    `json:"order_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// PaymentNotificationEvent is published by the payment provider bridge.
type PaymentNotificationEvent struct {
	PaymentID string `json:"payment_id"`
}
