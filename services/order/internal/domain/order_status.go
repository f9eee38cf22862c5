package domain

import "strings"

type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "PENDING"
	OrderStatusConfirmed        OrderStatus = "CONFIRMED"
	OrderStatusPaymentConfirmed OrderStatus = "PAYMENT_CONFIRMED"
	OrderStatusPreparing        OrderStatus = "PREPARING"
	OrderStatusReady            OrderStatus = "READY"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPaymentConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus accepts any casing of a known status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, status := range orderStatuses {
		if status == candidate {
			return status, nil
		}
	}

	return "", validationErrorf("unknown order status %q", s)
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ReachedPayment reports whether payment has already been confirmed for an order in this status.
func (s OrderStatus) ReachedPayment() bool {
	switch s {
	case OrderStatusPaymentConfirmed, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusError     PaymentStatus = "error"
)

func (s PaymentStatus) IsApproved() bool {
	return strings.EqualFold(string(s), string(PaymentStatusApproved))
}

func (s PaymentStatus) String() string {
	return string(s)
}
