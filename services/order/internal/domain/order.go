package domain

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the aggregate root. Its fields are only reachable through methods so that
// the total and the status always follow the rules below.
type Order struct {
	id                uuid.UUID
	customerID        *uuid.UUID
	items             []OrderItem
	status            OrderStatus
	paymentStatus     PaymentStatus
	totalAmount       decimal.Decimal
	paymentProviderID *string
	orderNumber       *int
	createdAt         time.Time
	updatedAt         time.Time
}

// OrderSnapshot is the flat form of an order used by storage and serialization.
type OrderSnapshot struct {
	ID                uuid.UUID       `json:"id"`
	CustomerID        *uuid.UUID      `json:"customer_id,omitempty"`
	Items             []OrderItem     `json:"items"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentProviderID *string         `json:"payment_provider_id,omitempty"`
	OrderNumber       *int            `json:"order_number,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func NewOrder(customerID *uuid.UUID) *Order {
	now := time.Now().UTC()

	return &Order{
		id:            uuid.New(),
		customerID:    cloneUUID(customerID),
		items:         []OrderItem{},
		status:        OrderStatusPending,
		paymentStatus: PaymentStatusPending,
		totalAmount:   decimal.Zero,
		createdAt:     now,
		updatedAt:     now,
	}
}

// RestoreOrder rebuilds an order from its stored form. The total is recomputed from the items.
func RestoreOrder(s OrderSnapshot) *Order {
	o := &Order{
		id:                s.ID,
		customerID:        cloneUUID(s.CustomerID),
		items:             cloneItems(s.Items),
		status:            s.Status,
		paymentStatus:     s.PaymentStatus,
		paymentProviderID: cloneString(s.PaymentProviderID),
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
	if s.OrderNumber != nil {
		o.RestoreOrderNumber(*s.OrderNumber)
	}

	o.recalculateTotal()

	return o
}

// RestoreOrderNumber is reserved for reconstruction from storage. Business code gets
// an order number only through Confirm.
func (o *Order) RestoreOrderNumber(n int) {
	o.orderNumber = &n
}

func (o *Order) ID() uuid.UUID                { return o.id }
func (o *Order) CustomerID() *uuid.UUID       { return cloneUUID(o.customerID) }
func (o *Order) Status() OrderStatus          { return o.status }
func (o *Order) PaymentStatus() PaymentStatus { return o.paymentStatus }
func (o *Order) TotalAmount() decimal.Decimal { return o.totalAmount }
func (o *Order) CreatedAt() time.Time         { return o.createdAt }
func (o *Order) UpdatedAt() time.Time         { return o.updatedAt }
func (o *Order) PaymentProviderID() *string   { return cloneString(o.paymentProviderID) }

func (o *Order) OrderNumber() *int {
	if o.orderNumber == nil {
		return nil
	}
	n := *o.orderNumber
	return &n
}

// Items returns a copy; changing it does not change the order.
func (o *Order) Items() []OrderItem {
	return cloneItems(o.items)
}

func (o *Order) Snapshot() OrderSnapshot {
	return OrderSnapshot{
		ID:                o.id,
		CustomerID:        o.CustomerID(),
		Items:             o.Items(),
		Status:            o.status,
		PaymentStatus:     o.paymentStatus,
		TotalAmount:       o.totalAmount,
		PaymentProviderID: o.PaymentProviderID(),
		OrderNumber:       o.OrderNumber(),
		CreatedAt:         o.createdAt,
		UpdatedAt:         o.updatedAt,
	}
}

// Confirm moves a non-empty PENDING order to CONFIRMED and assigns its order number once.
func (o *Order) Confirm(ctx context.Context, numbers OrderNumberGenerator) error {
	if o.status != OrderStatusPending {
		return &TransitionError{Action: "confirm", Current: o.status, Required: OrderStatusPending}
	}
	if len(o.items) == 0 {
		return ErrOrderHasNoItems
	}

	if o.orderNumber == nil {
		if numbers == nil {
			numbers = ClockSequence{}
		}

		n, err := numbers.Next(ctx, DateKey(time.Now().UTC()))
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		o.orderNumber = &n
	}

	o.status = OrderStatusConfirmed
	o.touch()

	return nil
}

func (o *Order) ConfirmPayment() error {
	return o.transition("confirm payment for", OrderStatusConfirmed, OrderStatusPaymentConfirmed)
}

func (o *Order) StartPreparing() error {
	return o.transition("start preparing", OrderStatusPaymentConfirmed, OrderStatusPreparing)
}

func (o *Order) MarkAsReady() error {
	return o.transition("mark as ready", OrderStatusPreparing, OrderStatusReady)
}

func (o *Order) MarkAsDelivered() error {
	return o.transition("deliver", OrderStatusReady, OrderStatusDelivered)
}

// Cancel is allowed from every status except DELIVERED and CANCELLED.
func (o *Order) Cancel() error {
	switch o.status {
	case OrderStatusDelivered:
		return &TransitionError{Action: "cancel", Current: o.status, Reason: "cannot cancel a delivered order"}
	case OrderStatusCancelled:
		return &TransitionError{Action: "cancel", Current: o.status, Reason: "order already cancelled"}
	}

	o.status = OrderStatusCancelled
	o.touch()

	return nil
}

func (o *Order) AddItem(item OrderItem) error {
	return o.AddItems(item)
}

// AddItems attaches a non-empty batch of items to a PENDING order.
func (o *Order) AddItems(items ...OrderItem) error {
	if err := o.RequirePending(); err != nil {
		return err
	}
	if len(items) == 0 {
		return validationErrorf("at least one item is required")
	}

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	for _, item := range items {
		orderID := o.id
		item.OrderID = &orderID
		o.items = append(o.items, item)
	}

	o.recalculateTotal()
	o.touch()

	return nil
}

// RemoveItems drops every item whose id is listed. At least one item must match.
func (o *Order) RemoveItems(itemIDs ...uuid.UUID) error {
	if err := o.RequirePending(); err != nil {
		return err
	}

	before := len(o.items)
	o.items = slices.DeleteFunc(o.items, func(item OrderItem) bool {
		return slices.Contains(itemIDs, item.ID)
	})

	if len(o.items) == before {
		return fmt.Errorf("%w: %v", ErrNoItemsRemoved, itemIDs)
	}

	o.recalculateTotal()
	o.touch()

	return nil
}

func (o *Order) UpdateItemQuantity(itemID uuid.UUID, quantity int) error {
	if err := o.RequirePending(); err != nil {
		return err
	}
	if quantity <= 0 {
		return validationErrorf("quantity must be greater than 0, got %d", quantity)
	}
	if quantity > MaxItemQuantity {
		return validationErrorf("quantity must be at most %d, got %d", MaxItemQuantity, quantity)
	}

	idx := slices.IndexFunc(o.items, func(item OrderItem) bool {
		return item.ID == itemID
	})
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	o.items[idx].Quantity = quantity

	o.recalculateTotal()
	o.touch()

	return nil
}

// AttachPayment records the provider-side id of a payment created for this order.
func (o *Order) AttachPayment(providerID string) {
	o.paymentProviderID = &providerID
	o.touch()
}

// RecordPaymentStatus copies the provider's view of the payment. It never changes the order status.
func (o *Order) RecordPaymentStatus(providerID string, status PaymentStatus) {
	if providerID != "" {
		o.paymentProviderID = &providerID
	}
	o.paymentStatus = status
	o.touch()
}

func (o *Order) transition(action string, from, to OrderStatus) error {
	if o.status != from {
		return &TransitionError{Action: action, Current: o.status, Required: from}
	}

	o.status = to
	o.touch()

	return nil
}

// RequirePending fails with ErrOrderNotPending once the order has left PENDING.
func (o *Order) RequirePending() error {
	if o.status != OrderStatusPending {
		return fmt.Errorf("%w (order %s is %s)", ErrOrderNotPending, o.id, o.status)
	}

	return nil
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, item := range o.items {
		total = total.Add(item.TotalPrice())
	}
	o.totalAmount = total
}

func (o *Order) touch() {
	now := time.Now().UTC()
	if !now.After(o.updatedAt) {
		now = o.updatedAt.Add(time.Microsecond)
	}
	o.updatedAt = now
}

func cloneItems(items []OrderItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, item := range items {
		item.OrderID = cloneUUID(item.OrderID)
		out[i] = item
	}
	return out
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
