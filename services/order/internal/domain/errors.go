package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this service wraps exactly one of them.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrBusinessRule      = errors.New("business rule violation")
	ErrExternalService   = errors.New("external service error")
)

var (
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("order item %w", ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("payment %w", ErrNotFound)

	ErrProductUnavailable  = fmt.Errorf("%w: product unavailable", ErrBusinessRule)
	ErrInsufficientStock   = fmt.Errorf("%w: insufficient stock", ErrBusinessRule)
	ErrOrderNotPending     = fmt.Errorf("%w: order must be in PENDING status", ErrBusinessRule)
	ErrOrderHasNoItems     = fmt.Errorf("%w: order must have at least one item", ErrBusinessRule)
	ErrNoItemsRemoved      = fmt.Errorf("%w: no matching items to remove", ErrBusinessRule)
	ErrDuplicateCustomer   = fmt.Errorf("%w: customer already exists", ErrBusinessRule)
	ErrDuplicateProduct    = fmt.Errorf("%w: product already exists", ErrBusinessRule)
	ErrProductInUse        = fmt.Errorf("%w: product is referenced by orders", ErrBusinessRule)
	ErrPaymentProviderDown = fmt.Errorf("%w: payment provider", ErrExternalService)
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// TransitionError reports a state change the order state machine does not allow.
type TransitionError struct {
	Action   string
	Current  OrderStatus
	Required OrderStatus
	Reason   string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s order: %s", e.Action, e.Reason)
	}

	return fmt.Sprintf("cannot %s order: must be in %s status (current: %s)", e.Action, e.Required, e.Current)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
