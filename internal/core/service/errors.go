package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("not found")

	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingProductID   = errors.New("product id is required")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrInvalidDiscount    = errors.New("invalid discount")
	ErrInvalidPaymentType = errors.New("unsupported payment type")
	ErrInvalidOrderType   = errors.New("unsupported order type")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInvalidStock       = errors.New("stock must not be negative")
	ErrInvalidSettings    = errors.New("invalid settings")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InsufficientStockError names the product and what is left so the cashier can fix the cart.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Remaining   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: out of stock, %d remaining", e.ProductName, e.Remaining)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsBusinessError reports whether err is caller-correctable (4xx) rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrInsufficientStock,
		ErrEmptyCart,
		ErrMissingProductID,
		ErrInvalidQuantity,
		ErrInvalidDiscount,
		ErrInvalidPaymentType,
		ErrInvalidOrderType,
		ErrProductUnavailable,
		ErrInvalidStock,
		ErrInvalidSettings,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
