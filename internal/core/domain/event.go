package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlaced is emitted after an order commits.
type OrderPlaced struct {
	OrderID     string
	CustomerID  *string
	TotalAmount decimal.Decimal
	ItemCount   int
	PaymentType PaymentType
	OrderType   OrderType
	CreatedAt   time.Time
}

func NewOrderPlaced(order Order) OrderPlaced {
	return OrderPlaced{
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		ItemCount:   order.UnitCount(),
		PaymentType: order.PaymentType,
		OrderType:   order.OrderType,
		CreatedAt:   order.CreatedAt,
	}
}
