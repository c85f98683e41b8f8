package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

// Checkout only records orders whose payment was already collected.
const (
	OrderStatusPaid OrderStatus = "paid"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "DINE_IN"
	OrderTypeTakeAway OrderType = "TAKE_AWAY"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeAway:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentTypeCash PaymentType = "CASH"
	PaymentTypeQR   PaymentType = "QR"
	PaymentTypeCard PaymentType = "CARD"
)

func (p PaymentType) Valid() bool {
	switch p {
	case PaymentTypeCash, PaymentTypeQR, PaymentTypeCard:
		return true
	}
	return false
}

// CartLine is one client-proposed line. Options are echoed back untouched.
type CartLine struct {
	ProductID string
	Quantity  int
	Options   json.RawMessage
}

type Order struct {
	ID             string
	IdempotencyKey string
	TotalAmount    decimal.Decimal
	Discount       decimal.Decimal
	PaymentType    PaymentType
	Status         OrderStatus
	OrderType      OrderType
	CustomerID     *string
	Items          []OrderItem
	CreatedAt      time.Time
}

// OrderItem snapshots name and price at sale time; ProductID is a weak reference.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	Options     json.RawMessage
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// UnitCount is the number of units sold, which is also the loyalty points earned.
func (o Order) UnitCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}
