package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
)

// PlaceOrderRequest is the checkout body shared by the HTTP and gRPC transports.
type PlaceOrderRequest struct {
	Items          []CartLineRequest `json:"items" validate:"required,min=1,dive"`
	TotalAmount    decimal.Decimal   `json:"totalAmount"`
	Discount       decimal.Decimal   `json:"discount"`
	PaymentType    string            `json:"paymentType" validate:"required,oneof=CASH QR CARD"`
	CustomerID     *string           `json:"customerId,omitempty"`
	OrderType      string            `json:"orderType,omitempty" validate:"omitempty,oneof=DINE_IN TAKE_AWAY"`
	IdempotencyKey string            `json:"idempotencyKey,omitempty" validate:"omitempty,max=128"`
}

type CartLineRequest struct {
	ProductID string          `json:"productId" validate:"required,max=64"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Options   json.RawMessage `json:"options,omitempty"`
}

type PlaceOrderResponse struct {
	Success      bool   `json:"success"`
	OrderID      string `json:"orderId,omitempty"`
	TotalAmount  string `json:"totalAmount,omitempty"`
	PointsEarned int    `json:"pointsEarned,omitempty"`
	Replayed     bool   `json:"replayed,omitempty"`
	Error        string `json:"error,omitempty"`
}

type GetOrderRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type OrderItemResponse struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       string          `json:"price"`
	Quantity    int             `json:"quantity"`
	Options     json.RawMessage `json:"options,omitempty"`
}

type OrderResponse struct {
	ID          string              `json:"id"`
	TotalAmount string              `json:"totalAmount"`
	Discount    string              `json:"discount"`
	PaymentType string              `json:"paymentType"`
	Status      string              `json:"status"`
	OrderType   string              `json:"orderType"`
	CustomerID  *string             `json:"customerId,omitempty"`
	Items       []OrderItemResponse `json:"items"`
	CreatedAt   string              `json:"createdAt"`
}

type SetStockRequest struct {
	Stock   *int `json:"stock" validate:"required,min=0"`
	Version *int `json:"version" validate:"required,min=0"`
}

type ProductResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Price   string `json:"price"`
	Stock   int    `json:"stock"`
	Active  bool   `json:"active"`
	Version int    `json:"version"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks struct tags and flattens the first failure into a message a cashier can read.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "min":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

// fieldPath drops the struct name: "PlaceOrderRequest.items[0].quantity" becomes "items[0].quantity".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func (r PlaceOrderRequest) toCommand() service.PlaceOrderCommand {
	items := make([]domain.CartLine, len(r.Items))
	for i, line := range r.Items {
		items[i] = domain.CartLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Options:   line.Options,
		}
	}

	var customerID *string
	if r.CustomerID != nil && strings.TrimSpace(*r.CustomerID) != "" {
		id := strings.TrimSpace(*r.CustomerID)
		customerID = &id
	}

	return service.PlaceOrderCommand{
		Items:          items,
		TotalAmount:    r.TotalAmount,
		Discount:       r.Discount,
		PaymentType:    domain.PaymentType(r.PaymentType),
		OrderType:      domain.OrderType(r.OrderType),
		CustomerID:     customerID,
		IdempotencyKey: r.IdempotencyKey,
	}
}

func newPlaceOrderResponse(result service.PlaceOrderResult) PlaceOrderResponse {
	return PlaceOrderResponse{
		Success:      true,
		OrderID:      result.OrderID,
		TotalAmount:  result.TotalAmount.StringFixed(2),
		PointsEarned: result.PointsEarned,
		Replayed:     result.Replayed,
	}
}

func newOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price.StringFixed(2),
			Quantity:    item.Quantity,
			Options:     item.Options,
		}
	}
	return OrderResponse{
		ID:          order.ID,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Discount:    order.Discount.StringFixed(2),
		PaymentType: string(order.PaymentType),
		Status:      string(order.Status),
		OrderType:   string(order.OrderType),
		CustomerID:  order.CustomerID,
		Items:       items,
		CreatedAt:   order.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:      p.ID,
		Name:    p.Name,
		Price:   p.Price.StringFixed(2),
		Stock:   p.Stock,
		Active:  p.Active,
		Version: p.Version,
	}
}
