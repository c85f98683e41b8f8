package messaging

import (
	"fmt"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/shopspring/decimal"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
)

// OrderPlacedSchema is the Avro schema for the order placed topic.
// Money travels as a decimal string to avoid float rounding.
const OrderPlacedSchema = `{
	"type": "record",
	"name": "OrderPlaced",
	"namespace": "pos.orders",
	"fields": [
		{"name": "order_id", "type": "string"},
		{"name": "customer_id", "type": ["null", "string"], "default": null},
		{"name": "total_amount", "type": "string"},
		{"name": "item_count", "type": "int"},
		{"name": "payment_type", "type": "string"},
		{"name": "order_type", "type": "string"},
		{"name": "created_at_ms", "type": "long"}
	]
}`

// AvroEncoder wraps a goavro codec. goavro codecs are safe for concurrent use.
type AvroEncoder struct {
	codec *goavro.Codec
}

func NewAvroEncoder() (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(OrderPlacedSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}
	return &AvroEncoder{codec: codec}, nil
}

func (e *AvroEncoder) EncodeOrderPlaced(event domain.OrderPlaced) ([]byte, error) {
	var customer interface{}
	if event.CustomerID != nil {
		customer = goavro.Union("string", *event.CustomerID)
	}

	native := map[string]interface{}{
		"order_id":      event.OrderID,
		"customer_id":   customer,
		"total_amount":  event.TotalAmount.StringFixed(2),
		"item_count":    int32(event.ItemCount),
		"payment_type":  string(event.PaymentType),
		"order_type":    string(event.OrderType),
		"created_at_ms": event.CreatedAt.UnixMilli(),
	}

	binary, err := e.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, fmt.Errorf("failed to encode to avro binary: %w", err)
	}
	return binary, nil
}

func (e *AvroEncoder) DecodeOrderPlaced(data []byte) (domain.OrderPlaced, error) {
	native, _, err := e.codec.NativeFromBinary(data)
	if err != nil {
		return domain.OrderPlaced{}, fmt.Errorf("failed to decode avro binary: %w", err)
	}

	record, ok := native.(map[string]interface{})
	if !ok {
		return domain.OrderPlaced{}, fmt.Errorf("unexpected avro native type %T", native)
	}

	total, err := decimal.NewFromString(record["total_amount"].(string))
	if err != nil {
		return domain.OrderPlaced{}, fmt.Errorf("decode total_amount: %w", err)
	}

	event := domain.OrderPlaced{
		OrderID:     record["order_id"].(string),
		TotalAmount: total,
		ItemCount:   int(record["item_count"].(int32)),
		PaymentType: domain.PaymentType(record["payment_type"].(string)),
		OrderType:   domain.OrderType(record["order_type"].(string)),
		CreatedAt:   time.UnixMilli(record["created_at_ms"].(int64)).UTC(),
	}
	if union, ok := record["customer_id"].(map[string]interface{}); ok {
		if id, ok := union["string"].(string); ok {
			event.CustomerID = &id
		}
	}
	return event, nil
}
