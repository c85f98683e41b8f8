package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

const idempotencyKeyPrefix = "checkout:"

type OrderServiceConfig struct {
	// EventQueueSize of 0 disables OrderPlaced events.
	EventQueueSize int
	IdempotencyTTL time.Duration
	TxTimeout      time.Duration
}

type PlaceOrderCommand struct {
	Items []domain.CartLine
	// TotalAmount is what the client computed. It is logged when it disagrees, never charged.
	TotalAmount    decimal.Decimal
	Discount       decimal.Decimal
	PaymentType    domain.PaymentType
	OrderType      domain.OrderType
	CustomerID     *string
	IdempotencyKey string
}

type PlaceOrderResult struct {
	OrderID      string
	TotalAmount  decimal.Decimal
	PointsEarned int
	Replayed     bool
}

type OrderService struct {
	db          port.DatabaseRepository
	idempotency port.IdempotencyRepository
	log         logger.Logger
	cfg         OrderServiceConfig
	eventQueue  chan domain.OrderPlaced
	now         func() time.Time
}

// NewOrderService wires checkout. idempotency may be nil, in which case only the
// database unique constraint deduplicates retried submissions.
func NewOrderService(db port.DatabaseRepository, idempotency port.IdempotencyRepository, log logger.Logger, cfg OrderServiceConfig) *OrderService {
	s := &OrderService{
		db:          db,
		idempotency: idempotency,
		log:         log,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if cfg.EventQueueSize > 0 {
		s.eventQueue = make(chan domain.OrderPlaced, cfg.EventQueueSize)
	}
	return s
}

// PayableAmount is subtotal minus discount, never below zero.
func PayableAmount(subtotal, discount decimal.Decimal) decimal.Decimal {
	payable := subtotal.Sub(discount)
	if payable.IsNegative() {
		return decimal.Zero
	}
	return payable
}

func (c PlaceOrderCommand) validate() (domain.OrderType, error) {
	if len(c.Items) == 0 {
		return "", ErrEmptyCart
	}
	for i, line := range c.Items {
		if line.ProductID == "" {
			return "", fmt.Errorf("line %d: %w", i+1, ErrMissingProductID)
		}
		if line.Quantity <= 0 {
			return "", fmt.Errorf("product %s: %w", line.ProductID, ErrInvalidQuantity)
		}
	}
	if c.Discount.IsNegative() {
		return "", fmt.Errorf("%w: must not be negative", ErrInvalidDiscount)
	}
	// Money columns hold cents; a finer discount would not survive storage.
	if !c.Discount.Equal(c.Discount.Round(2)) {
		return "", fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalidDiscount, c.Discount)
	}
	if !c.PaymentType.Valid() {
		return "", fmt.Errorf("%q: %w", c.PaymentType, ErrInvalidPaymentType)
	}

	orderType := c.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeDineIn
	}
	if !orderType.Valid() {
		return "", fmt.Errorf("%q: %w", c.OrderType, ErrInvalidOrderType)
	}
	return orderType, nil
}

// PlaceOrder validates the cart against current catalog data and records a paid order.
// Stock decrement, order creation and loyalty accrual commit together or not at all.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlaceOrderResult, error) {
	orderType, err := cmd.validate()
	if err != nil {
		return PlaceOrderResult{}, err
	}

	log := s.log.WithContext(ctx)

	if cmd.IdempotencyKey != "" && s.idempotency != nil {
		claimKey := idempotencyKeyPrefix + cmd.IdempotencyKey

		ok, err := s.idempotency.SetIdempotency(ctx, claimKey, s.cfg.IdempotencyTTL)
		switch {
		case err != nil:
			// The orders table still enforces uniqueness of the key.
			log.Warn("idempotency claim failed, relying on database", logger.String("key", cmd.IdempotencyKey), logger.Error(err))
		case !ok:
			return s.replay(ctx, cmd.IdempotencyKey)
		default:
			committed := false
			defer func() {
				if !committed {
					s.releaseClaim(claimKey)
				}
			}()
			result, err := s.placeOrder(ctx, cmd, orderType)
			committed = err == nil
			return result, err
		}
	}

	return s.placeOrder(ctx, cmd, orderType)
}

func (s *OrderService) placeOrder(ctx context.Context, cmd PlaceOrderCommand, orderType domain.OrderType) (PlaceOrderResult, error) {
	txCtx := ctx
	if s.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.cfg.TxTimeout)
		defer cancel()
	}

	var (
		order      domain.Order
		replayedID string
	)

	err := s.db.WithinTx(txCtx, func(tx port.Tx) error {
		if cmd.IdempotencyKey != "" {
			id, err := tx.FindOrderIDByIdempotencyKey(txCtx, cmd.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
			if id != "" {
				replayedID = id
				return nil
			}
		}

		order = domain.Order{
			ID:             uuid.NewString(),
			IdempotencyKey: cmd.IdempotencyKey,
			PaymentType:    cmd.PaymentType,
			Status:         domain.OrderStatusPaid,
			OrderType:      orderType,
			CustomerID:     cmd.CustomerID,
			Items:          make([]domain.OrderItem, 0, len(cmd.Items)),
			CreatedAt:      s.now(),
		}

		subtotal := decimal.Zero
		for _, line := range cmd.Items {
			product, err := tx.LockProduct(txCtx, line.ProductID)
			if err != nil {
				return fmt.Errorf("read product %s: %w", line.ProductID, err)
			}
			if product == nil {
				return &NotFoundError{Entity: "product", ID: line.ProductID}
			}
			if !product.Active {
				return fmt.Errorf("%s: %w", product.Name, ErrProductUnavailable)
			}
			if !product.HasStock(line.Quantity) {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   line.Quantity,
					Remaining:   product.Stock,
				}
			}

			if err := tx.DecrementStock(txCtx, product.ID, line.Quantity); err != nil {
				return fmt.Errorf("decrement stock for %s: %w", product.ID, err)
			}

			item := domain.OrderItem{
				ID:          uuid.NewString(),
				OrderID:     order.ID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Price:       product.Price,
				Quantity:    line.Quantity,
				Options:     line.Options,
			}
			subtotal = subtotal.Add(item.LineTotal())
			order.Items = append(order.Items, item)
		}

		order.TotalAmount = PayableAmount(subtotal, cmd.Discount)
		order.Discount = subtotal.Sub(order.TotalAmount)

		if err := tx.CreateOrder(txCtx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if order.CustomerID != nil {
			found, err := tx.AccrueLoyalty(txCtx, *order.CustomerID, order.UnitCount(), order.TotalAmount)
			if err != nil {
				return fmt.Errorf("accrue loyalty: %w", err)
			}
			if !found {
				return &NotFoundError{Entity: "customer", ID: *order.CustomerID}
			}
		}

		return nil
	})

	if errors.Is(err, port.ErrDuplicateIdempotencyKey) {
		// Lost the insert race to a concurrent attempt with the same key.
		return s.replay(ctx, cmd.IdempotencyKey)
	}
	if err != nil {
		return PlaceOrderResult{}, err
	}
	if replayedID != "" {
		return s.replayResult(ctx, replayedID)
	}

	if !cmd.TotalAmount.IsZero() && !cmd.TotalAmount.Equal(order.TotalAmount) {
		s.log.WithContext(ctx).Info("client total differs from charged total",
			logger.String("order_id", order.ID),
			logger.Any("client_total", cmd.TotalAmount),
			logger.Any("total", order.TotalAmount),
		)
	}

	s.enqueue(ctx, domain.NewOrderPlaced(order))

	result := PlaceOrderResult{OrderID: order.ID, TotalAmount: order.TotalAmount}
	if order.CustomerID != nil {
		result.PointsEarned = order.UnitCount()
	}
	return result, nil
}

func (s *OrderService) replay(ctx context.Context, key string) (PlaceOrderResult, error) {
	id, err := s.db.FindOrderIDByIdempotencyKey(ctx, key)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if id == "" {
		// The first attempt holds the claim but has not committed.
		return PlaceOrderResult{}, ErrDuplicateRequest
	}
	return s.replayResult(ctx, id)
}

func (s *OrderService) replayResult(ctx context.Context, orderID string) (PlaceOrderResult, error) {
	order, err := s.db.FindOrder(ctx, orderID)
	if err != nil {
		return PlaceOrderResult{}, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order == nil {
		return PlaceOrderResult{}, &NotFoundError{Entity: "order", ID: orderID}
	}

	result := PlaceOrderResult{OrderID: order.ID, TotalAmount: order.TotalAmount, Replayed: true}
	if order.CustomerID != nil {
		result.PointsEarned = order.UnitCount()
	}
	return result, nil
}

func (s *OrderService) releaseClaim(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.idempotency.ReleaseIdempotency(ctx, key); err != nil {
		s.log.Warn("release idempotency claim failed", logger.String("key", key), logger.Error(err))
	}
}

// enqueue never blocks checkout: the order is already durable.
func (s *OrderService) enqueue(ctx context.Context, event domain.OrderPlaced) {
	if s.eventQueue == nil {
		return
	}
	select {
	case s.eventQueue <- event:
	default:
		s.log.WithContext(ctx).Warn("event queue full, dropping OrderPlaced", logger.String("order_id", event.OrderID))
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.db.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	return order, nil
}

func (s *OrderService) GetEventQueue() <-chan domain.OrderPlaced {
	return s.eventQueue
}

func (s *OrderService) Close() {
	if s.eventQueue != nil {
		close(s.eventQueue)
	}
}
