package port

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
)

var (
	// ErrOptimisticLock is returned when a versioned update loses the race.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrStockConflict is returned when a guarded decrement affects no row.
	ErrStockConflict = errors.New("stock changed concurrently")

	// ErrDuplicateIdempotencyKey is returned when another order already owns the key.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

	// ErrLockConflict is returned when the store aborts a transaction on a deadlock
	// or lock wait timeout. The transaction was rolled back and may be retried.
	ErrLockConflict = errors.New("transaction lock conflict")
)

type DatabaseRepository interface {
	// WithinTx runs fn in a single transaction. Any error from fn rolls back every write it made.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// GetProduct retrieves a product by ID, nil if absent
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// UpdateProductStock sets stock directly with a version check for optimistic locking
	UpdateProductStock(ctx context.Context, product domain.Product) error

	// FindOrder retrieves an order with its items, nil if absent
	FindOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// FindOrderIDByIdempotencyKey returns "" when no order carries the key
	FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error)

	// GetSettings returns nil when no settings row was saved yet
	GetSettings(ctx context.Context) (*domain.StoreSettings, error)

	SaveSettings(ctx context.Context, settings domain.StoreSettings) error
}

// Tx is the set of operations checkout performs under one transaction.
type Tx interface {
	// LockProduct reads a product and holds its row lock until the transaction ends, nil if absent
	LockProduct(ctx context.Context, productID string) (*domain.Product, error)

	// DecrementStock never lets stock go below zero; returns ErrStockConflict instead
	DecrementStock(ctx context.Context, productID string, quantity int) error

	FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error)

	// CreateOrder inserts the order together with its items
	CreateOrder(ctx context.Context, order domain.Order) error

	// AccrueLoyalty adds points and spend to a customer, false if the customer does not exist
	AccrueLoyalty(ctx context.Context, customerID string, points int, spend decimal.Decimal) (bool, error)
}
