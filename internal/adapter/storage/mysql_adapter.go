package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	settingsRowID           = 1
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return asLockConflict(err)
	}

	if err := tx.Commit(); err != nil {
		return asLockConflict(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return scanProduct(m.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, active, version, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	))
}

func (m *MySQLAdapter) UpdateProductStock(ctx context.Context, product domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		product.Stock, time.Now().UTC(), product.ID, product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	return nil
}

func (m *MySQLAdapter) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		o          domain.Order
		key        sql.NullString
		customerID sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, total_amount, discount, payment_type, status, order_type, customer_id, created_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&o.ID, &key, &o.TotalAmount, &o.Discount, &o.PaymentType, &o.Status, &o.OrderType, &customerID, &o.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.IdempotencyKey = key.String
	if customerID.Valid {
		o.CustomerID = &customerID.String
	}

	items, err := findOrderItems(ctx, m.db, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (m *MySQLAdapter) FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	return findOrderIDByKey(ctx, m.db, key)
}

func (m *MySQLAdapter) GetSettings(ctx context.Context) (*domain.StoreSettings, error) {
	var payload []byte
	err := m.db.QueryRowContext(ctx, `SELECT payload FROM store_settings WHERE id = ?`, settingsRowID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}

	var s domain.StoreSettings
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}

func (m *MySQLAdapter) SaveSettings(ctx context.Context, settings domain.StoreSettings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO store_settings (id, payload, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = VALUES(updated_at)`,
		settingsRowID, payload, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

// LockProduct takes the row lock that serializes concurrent checkouts of the same product.
func (t *mysqlTx) LockProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return scanProduct(t.tx.QueryRowContext(ctx, `
		SELECT id, name, price, stock, active, version, created_at, updated_at
		FROM products WHERE id = ? FOR UPDATE`, productID,
	))
}

func (t *mysqlTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = ?
		WHERE id = ? AND stock >= ?`,
		quantity, time.Now().UTC(), productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrStockConflict
	}

	return nil
}

func (t *mysqlTx) FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	return findOrderIDByKey(ctx, t.tx, key)
}

func (t *mysqlTx) CreateOrder(ctx context.Context, order domain.Order) error {
	var key, customerID sql.NullString
	if order.IdempotencyKey != "" {
		key = sql.NullString{String: order.IdempotencyKey, Valid: true}
	}
	if order.CustomerID != nil {
		customerID = sql.NullString{String: *order.CustomerID, Valid: true}
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, idempotency_key, total_amount, discount, payment_type, status, order_type, customer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, key, order.TotalAmount, order.Discount, order.PaymentType, order.Status,
		order.OrderType, customerID, order.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return port.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		var options []byte
		if len(item.Options) > 0 {
			options = item.Options
		}

		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, line_no, product_id, product_name, price, quantity, options)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, order.ID, i+1, item.ProductID, item.ProductName, item.Price, item.Quantity, options,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (t *mysqlTx) AccrueLoyalty(ctx context.Context, customerID string, points int, spend decimal.Decimal) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE customers
		SET points = points + ?, total_spent = total_spent + ?, updated_at = ?
		WHERE id = ?`,
		points, spend, time.Now().UTC(), customerID,
	)
	if err != nil {
		return false, fmt.Errorf("update customer: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func scanProduct(row *sql.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func findOrderIDByKey(ctx context.Context, q querier, key string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM orders WHERE idempotency_key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query order by key: %w", err)
	}
	return id, nil
}

func findOrderItems(ctx context.Context, q querier, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, price, quantity, options
		FROM order_items WHERE order_id = ? ORDER BY line_no`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item      domain.OrderItem
			productID sql.NullString
			options   []byte
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &productID, &item.ProductName, &item.Price, &item.Quantity, &options); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.ProductID = productID.String
		if len(options) > 0 {
			item.Options = json.RawMessage(options)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// asLockConflict tags InnoDB deadlock and lock wait timeout errors with port.ErrLockConflict.
func asLockConflict(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && (mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout) {
		return fmt.Errorf("%w: %w", port.ErrLockConflict, err)
	}
	return err
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
