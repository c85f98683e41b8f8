package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
)

// MemoryAdapter is an in-process DatabaseRepository. Transactions are serialized
// by one mutex and run against a copy of the state that is swapped in on success.
type MemoryAdapter struct {
	mu    sync.Mutex
	state memoryState
}

type memoryState struct {
	products  map[string]domain.Product
	customers map[string]domain.Customer
	orders    map[string]domain.Order
	orderKeys map[string]string
	settings  *domain.StoreSettings
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{state: memoryState{
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		orders:    make(map[string]domain.Order),
		orderKeys: make(map[string]string),
	}}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		products:  make(map[string]domain.Product, len(s.products)),
		customers: make(map[string]domain.Customer, len(s.customers)),
		orders:    make(map[string]domain.Order, len(s.orders)),
		orderKeys: make(map[string]string, len(s.orderKeys)),
		settings:  s.settings,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderKeys {
		c.orderKeys[k] = v
	}
	return c
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := m.state.clone()
	if err := fn(&memoryTx{state: &working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.state = working
	return nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.state.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryAdapter) UpdateProductStock(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.state.products[product.ID]
	if !ok || current.Version != product.Version {
		return port.ErrOptimisticLock
	}

	current.Stock = product.Stock
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	m.state.products[product.ID] = current
	return nil
}

func (m *MemoryAdapter) FindOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.state.orders[orderID]
	if !ok {
		return nil, nil
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

func (m *MemoryAdapter) FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.orderKeys[key], nil
}

func (m *MemoryAdapter) GetSettings(ctx context.Context) (*domain.StoreSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.settings == nil {
		return nil, nil
	}
	s := *m.state.settings
	return &s, nil
}

func (m *MemoryAdapter) SaveSettings(ctx context.Context, settings domain.StoreSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.settings = &settings
	return nil
}

// PutProduct inserts or replaces a product. Used for seeding.
func (m *MemoryAdapter) PutProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
}

// PutCustomer inserts or replaces a customer. Used for seeding.
func (m *MemoryAdapter) PutCustomer(c domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.customers[c.ID] = c
}

func (m *MemoryAdapter) Customer(customerID string) (domain.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.customers[customerID]
	return c, ok
}

func (m *MemoryAdapter) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) LockProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memoryTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	p, ok := t.state.products[productID]
	if !ok || p.Stock < quantity {
		return port.ErrStockConflict
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	t.state.products[productID] = p
	return nil
}

func (t *memoryTx) FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	return t.state.orderKeys[key], nil
}

func (t *memoryTx) CreateOrder(ctx context.Context, order domain.Order) error {
	if order.IdempotencyKey != "" {
		if _, exists := t.state.orderKeys[order.IdempotencyKey]; exists {
			return port.ErrDuplicateIdempotencyKey
		}
		t.state.orderKeys[order.IdempotencyKey] = order.ID
	}

	items := make([]domain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		if item.Options != nil {
			item.Options = append(json.RawMessage(nil), item.Options...)
		}
		items[i] = item
	}
	order.Items = items

	t.state.orders[order.ID] = order
	return nil
}

func (t *memoryTx) AccrueLoyalty(ctx context.Context, customerID string, points int, spend decimal.Decimal) (bool, error) {
	c, ok := t.state.customers[customerID]
	if !ok {
		return false, nil
	}
	c.Points += points
	c.TotalSpent = c.TotalSpent.Add(spend)
	c.UpdatedAt = time.Now().UTC()
	t.state.customers[customerID] = c
	return true, nil
}
