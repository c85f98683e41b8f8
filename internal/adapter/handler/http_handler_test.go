package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/adapter/handler"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/adapter/storage"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

type memorySettingsCache struct {
	mu       sync.Mutex
	settings *domain.StoreSettings
}

func (c *memorySettingsCache) GetSettings(ctx context.Context) (*domain.StoreSettings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings, nil
}

func (c *memorySettingsCache) SetSettings(ctx context.Context, settings domain.StoreSettings, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = &settings
	return nil
}

func (c *memorySettingsCache) InvalidateSettings(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = nil
	return nil
}

type testServer struct {
	engine *gin.Engine
	db     *storage.MemoryAdapter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := storage.NewMemoryAdapter()
	db.PutProduct(domain.Product{ID: "P1", Name: "Latte", Price: decimal.NewFromInt(50), Stock: 10, Active: true})
	db.PutProduct(domain.Product{ID: "P2", Name: "Croissant", Price: decimal.NewFromInt(30), Stock: 1, Active: true})
	db.PutCustomer(domain.Customer{ID: "C1", Name: "Regular"})

	log := logger.NewNop()
	orders := service.NewOrderService(db, nil, log, service.OrderServiceConfig{TxTimeout: time.Second})
	catalog := service.NewCatalogService(db, log)
	settings := service.NewSettingsService(db, &memorySettingsCache{}, time.Minute, log)

	engine := handler.NewEngine(log)
	handler.RegisterRoutes(engine, handler.NewHTTPHandler(orders, catalog, settings, log))
	return &testServer{engine: engine, db: db}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPlaceOrder_Created(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/orders", map[string]any{
		"items":       []map[string]any{{"productId": "P1", "quantity": 2, "options": map[string]string{"size": "L"}}},
		"totalAmount": 100,
		"discount":    0,
		"paymentType": "CASH",
		"customerId":  "C1",
	}, nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[handler.PlaceOrderResponse](t, w)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "100.00", resp.TotalAmount)
	assert.Equal(t, 2, resp.PointsEarned)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	p, err := s.db.GetProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)
}

func TestPlaceOrder_InsufficientStockIs400(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/orders", map[string]any{
		"items":       []map[string]any{{"productId": "P2", "quantity": 2}},
		"paymentType": "QR",
	}, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[handler.PlaceOrderResponse](t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Croissant: out of stock, 1 remaining", resp.Error)
}

func TestPlaceOrder_UnknownProductIs400(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/orders", map[string]any{
		"items":       []map[string]any{{"productId": "nope", "quantity": 1}},
		"paymentType": "CARD",
	}, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "product nope not found", decode[handler.PlaceOrderResponse](t, w).Error)
}

func TestPlaceOrder_ValidationMessages(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body any
		want string
	}{
		{
			name: "malformed json",
			body: `{"items": [`,
			want: "invalid request body",
		},
		{
			name: "empty cart",
			body: map[string]any{"items": []any{}, "paymentType": "CASH"},
			want: "items must be at least 1",
		},
		{
			name: "zero quantity",
			body: map[string]any{"items": []map[string]any{{"productId": "P1", "quantity": 0}}, "paymentType": "CASH"},
			want: "items[0].quantity must be greater than 0",
		},
		{
			name: "missing product id",
			body: map[string]any{"items": []map[string]any{{"quantity": 1}}, "paymentType": "CASH"},
			want: "items[0].productId is required",
		},
		{
			name: "unknown payment type",
			body: map[string]any{"items": []map[string]any{{"productId": "P1", "quantity": 1}}, "paymentType": "BARTER"},
			want: "paymentType must be one of [CASH QR CARD]",
		},
		{
			name: "negative discount",
			body: map[string]any{"items": []map[string]any{{"productId": "P1", "quantity": 1}}, "paymentType": "CASH", "discount": -5},
			want: "invalid discount: must not be negative",
		},
		{
			name: "fraction of a cent discount",
			body: map[string]any{"items": []map[string]any{{"productId": "P1", "quantity": 1}}, "paymentType": "CASH", "discount": "0.005"},
			want: "invalid discount: 0.005 has more than 2 decimal places",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/orders", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode[handler.PlaceOrderResponse](t, w).Error)
		})
	}

	assert.Equal(t, 0, s.db.OrderCount())
}

func TestPlaceOrder_IdempotencyHeaderReplays(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{
		"items":       []map[string]any{{"productId": "P1", "quantity": 1}},
		"paymentType": "CASH",
	}
	headers := map[string]string{"Idempotency-Key": "till-1-0001"}

	first := s.do(http.MethodPost, "/api/orders", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	second := s.do(http.MethodPost, "/api/orders", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)

	a := decode[handler.PlaceOrderResponse](t, first)
	b := decode[handler.PlaceOrderResponse](t, second)
	assert.Equal(t, a.OrderID, b.OrderID)
	assert.True(t, b.Replayed)
	assert.Equal(t, 1, s.db.OrderCount())
}

func TestGetOrder(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/orders", map[string]any{
		"items": []map[string]any{
			{"productId": "P1", "quantity": 1},
			{"productId": "P2", "quantity": 1},
		},
		"paymentType": "CARD",
		"orderType":   "TAKE_AWAY",
		"discount":    "10",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	placed := decode[handler.PlaceOrderResponse](t, w)

	w = s.do(http.MethodGet, "/api/orders/"+placed.OrderID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode[handler.OrderResponse](t, w)
	assert.Equal(t, "70.00", order.TotalAmount)
	assert.Equal(t, "10.00", order.Discount)
	assert.Equal(t, "TAKE_AWAY", order.OrderType)
	assert.Equal(t, "paid", order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Latte", order.Items[0].ProductName)
	assert.Equal(t, "Croissant", order.Items[1].ProductName)

	w = s.do(http.MethodGet, "/api/orders/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductStock(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/products/P1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	product := decode[handler.ProductResponse](t, w)
	assert.Equal(t, 10, product.Stock)

	w = s.do(http.MethodPut, "/api/products/P1/stock", map[string]int{"stock": 25, "version": product.Version}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[handler.ProductResponse](t, w)
	assert.Equal(t, 25, updated.Stock)
	assert.Equal(t, product.Version+1, updated.Version)

	w = s.do(http.MethodPut, "/api/products/P1/stock", map[string]int{"stock": 5, "version": product.Version}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPut, "/api/products/P1/stock", map[string]int{"stock": -1, "version": updated.Version}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/products/P1/stock", map[string]int{"stock": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/products/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettings(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/settings", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "THB", decode[domain.StoreSettings](t, w).Currency)

	w = s.do(http.MethodPut, "/api/settings", map[string]any{
		"storeName": "Corner Café",
		"currency":  "usd",
		"vatRate":   "0.07",
		"features":  map[string]bool{"loyalty": true},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/settings", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[domain.StoreSettings](t, w)
	assert.Equal(t, "Corner Café", got.StoreName)
	assert.Equal(t, "USD", got.Currency)
	assert.True(t, got.Features["loyalty"])

	w = s.do(http.MethodPut, "/api/settings", map[string]any{"storeName": "", "currency": "THB"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", nil, map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// deadlockedDB fails every transaction the way MySQL reports an InnoDB deadlock.
type deadlockedDB struct {
	*storage.MemoryAdapter
}

func (d deadlockedDB) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	return fmt.Errorf("%w: Error 1213: Deadlock found when trying to get lock", port.ErrLockConflict)
}

func TestPlaceOrder_LockConflictIs409(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := storage.NewMemoryAdapter()
	db.PutProduct(domain.Product{ID: "P1", Name: "Latte", Price: decimal.NewFromInt(50), Stock: 10, Active: true})

	log := logger.NewNop()
	orders := service.NewOrderService(deadlockedDB{db}, nil, log, service.OrderServiceConfig{TxTimeout: time.Second})
	engine := handler.NewEngine(log)
	settings := service.NewSettingsService(db, &memorySettingsCache{}, time.Minute, log)
	handler.RegisterRoutes(engine, handler.NewHTTPHandler(orders, service.NewCatalogService(db, log), settings, log))
	s := &testServer{engine: engine, db: db}

	w := s.do(http.MethodPost, "/api/orders", map[string]any{
		"items":       []map[string]any{{"productId": "P1", "quantity": 1}},
		"paymentType": "CASH",
	}, nil)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "checkout conflicted with a concurrent sale, retry", decode[handler.PlaceOrderResponse](t, w).Error)
	assert.Equal(t, 0, db.OrderCount())
}
