package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/adapter/storage"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/config"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

const (
	productID     = "stress-test-latte"
	initialStock  = 20
	totalRequests = 50
)

// Fires totalRequests single-unit checkouts at one product holding initialStock
// units and checks that exactly initialStock of them succeed.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	// Reset the product
	_, err = db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, active, version) VALUES (?, 'Stress Latte', 55.00, ?, TRUE, 0)
		ON DUPLICATE KEY UPDATE stock = VALUES(stock), active = TRUE`,
		productID, initialStock)
	if err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	var idempotency port.IdempotencyRepository
	if err := rdb.Ping(ctx).Err(); err == nil {
		idempotency = storage.NewRedisAdapter(rdb)
	} else {
		fmt.Fprintf(os.Stderr, "redis unavailable, running without idempotency claims: %v\n", err)
	}

	orderService := service.NewOrderService(mysqlAdapter, idempotency, logger.NewNop(), service.OrderServiceConfig{
		IdempotencyTTL: time.Minute,
		TxTimeout:      cfg.Checkout.TxTimeout,
	})

	var successCount, stockFailCount, otherFailCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, service.PlaceOrderCommand{
				Items:          []domain.CartLine{{ProductID: productID, Quantity: 1}},
				PaymentType:    domain.PaymentTypeCash,
				IdempotencyKey: uuid.NewString(),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				stockFailCount.Add(1)
			default:
				otherFailCount.Add(1)
				fmt.Fprintf(os.Stderr, "unexpected error: %v\n", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	stockFail := stockFailCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", stockFail)
	fmt.Printf("Other failures:   %d\n", otherFailCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && stockFail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, stockFail)
	}

	product, err := mysqlAdapter.GetProduct(ctx, productID)
	if err != nil || product == nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock:      %d\n", product.Stock)

	if product.Stock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", product.Stock)
	}
}
