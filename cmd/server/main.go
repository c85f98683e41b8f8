package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/adapter/handler"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/adapter/messaging"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/adapter/storage"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/config"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLog, err := logger.NewZapLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer appLog.Sync()
	appLog = appLog.WithFields(logger.String("app", cfg.App.Name))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		appLog.Fatal("failed to open mysql", logger.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		appLog.Fatal("failed to ping mysql", logger.Error(err))
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		appLog.Fatal("failed to apply schema", logger.Error(err))
	}
	appLog.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Checkout and settings degrade to the database alone.
		appLog.Warn("redis unreachable at startup", logger.String("addr", cfg.Redis.Addr), logger.Error(err))
	} else {
		appLog.Info("connected to redis")
	}
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Initialize services
	queueSize := 0
	if cfg.Kafka.EventsEnabled() {
		queueSize = cfg.Checkout.EventQueueSize
	}
	orderService := service.NewOrderService(mysqlAdapter, redisAdapter, appLog, service.OrderServiceConfig{
		EventQueueSize: queueSize,
		IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
		TxTimeout:      cfg.Checkout.TxTimeout,
	})
	catalogService := service.NewCatalogService(mysqlAdapter, appLog)
	settingsService := service.NewSettingsService(mysqlAdapter, redisAdapter, cfg.Checkout.SettingsCacheTTL, appLog)

	// Start event workers
	var (
		publisher *messaging.KafkaPublisher
		workers   = &sync.WaitGroup{}
	)
	if cfg.Kafka.EventsEnabled() {
		encoder, err := messaging.NewAvroEncoder()
		if err != nil {
			appLog.Fatal("failed to build avro codec", logger.Error(err))
		}
		publisher, err = messaging.NewKafkaPublisher(cfg.Kafka, encoder, appLog)
		if err != nil {
			appLog.Fatal("failed to create kafka publisher", logger.Error(err))
		}
		workers = service.StartEventWorkers(cfg.Checkout.EventWorkers, orderService.GetEventQueue(), publisher, appLog)
		appLog.Info("started event workers",
			logger.Int("workers", cfg.Checkout.EventWorkers),
			logger.String("topic", cfg.Kafka.OrderTopic),
		)
	} else {
		appLog.Info("kafka not configured, OrderPlaced events disabled")
	}

	appLog.Info("services ready",
		logger.Bool("events_enabled", cfg.Kafka.EventsEnabled()),
		logger.Int("event_queue_size", queueSize),
	)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(handler.GRPCServerOptions()...)
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, appLog))

	lis, err := net.Listen("tcp", cfg.GRPC.Address())
	if err != nil {
		appLog.Fatal("failed to listen", logger.String("addr", cfg.GRPC.Address()), logger.Error(err))
	}

	go func() {
		appLog.Info("gRPC server listening", logger.String("addr", cfg.GRPC.Address()))
		if err := grpcServer.Serve(lis); err != nil {
			appLog.Error("gRPC server error", logger.Error(err))
		}
	}()

	// Initialize HTTP server
	if cfg.App.Env == "production" || cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := handler.NewEngine(appLog)
	handler.RegisterRoutes(engine, handler.NewHTTPHandler(orderService, catalogService, settingsService, appLog))

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address(),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLog.Info("HTTP server listening", logger.String("addr", cfg.HTTP.Address()))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server error", logger.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown error", logger.Error(err))
	}
	appLog.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	appLog.Info("gRPC server stopped")

	// Close event queue and let workers drain it
	orderService.Close()
	workers.Wait()
	if publisher != nil {
		publisher.Close()
	}
	appLog.Info("event workers stopped")

	rdb.Close()
	db.Close()
	appLog.Info("connections closed")
}
