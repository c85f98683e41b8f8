package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	GRPC     ServerConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Checkout CheckoutConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type ServerConfig struct {
	Host string
	Port int
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

// CheckoutConfig tunes the order placement flow.
type CheckoutConfig struct {
	EventQueueSize   int
	EventWorkers     int
	IdempotencyTTL   time.Duration
	SettingsCacheTTL time.Duration
	TxTimeout        time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "cafe-pos"),
			Env:  getEnv("APP_ENV", "development"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnvAsInt("GRPC_PORT", 50051),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/cafepos?parseTime=true"),
			MaxOpenConns:    getEnvAsInt("MYSQL_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvAsInt("MYSQL_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getEnvAsDuration("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 100),
		},
		Kafka: KafkaConfig{
			Brokers:    splitAndTrim(getEnv("KAFKA_BOOTSTRAP_SERVERS", "")),
			OrderTopic: getEnv("KAFKA_ORDER_TOPIC", "pos.orders.placed"),
		},
		Checkout: CheckoutConfig{
			EventQueueSize:   getEnvAsInt("CHECKOUT_EVENT_QUEUE_SIZE", 1000),
			EventWorkers:     getEnvAsInt("CHECKOUT_EVENT_WORKERS", 4),
			IdempotencyTTL:   getEnvAsDuration("CHECKOUT_IDEMPOTENCY_TTL", 24*time.Hour),
			SettingsCacheTTL: getEnvAsDuration("SETTINGS_CACHE_TTL", 10*time.Minute),
			TxTimeout:        getEnvAsDuration("CHECKOUT_TX_TIMEOUT", 5*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EventsEnabled reports whether order events should be published.
func (k KafkaConfig) EventsEnabled() bool {
	return len(k.Brokers) > 0
}

/* ================= helpers ================= */

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("HTTP_PORT is invalid")
	}
	if c.GRPC.Port <= 0 {
		return fmt.Errorf("GRPC_PORT is invalid")
	}
	if c.HTTP.Port == c.GRPC.Port && c.HTTP.Host == c.GRPC.Host {
		return fmt.Errorf("HTTP_PORT and GRPC_PORT must differ")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.Kafka.EventsEnabled() && c.Kafka.OrderTopic == "" {
		return fmt.Errorf("KAFKA_ORDER_TOPIC is required when brokers are set")
	}
	if c.Checkout.EventQueueSize <= 0 || c.Checkout.EventWorkers <= 0 {
		return fmt.Errorf("checkout event queue size and workers must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if val := strings.TrimSpace(p); val != "" {
			out = append(out, val)
		}
	}
	return out
}
