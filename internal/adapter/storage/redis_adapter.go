package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	settingsKey          = "settings:store"
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) GetSettings(ctx context.Context) (*domain.StoreSettings, error) {
	data, err := r.client.Get(ctx, settingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s domain.StoreSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode cached settings: %w", err)
	}
	return &s, nil
}

func (r *RedisAdapter) SetSettings(ctx context.Context, settings domain.StoreSettings, ttl time.Duration) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return r.client.Set(ctx, settingsKey, data, ttl).Err()
}

func (r *RedisAdapter) InvalidateSettings(ctx context.Context) error {
	return r.client.Del(ctx, settingsKey).Err()
}
