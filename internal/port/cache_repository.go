package port

import (
	"context"
	"time"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
)

type IdempotencyRepository interface {
	// SetIdempotency claims a key, returns false if it already exists
	SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseIdempotency drops a claim so the caller may retry
	ReleaseIdempotency(ctx context.Context, key string) error
}

type SettingsCache interface {
	// GetSettings returns nil on a cache miss
	GetSettings(ctx context.Context) (*domain.StoreSettings, error)
	SetSettings(ctx context.Context, settings domain.StoreSettings, ttl time.Duration) error
	InvalidateSettings(ctx context.Context) error
}
