package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

// SettingsService is a read-through cache over the stored settings row.
// Writes go to the database first and then drop the cached copy.
type SettingsService struct {
	db    port.DatabaseRepository
	cache port.SettingsCache
	ttl   time.Duration
	log   logger.Logger
}

func NewSettingsService(db port.DatabaseRepository, cache port.SettingsCache, ttl time.Duration, log logger.Logger) *SettingsService {
	return &SettingsService{db: db, cache: cache, ttl: ttl, log: log}
}

func (s *SettingsService) Get(ctx context.Context) (domain.StoreSettings, error) {
	log := s.log.WithContext(ctx)

	cached, err := s.cache.GetSettings(ctx)
	if err != nil {
		log.Warn("settings cache read failed", logger.Error(err))
	}
	if cached != nil {
		return *cached, nil
	}

	stored, err := s.db.GetSettings(ctx)
	if err != nil {
		return domain.StoreSettings{}, fmt.Errorf("load settings: %w", err)
	}

	settings := domain.DefaultStoreSettings()
	if stored != nil {
		settings = *stored
	}

	if err := s.cache.SetSettings(ctx, settings, s.ttl); err != nil {
		log.Warn("settings cache write failed", logger.Error(err))
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error) {
	settings.StoreName = strings.TrimSpace(settings.StoreName)
	settings.Currency = strings.ToUpper(strings.TrimSpace(settings.Currency))

	if settings.StoreName == "" {
		return domain.StoreSettings{}, fmt.Errorf("store name is required: %w", ErrInvalidSettings)
	}
	if len(settings.Currency) != 3 {
		return domain.StoreSettings{}, fmt.Errorf("currency must be an ISO 4217 code: %w", ErrInvalidSettings)
	}
	if settings.VATRate.IsNegative() || settings.VATRate.GreaterThan(decimal.NewFromInt(1)) {
		return domain.StoreSettings{}, fmt.Errorf("vat rate must be within [0, 1]: %w", ErrInvalidSettings)
	}
	if settings.Features == nil {
		settings.Features = map[string]bool{}
	}
	settings.UpdatedAt = time.Now().UTC()

	if err := s.db.SaveSettings(ctx, settings); err != nil {
		return domain.StoreSettings{}, fmt.Errorf("save settings: %w", err)
	}

	if err := s.cache.InvalidateSettings(ctx); err != nil {
		// A stale copy lives at most one TTL.
		s.log.WithContext(ctx).Error("settings cache invalidation failed", logger.Error(err))
	}
	return settings, nil
}
