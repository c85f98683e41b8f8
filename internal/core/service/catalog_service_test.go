package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/adapter/storage"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

func TestCatalog_SetStock(t *testing.T) {
	db := storage.NewMemoryAdapter()
	db.PutProduct(domain.Product{ID: "P1", Name: "Latte", Price: decimal.NewFromInt(50), Stock: 2, Active: true, Version: 4})
	svc := service.NewCatalogService(db, logger.NewNop())

	product, err := svc.SetStock(context.Background(), "P1", 25, 4)
	require.NoError(t, err)
	assert.Equal(t, 25, product.Stock)
	assert.Equal(t, 5, product.Version)

	_, err = svc.SetStock(context.Background(), "P1", 30, 4)
	assert.ErrorIs(t, err, port.ErrOptimisticLock)

	stored, err := svc.GetProduct(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 25, stored.Stock)
}

func TestCatalog_SetStockRejectsNegative(t *testing.T) {
	db := storage.NewMemoryAdapter()
	db.PutProduct(domain.Product{ID: "P1", Stock: 2})
	svc := service.NewCatalogService(db, logger.NewNop())

	_, err := svc.SetStock(context.Background(), "P1", -1, 0)
	assert.ErrorIs(t, err, service.ErrInvalidStock)
}

func TestCatalog_GetProductNotFound(t *testing.T) {
	svc := service.NewCatalogService(storage.NewMemoryAdapter(), logger.NewNop())

	_, err := svc.GetProduct(context.Background(), "nope")
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = svc.SetStock(context.Background(), "nope", 1, 0)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
