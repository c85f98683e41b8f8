package service

import (
	"context"
	"fmt"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

// CatalogService covers the administrative product reads and edits checkout depends on.
type CatalogService struct {
	db  port.DatabaseRepository
	log logger.Logger
}

func NewCatalogService(db port.DatabaseRepository, log logger.Logger) *CatalogService {
	return &CatalogService{db: db, log: log}
}

func (s *CatalogService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, &NotFoundError{Entity: "product", ID: productID}
	}
	return product, nil
}

// SetStock overwrites stock. version must match the product's current version,
// otherwise port.ErrOptimisticLock is returned.
func (s *CatalogService) SetStock(ctx context.Context, productID string, stock, version int) (*domain.Product, error) {
	if stock < 0 {
		return nil, ErrInvalidStock
	}

	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	product.Stock = stock
	product.Version = version
	if err := s.db.UpdateProductStock(ctx, *product); err != nil {
		return nil, fmt.Errorf("update stock for %s: %w", productID, err)
	}

	s.log.WithContext(ctx).Info("stock set",
		logger.String("product_id", productID),
		logger.Int("stock", stock),
	)

	product.Version = version + 1
	return product, nil
}
