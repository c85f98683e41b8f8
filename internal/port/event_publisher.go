package port

import (
	"context"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
)

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error
}
