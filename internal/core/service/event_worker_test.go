package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestEventWorkers_DrainQueue(t *testing.T) {
	queue := make(chan domain.OrderPlaced, 3)
	queue <- domain.OrderPlaced{OrderID: "o-1"}
	queue <- domain.OrderPlaced{OrderID: "o-2"}
	queue <- domain.OrderPlaced{OrderID: "o-3"}
	close(queue)

	publisher := new(mockPublisher)
	publisher.On("PublishOrderPlaced", mock.Anything, mock.MatchedBy(func(e domain.OrderPlaced) bool {
		return e.OrderID == "o-2"
	})).Return(errors.New("broker unavailable"))
	publisher.On("PublishOrderPlaced", mock.Anything, mock.Anything).Return(nil)

	wg := service.StartEventWorkers(2, queue, publisher, logger.NewNop())
	wg.Wait()

	publisher.AssertNumberOfCalls(t, "PublishOrderPlaced", 3)
}
