package service

import (
	"context"
	"sync"
	"time"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

const publishTimeout = 5 * time.Second

// StartEventWorkers drains queue into publisher with count goroutines.
// The returned WaitGroup completes once queue is closed and drained.
func StartEventWorkers(count int, queue <-chan domain.OrderPlaced, publisher port.EventPublisher, log logger.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, queue, publisher, log)
		}(i)
	}
	return &wg
}

func workerLoop(id int, queue <-chan domain.OrderPlaced, publisher port.EventPublisher, log logger.Logger) {
	log = log.WithFields(logger.Int("worker", id))

	for event := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		if err := publisher.PublishOrderPlaced(ctx, event); err != nil {
			log.Error("failed to publish OrderPlaced", logger.String("order_id", event.OrderID), logger.Error(err))
		} else {
			log.Debug("published OrderPlaced", logger.String("order_id", event.OrderID))
		}

		cancel()
	}
}
