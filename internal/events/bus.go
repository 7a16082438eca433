package events

import (
	"context"
	"sync"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
)

var _ secondary.EventPublisher = (*Bus)(nil)

// Subscriber consumes job events on the bus goroutine
type Subscriber func(ctx context.Context, event domain.JobEvent)

// Bus decouples the broker from slow event consumers. Publish never
// blocks; events are dropped when the buffer is full.
type Bus struct {
	ch          chan domain.JobEvent
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      primary.Logger
}

func NewBus(size int, logger primary.Logger) *Bus {
	if size <= 0 {
		size = 1
	}
	return &Bus{
		ch:     make(chan domain.JobEvent, size),
		logger: logger,
	}
}

// Subscribe registers a consumer. Call before Run.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

func (b *Bus) Publish(event domain.JobEvent) {
	select {
	case b.ch <- event:
	default:
		b.logger.Warn("Job event dropped", "type", event.Type, "jobID", event.JobID)
	}
}

// Run delivers events until ctx is done
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.ch:
			b.mu.RLock()
			subscribers := b.subscribers
			b.mu.RUnlock()
			for _, s := range subscribers {
				s(ctx, event)
			}
		}
	}
}
