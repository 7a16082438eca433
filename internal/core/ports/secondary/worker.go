package secondary

import (
	"context"
	"time"

	"gitlab.com/gearbroker.net/internal/domain"
)

type WorkerRepository interface {
	// SaveWorker stores a worker snapshot keyed by connection id
	SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error

	// GetWorker retrieves a worker snapshot, nil when unknown
	GetWorker(ctx context.Context, connectionID string) (*domain.WorkerInfo, error)

	// GetWorkersByFunction retrieves snapshots of workers advertising a function
	GetWorkersByFunction(ctx context.Context, function string) ([]*domain.WorkerInfo, error)

	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)

	// RemoveInactiveWorkers drops snapshots not refreshed since cutoff
	RemoveInactiveWorkers(ctx context.Context, cutoff time.Time) error
}
