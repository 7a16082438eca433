package worker

import (
	"context"

	"gitlab.com/gearbroker.net/internal/domain"
)

// IWorkerSnapshotService persists point-in-time views of connected workers
type IWorkerSnapshotService interface {
	// Snapshot stores every live worker and drops stale entries
	Snapshot(ctx context.Context) error

	// GetAllWorkers gets all stored snapshots annotated with IsActive
	GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error)

	// GetWorkersByFunction gets stored snapshots advertising a function
	GetWorkersByFunction(ctx context.Context, function string) ([]*domain.WorkerInfo, error)
}
