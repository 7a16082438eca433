package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
)

var _ IWorkerSnapshotService = &WorkerSnapshotService{}

// WorkerSource lists the broker's live workers
type WorkerSource interface {
	Workers() []*domain.WorkerInfo
}

// WorkerSnapshotService implements the IWorkerSnapshotService interface
type WorkerSnapshotService struct {
	source     WorkerSource
	workerRepo secondary.WorkerRepository
	staleAfter time.Duration
	logger     primary.Logger
	now        func() time.Time
}

// NewWorkerSnapshotService creates a new snapshot service. Snapshots older
// than staleAfter are reported inactive and removed on the next Snapshot.
func NewWorkerSnapshotService(
	source WorkerSource,
	workerRepo secondary.WorkerRepository,
	staleAfter time.Duration,
	logger primary.Logger,
) *WorkerSnapshotService {
	return &WorkerSnapshotService{
		source:     source,
		workerRepo: workerRepo,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Snapshot stores every live worker and drops stale entries
func (s *WorkerSnapshotService) Snapshot(ctx context.Context) error {
	now := s.now()
	var result error

	workers := s.source.Workers()
	for _, w := range workers {
		if len(w.Functions) == 0 {
			continue
		}
		w.LastSeen = now
		if err := s.workerRepo.SaveWorker(ctx, w); err != nil {
			result = multierror.Append(result, fmt.Errorf("save worker %s: %w", w.ConnectionID, err))
		}
	}

	if err := s.workerRepo.RemoveInactiveWorkers(ctx, now.Add(-s.staleAfter)); err != nil {
		result = multierror.Append(result, fmt.Errorf("remove inactive workers: %w", err))
	}

	if result != nil {
		s.logger.Error("Worker snapshot incomplete", "error", result)
		return result
	}

	s.logger.Debug("Worker snapshot stored", "count", len(workers))
	return nil
}

// GetAllWorkers gets all stored snapshots annotated with IsActive
func (s *WorkerSnapshotService) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	s.logger.Debug("Getting all workers")

	workers, err := s.workerRepo.GetAllWorkers(ctx)
	if err != nil {
		s.logger.Error("Failed to get all workers", "error", err)
		return nil, fmt.Errorf("failed to get all workers: %w", err)
	}

	s.annotate(workers)
	return workers, nil
}

// GetWorkersByFunction gets stored snapshots advertising a function
func (s *WorkerSnapshotService) GetWorkersByFunction(ctx context.Context, function string) ([]*domain.WorkerInfo, error) {
	workers, err := s.workerRepo.GetWorkersByFunction(ctx, function)
	if err != nil {
		s.logger.Error("Failed to get workers by function", "function", function, "error", err)
		return nil, fmt.Errorf("failed to get workers by function: %w", err)
	}

	s.annotate(workers)
	return workers, nil
}

func (s *WorkerSnapshotService) annotate(workers []*domain.WorkerInfo) {
	threshold := s.now().Add(-s.staleAfter)
	for _, w := range workers {
		w.IsActive = w.LastSeen.After(threshold)
	}
}
