package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

// WorkerRepository keeps worker snapshots in process memory
type WorkerRepository struct {
	mu      sync.RWMutex
	workers map[string]*domain.WorkerInfo
}

func NewWorkerRepository() *WorkerRepository {
	return &WorkerRepository{
		workers: make(map[string]*domain.WorkerInfo),
	}
}

func (r *WorkerRepository) SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *worker
	r.workers[worker.ConnectionID] = &cp
	return nil
}

func (r *WorkerRepository) GetWorker(ctx context.Context, connectionID string) (*domain.WorkerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, exists := r.workers[connectionID]
	if !exists {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *WorkerRepository) GetWorkersByFunction(ctx context.Context, function string) ([]*domain.WorkerInfo, error) {
	all, _ := r.GetAllWorkers(ctx)
	workers := make([]*domain.WorkerInfo, 0, len(all))
	for _, w := range all {
		for _, f := range w.Functions {
			if f == function {
				workers = append(workers, w)
				break
			}
		}
	}
	return workers, nil
}

func (r *WorkerRepository) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	workers := make([]*domain.WorkerInfo, 0, len(r.workers))
	for _, w := range r.workers {
		cp := *w
		workers = append(workers, &cp)
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].ConnectionID < workers[j].ConnectionID })
	return workers, nil
}

func (r *WorkerRepository) RemoveInactiveWorkers(ctx context.Context, cutoff time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.workers {
		if w.LastSeen.Before(cutoff) {
			delete(r.workers, id)
		}
	}
	return nil
}
