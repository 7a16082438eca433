package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/static/errs"
)

var _ secondary.JobHistoryRepository = (*JobHistoryRepository)(nil)

// JobHistoryRepository keeps job records in process memory
type JobHistoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.JobRecord
}

func NewJobHistoryRepository() *JobHistoryRepository {
	return &JobHistoryRepository{
		jobs: make(map[string]*domain.JobRecord),
	}
}

func (r *JobHistoryRepository) SaveJob(ctx context.Context, job *domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *JobHistoryRepository) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, exists := r.jobs[jobID]
	if !exists {
		return nil, errs.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *JobHistoryRepository) GetRecentJobs(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*domain.JobRecord, 0, len(r.jobs))
	for _, job := range r.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *JobHistoryRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, job := range r.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}
