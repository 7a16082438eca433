package secondary

import (
	"context"
	"time"

	"gitlab.com/gearbroker.net/internal/domain"
)

// JobHistoryRepository stores job lifecycle records
type JobHistoryRepository interface {
	// SaveJob inserts or replaces a record
	SaveJob(ctx context.Context, job *domain.JobRecord) error

	// GetJob returns errs.ErrJobNotFound for unknown ids
	GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error)

	// GetRecentJobs returns up to limit records, newest first
	GetRecentJobs(ctx context.Context, limit int) ([]*domain.JobRecord, error)

	// DeleteFinishedBefore removes records finished before cutoff
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
