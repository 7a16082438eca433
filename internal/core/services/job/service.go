package job

import (
	"context"
	"time"

	"gitlab.com/gearbroker.net/internal/domain"
)

// IJobHistoryService records job lifecycle events and serves the history
type IJobHistoryService interface {
	// RecordEvent folds one lifecycle event into the job's record
	RecordEvent(ctx context.Context, event domain.JobEvent) error

	// GetJob retrieves a recorded job by ID
	GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error)

	// ListRecent retrieves up to limit records, newest first
	ListRecent(ctx context.Context, limit int) ([]*domain.JobRecord, error)

	// PurgeFinished deletes records finished more than olderThan ago
	PurgeFinished(ctx context.Context, olderThan time.Duration) (int64, error)
}
