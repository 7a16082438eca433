package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/static/errs"
)

var _ IJobHistoryService = (*JobHistoryService)(nil)

const defaultListLimit = 100

// JobHistoryService implements the IJobHistoryService interface
type JobHistoryService struct {
	jobRepo secondary.JobHistoryRepository
	logger  primary.Logger
	now     func() time.Time
}

// NewJobHistoryService creates a new job history service
func NewJobHistoryService(jobRepo secondary.JobHistoryRepository, logger primary.Logger) *JobHistoryService {
	return &JobHistoryService{
		jobRepo: jobRepo,
		logger:  logger,
		now:     time.Now,
	}
}

// Subscriber adapts RecordEvent to the event bus signature
func (s *JobHistoryService) Subscriber(ctx context.Context, event domain.JobEvent) {
	if err := s.RecordEvent(ctx, event); err != nil {
		s.logger.Error("Failed to record job event", "type", event.Type, "jobId", event.JobID, "error", err)
	}
}

// RecordEvent folds one lifecycle event into the job's record
func (s *JobHistoryService) RecordEvent(ctx context.Context, event domain.JobEvent) error {
	record, err := s.jobRepo.GetJob(ctx, event.JobID)
	if err != nil {
		if !errors.Is(err, errs.ErrJobNotFound) {
			return fmt.Errorf("failed to load job record: %w", err)
		}
		record = &domain.JobRecord{
			ID:        event.JobID,
			Function:  event.Function,
			ClientID:  event.ClientID,
			BodySize:  event.BodySize,
			CreatedAt: event.At,
		}
	}

	// a finished record is never reopened
	if record.Status.Finished() {
		s.logger.Debug("Ignoring event for finished job", "type", event.Type, "jobId", event.JobID)
		return nil
	}

	record.Status = event.Status()
	if event.WorkerID != "" {
		record.WorkerID = event.WorkerID
	}

	at := event.At
	switch event.Type {
	case domain.JobEventAssigned:
		record.AssignedAt = &at
	case domain.JobEventCompleted, domain.JobEventFailed, domain.JobEventDiscarded:
		record.FinishedAt = &at
	}

	if err := s.jobRepo.SaveJob(ctx, record); err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}

	s.logger.Debug("Job event recorded", "type", event.Type, "jobId", event.JobID, "status", record.Status)
	return nil
}

// GetJob retrieves a recorded job by ID
func (s *JobHistoryService) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return s.jobRepo.GetJob(ctx, jobID)
}

// ListRecent retrieves up to limit records, newest first
func (s *JobHistoryService) ListRecent(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	jobs, err := s.jobRepo.GetRecentJobs(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list recent jobs", "error", err)
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	return jobs, nil
}

// PurgeFinished deletes records finished more than olderThan ago
func (s *JobHistoryService) PurgeFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	n, err := s.jobRepo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to purge job history", "error", err)
		return 0, fmt.Errorf("failed to purge job history: %w", err)
	}
	if n > 0 {
		s.logger.Info("Purged job history", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
