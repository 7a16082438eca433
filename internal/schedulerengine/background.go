package schedulerengine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/hashicorp/go-multierror"

	"gitlab.com/gearbroker.net/internal/config"
	"gitlab.com/gearbroker.net/internal/core/ports/primary"
)

// Snapshotter stores the current worker set
type Snapshotter interface {
	Snapshot(ctx context.Context) error
}

// HistoryPurger removes old finished job records
type HistoryPurger interface {
	PurgeFinished(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SchedulerEngine runs the broker's periodic housekeeping
type SchedulerEngine struct {
	SchedulerCfg *config.ScheduleSvcCfg
	snapshotter  Snapshotter
	purger       HistoryPurger
	logger       primary.Logger
	scheduler    gocron.Scheduler
	cancel       context.CancelFunc
}

func NewSchedulerEngine(
	SchedulerCfg *config.ScheduleSvcCfg,
	snapshotter Snapshotter,
	purger HistoryPurger,
	logger primary.Logger,
) *SchedulerEngine {
	return &SchedulerEngine{
		SchedulerCfg: SchedulerCfg,
		snapshotter:  snapshotter,
		purger:       purger,
		logger:       logger,
	}
}

// Start registers the housekeeping jobs and starts the scheduler.
// A zero interval disables the corresponding job.
func (s *SchedulerEngine) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var result error

	if s.snapshotter != nil && s.SchedulerCfg.SnapshotInterval > 0 {
		_, err = scheduler.NewJob(
			gocron.DurationJob(s.SchedulerCfg.SnapshotInterval),
			gocron.NewTask(s.snapshotWorkers, ctx),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("snapshot job: %w", err))
		}
	}

	if s.purger != nil && s.SchedulerCfg.HistoryPurgeInterval > 0 {
		_, err = scheduler.NewJob(
			gocron.DurationJob(s.SchedulerCfg.HistoryPurgeInterval),
			gocron.NewTask(s.purgeHistory, ctx),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("purge job: %w", err))
		}
	}

	if result != nil {
		cancel()
		_ = scheduler.Shutdown()
		return result
	}

	s.scheduler = scheduler
	s.cancel = cancel
	scheduler.Start()
	s.logger.Info("Scheduler engine started",
		"snapshotInterval", s.SchedulerCfg.SnapshotInterval,
		"purgeInterval", s.SchedulerCfg.HistoryPurgeInterval)
	return nil
}

// Stop cancels running tasks and shuts the scheduler down
func (s *SchedulerEngine) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	s.scheduler = nil
	return nil
}

func (s *SchedulerEngine) snapshotWorkers(ctx context.Context) {
	if err := s.snapshotter.Snapshot(ctx); err != nil {
		s.logger.Error("Worker snapshot failed", "error", err)
	}
}

func (s *SchedulerEngine) purgeHistory(ctx context.Context) {
	if _, err := s.purger.PurgeFinished(ctx, s.SchedulerCfg.HistoryRetention); err != nil {
		s.logger.Error("History purge failed", "error", err)
	}
}
