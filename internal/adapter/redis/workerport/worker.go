package workerport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
)

var _ secondary.WorkerRepository = (*WorkerRepository)(nil)

const (
	workerKeyPrefix   = "gearbroker:worker:"
	functionKeyPrefix = "gearbroker:function:"
	defaultExpiration = 1 * time.Minute
)

// WorkerRepository implements the WorkerRepository interface with Redis.
// Snapshots expire on their own; function index sets are pruned lazily.
type WorkerRepository struct {
	redisClient redis.UniversalClient
	expiration  time.Duration
	logger      primary.Logger
}

// NewWorkerRepository creates a new Redis worker repository. Snapshots live
// for expiration after their last save; a non-positive value uses one minute.
func NewWorkerRepository(redisClient redis.UniversalClient, expiration time.Duration, logger primary.Logger) *WorkerRepository {
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	return &WorkerRepository{
		redisClient: redisClient,
		expiration:  expiration,
		logger:      logger,
	}
}

func workerKey(connectionID string) string {
	return workerKeyPrefix + connectionID
}

func functionKey(function string) string {
	return functionKeyPrefix + function
}

// SaveWorker saves worker information to Redis
func (r *WorkerRepository) SaveWorker(ctx context.Context, worker *domain.WorkerInfo) error {
	workerJSON, err := json.Marshal(worker)
	if err != nil {
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	pipe := r.redisClient.TxPipeline()
	pipe.Set(ctx, workerKey(worker.ConnectionID), workerJSON, r.expiration)
	for _, function := range worker.Functions {
		pipe.SAdd(ctx, functionKey(function), worker.ConnectionID)
		pipe.Expire(ctx, functionKey(function), r.expiration)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to save worker info", "connectionID", worker.ConnectionID, "error", err)
		return fmt.Errorf("failed to save worker info: %w", err)
	}

	return nil
}

// GetWorker retrieves worker information from Redis by connection id
func (r *WorkerRepository) GetWorker(ctx context.Context, connectionID string) (*domain.WorkerInfo, error) {
	workerJSON, err := r.redisClient.Get(ctx, workerKey(connectionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get worker info: %w", err)
	}

	var worker domain.WorkerInfo
	if err := json.Unmarshal(workerJSON, &worker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker info: %w", err)
	}

	return &worker, nil
}

// GetWorkersByFunction retrieves workers advertising a function
func (r *WorkerRepository) GetWorkersByFunction(ctx context.Context, function string) ([]*domain.WorkerInfo, error) {
	ids, err := r.redisClient.SMembers(ctx, functionKey(function)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get worker ids: %w", err)
	}

	workers := make([]*domain.WorkerInfo, 0, len(ids))
	for _, id := range ids {
		worker, err := r.GetWorker(ctx, id)
		if err != nil {
			r.logger.Error("Failed to get worker", "connectionID", id, "error", err)
			continue
		}
		if worker == nil {
			// snapshot expired, drop it from the index
			if err := r.redisClient.SRem(ctx, functionKey(function), id).Err(); err != nil {
				r.logger.Warn("Failed to prune function index", "function", function, "connectionID", id, "error", err)
			}
			continue
		}
		workers = append(workers, worker)
	}

	return workers, nil
}

// GetAllWorkers retrieves all worker snapshots from Redis
func (r *WorkerRepository) GetAllWorkers(ctx context.Context) ([]*domain.WorkerInfo, error) {
	keys, err := r.scan(ctx, workerKeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	workers := make([]*domain.WorkerInfo, 0, len(keys))
	if len(keys) == 0 {
		return workers, nil
	}

	values, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve worker data: %w", err)
	}

	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var worker domain.WorkerInfo
		if err := json.Unmarshal([]byte(s), &worker); err != nil {
			return nil, fmt.Errorf("failed to unmarshal worker data: %w", err)
		}
		workers = append(workers, &worker)
	}

	return workers, nil
}

// RemoveInactiveWorkers deletes snapshots whose LastSeen is before cutoff
func (r *WorkerRepository) RemoveInactiveWorkers(ctx context.Context, cutoff time.Time) error {
	workers, err := r.GetAllWorkers(ctx)
	if err != nil {
		return err
	}

	for _, w := range workers {
		if !w.LastSeen.Before(cutoff) {
			continue
		}
		pipe := r.redisClient.TxPipeline()
		pipe.Del(ctx, workerKey(w.ConnectionID))
		for _, function := range w.Functions {
			pipe.SRem(ctx, functionKey(function), w.ConnectionID)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove worker %s: %w", w.ConnectionID, err)
		}
	}

	return nil
}

func (r *WorkerRepository) scan(ctx context.Context, pattern string) ([]string, error) {
	var cursor uint64
	var keys []string
	for {
		batch, next, err := r.redisClient.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan worker keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
