// Package jobrepository stores job history in a SQL database through sqlx.
// Both the postgres and sqlite3 drivers are supported.
package jobrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"gitlab.com/gearbroker.net/internal/core/ports/primary"
	"gitlab.com/gearbroker.net/internal/core/ports/secondary"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/static/errs"
)

var _ secondary.JobHistoryRepository = (*JobRepository)(nil)

// JobRepository implements the JobHistoryRepository interface with sqlx
type JobRepository struct {
	db     *sqlx.DB
	logger primary.Logger
}

// NewJobRepository creates a new SQL job history repository
func NewJobRepository(db *sqlx.DB, logger primary.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
	}
}

// Open connects with the given driver and url and ensures the schema exists
func Open(ctx context.Context, driver, url string, logger primary.Logger) (*JobRepository, error) {
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// a :memory: database lives per connection
		db.SetMaxOpenConns(1)
	}

	r := NewJobRepository(db, logger)
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *JobRepository) DB() *sqlx.DB {
	return r.db
}

func (r *JobRepository) Close() error {
	return r.db.Close()
}

// EnsureSchema creates the history table when missing
func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tbl := domain.GetJobHistoryTable()
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s VARCHAR(64) PRIMARY KEY,
			%s VARCHAR(255) NOT NULL,
			%s VARCHAR(16) NOT NULL,
			%s VARCHAR(64) NOT NULL DEFAULT '',
			%s VARCHAR(64) NOT NULL DEFAULT '',
			%s INTEGER NOT NULL DEFAULT 0,
			%s TIMESTAMP NOT NULL,
			%s TIMESTAMP NULL,
			%s TIMESTAMP NULL
		)`,
		tbl.TableName(),
		tbl.ID, tbl.Function, tbl.Status, tbl.ClientID, tbl.WorkerID,
		tbl.BodySize, tbl.CreatedAt, tbl.AssignedAt, tbl.FinishedAt,
	)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		r.logger.Error("Failed to create job history table", "error", err)
		return fmt.Errorf("failed to create job history table: %w", err)
	}
	return nil
}

// SaveJob upserts a job record keyed by id
func (r *JobRepository) SaveJob(ctx context.Context, job *domain.JobRecord) error {
	record := normalize(job)

	query := `
		INSERT INTO job_history (
			id, function_name, status, client_id, worker_id,
			body_size, created_at, assigned_at, finished_at
		) VALUES (
			:id, :function_name, :status, :client_id, :worker_id,
			:body_size, :created_at, :assigned_at, :finished_at
		)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			worker_id = excluded.worker_id,
			assigned_at = excluded.assigned_at,
			finished_at = excluded.finished_at
	`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		r.logger.Error("Failed to save job", "jobID", job.ID, "error", err)
		return fmt.Errorf("failed to save job: %w", err)
	}

	return nil
}

// GetJob retrieves a job record by id
func (r *JobRepository) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	query := r.db.Rebind(`
		SELECT id, function_name, status, client_id, worker_id,
			   body_size, created_at, assigned_at, finished_at
		FROM job_history
		WHERE id = ?
	`)

	var job domain.JobRecord
	if err := r.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrJobNotFound
		}
		r.logger.Error("Failed to get job", "jobID", jobID, "error", err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// GetRecentJobs returns up to limit records, newest first
func (r *JobRepository) GetRecentJobs(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	query := r.db.Rebind(`
		SELECT id, function_name, status, client_id, worker_id,
			   body_size, created_at, assigned_at, finished_at
		FROM job_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)

	jobs := make([]*domain.JobRecord, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		r.logger.Error("Failed to get recent jobs", "error", err)
		return nil, fmt.Errorf("failed to get recent jobs: %w", err)
	}

	return jobs, nil
}

// DeleteFinishedBefore removes records finished before cutoff
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`
		DELETE FROM job_history
		WHERE finished_at IS NOT NULL AND finished_at < ?
	`)

	res, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		r.logger.Error("Failed to purge job history", "error", err)
		return 0, fmt.Errorf("failed to purge job history: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged jobs: %w", err)
	}
	return n, nil
}

// normalize stores every timestamp in UTC so comparisons hold on sqlite
func normalize(job *domain.JobRecord) *domain.JobRecord {
	cp := *job
	cp.CreatedAt = cp.CreatedAt.UTC()
	if cp.AssignedAt != nil {
		t := cp.AssignedAt.UTC()
		cp.AssignedAt = &t
	}
	if cp.FinishedAt != nil {
		t := cp.FinishedAt.UTC()
		cp.FinishedAt = &t
	}
	return &cp
}
