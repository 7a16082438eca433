package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gearbroker.net/internal/adapter/logging"
	"gitlab.com/gearbroker.net/internal/adapter/memory"
	"gitlab.com/gearbroker.net/internal/domain"
	"gitlab.com/gearbroker.net/internal/static/errs"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func event(t domain.JobEventType, offset time.Duration, workerID string) domain.JobEvent {
	return domain.JobEvent{
		Type:     t,
		JobID:    "H:broker:1",
		Function: "reverse",
		ClientID: "conn-1",
		WorkerID: workerID,
		BodySize: 3,
		At:       base.Add(offset),
	}
}

func TestRecordEvent_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewJobHistoryService(memory.NewJobHistoryRepository(), logging.NewNopLogger())

	tests := []struct {
		name   string
		event  domain.JobEvent
		status domain.JobStatus
	}{
		{"created", event(domain.JobEventCreated, 0, ""), domain.JobStatusPending},
		{"assigned", event(domain.JobEventAssigned, time.Second, "conn-2"), domain.JobStatusRunning},
		{"completed", event(domain.JobEventCompleted, 2*time.Second, "conn-2"), domain.JobStatusCompleted},
		{"late failure ignored", event(domain.JobEventFailed, 3*time.Second, "conn-2"), domain.JobStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, svc.RecordEvent(ctx, tt.event))
			got, err := svc.GetJob(ctx, "H:broker:1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
		})
	}

	got, err := svc.GetJob(ctx, "H:broker:1")
	require.NoError(t, err)
	assert.Equal(t, "conn-2", got.WorkerID)
	assert.Equal(t, base, got.CreatedAt)
	require.NotNil(t, got.AssignedAt)
	assert.Equal(t, base.Add(time.Second), *got.AssignedAt)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, base.Add(2*time.Second), *got.FinishedAt)
}

func TestRecordEvent_WithoutCreated(t *testing.T) {
	ctx := context.Background()
	svc := NewJobHistoryService(memory.NewJobHistoryRepository(), logging.NewNopLogger())

	require.NoError(t, svc.RecordEvent(ctx, event(domain.JobEventDiscarded, time.Minute, "")))

	got, err := svc.GetJob(ctx, "H:broker:1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDiscarded, got.Status)
	assert.Equal(t, "reverse", got.Function)
}

type failingRepo struct {
	*memory.JobHistoryRepository
}

func (failingRepo) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return nil, errors.New("connection refused")
}

func TestRecordEvent_RepositoryError(t *testing.T) {
	svc := NewJobHistoryService(failingRepo{memory.NewJobHistoryRepository()}, logging.NewNopLogger())

	err := svc.RecordEvent(context.Background(), event(domain.JobEventCreated, 0, ""))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, errs.ErrJobNotFound))
}

func TestPurgeFinished(t *testing.T) {
	ctx := context.Background()
	svc := NewJobHistoryService(memory.NewJobHistoryRepository(), logging.NewNopLogger())
	svc.now = func() time.Time { return base.Add(time.Hour) }

	require.NoError(t, svc.RecordEvent(ctx, event(domain.JobEventCreated, 0, "")))
	require.NoError(t, svc.RecordEvent(ctx, event(domain.JobEventCompleted, time.Second, "conn-2")))

	n, err := svc.PurgeFinished(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = svc.PurgeFinished(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	jobs, err := svc.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
