package domain

import (
	"time"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusDiscarded JobStatus = "DISCARDED"
)

// Finished reports whether the status ends a job's lifecycle
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusDiscarded
}

// Job is one unit of submitted work in flight.
// The submitting client and the assigned worker are referenced by connection
// id so the job stays resolvable after either side goes away.
type Job struct {
	id       string
	function string
	body     []byte
	clientID string

	WorkerID    string
	Numerator   string
	Denominator string
	CreatedAt   time.Time
	AssignedAt  *time.Time
}

// NewJob creates a job submitted by the connection clientID
func NewJob(id, function string, body []byte, clientID string, createdAt time.Time) *Job {
	return &Job{
		id:        id,
		function:  function,
		body:      body,
		clientID:  clientID,
		CreatedAt: createdAt,
	}
}

func (j *Job) ID() string       { return j.id }
func (j *Job) Function() string { return j.function }
func (j *Job) Body() []byte     { return j.body }
func (j *Job) ClientID() string { return j.clientID }

// Status derives the in-flight status from the assignment
func (j *Job) Status() JobStatus {
	if j.WorkerID != "" {
		return JobStatusRunning
	}
	return JobStatusPending
}

// Info returns a read-only view of the job
func (j *Job) Info() *JobInfo {
	return &JobInfo{
		ID:          j.id,
		Function:    j.function,
		Status:      j.Status(),
		ClientID:    j.clientID,
		WorkerID:    j.WorkerID,
		Numerator:   j.Numerator,
		Denominator: j.Denominator,
		BodySize:    len(j.body),
		CreatedAt:   j.CreatedAt,
		AssignedAt:  j.AssignedAt,
	}
}

// JobInfo is a point-in-time view of a live or recently finished job
type JobInfo struct {
	ID          string     `json:"id"`
	Function    string     `json:"function"`
	Status      JobStatus  `json:"status"`
	ClientID    string     `json:"client_id"`
	WorkerID    string     `json:"worker_id,omitempty"`
	Numerator   string     `json:"numerator,omitempty"`
	Denominator string     `json:"denominator,omitempty"`
	BodySize    int        `json:"body_size"`
	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
