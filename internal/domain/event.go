package domain

import "time"

// JobEventType names a job lifecycle transition
type JobEventType string

const (
	JobEventCreated   JobEventType = "created"
	JobEventAssigned  JobEventType = "assigned"
	JobEventCompleted JobEventType = "completed"
	JobEventFailed    JobEventType = "failed"
	JobEventDiscarded JobEventType = "discarded"
)

// JobEvent is published by the broker on every job lifecycle transition
type JobEvent struct {
	Type     JobEventType `json:"type"`
	JobID    string       `json:"job_id"`
	Function string       `json:"function"`
	ClientID string       `json:"client_id"`
	WorkerID string       `json:"worker_id,omitempty"`
	BodySize int          `json:"body_size"`
	At       time.Time    `json:"at"`
}

// Status maps the event onto the job status it leaves behind
func (e JobEvent) Status() JobStatus {
	switch e.Type {
	case JobEventAssigned:
		return JobStatusRunning
	case JobEventCompleted:
		return JobStatusCompleted
	case JobEventFailed:
		return JobStatusFailed
	case JobEventDiscarded:
		return JobStatusDiscarded
	default:
		return JobStatusPending
	}
}
