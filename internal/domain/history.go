package domain

import "time"

// JobRecord is the persisted history of one job
type JobRecord struct {
	ID         string     `db:"id" json:"id"`
	Function   string     `db:"function_name" json:"function"`
	Status     JobStatus  `db:"status" json:"status"`
	ClientID   string     `db:"client_id" json:"client_id"`
	WorkerID   string     `db:"worker_id" json:"worker_id,omitempty"`
	BodySize   int        `db:"body_size" json:"body_size"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	AssignedAt *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

type JobHistoryTable struct {
	ID         string
	Function   string
	Status     string
	ClientID   string
	WorkerID   string
	BodySize   string
	CreatedAt  string
	AssignedAt string
	FinishedAt string
}

func (t JobHistoryTable) TableName() string {
	return "job_history"
}

func GetJobHistoryTable() JobHistoryTable {
	return JobHistoryTable{
		ID:         "id",
		Function:   "function_name",
		Status:     "status",
		ClientID:   "client_id",
		WorkerID:   "worker_id",
		BodySize:   "body_size",
		CreatedAt:  "created_at",
		AssignedAt: "assigned_at",
		FinishedAt: "finished_at",
	}
}
