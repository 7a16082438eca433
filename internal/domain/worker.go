package domain

import "time"

// WorkerInfo represents a connection's worker side as seen by the broker
type WorkerInfo struct {
	ConnectionID string    `json:"connection_id"`
	RemoteAddr   string    `json:"remote_addr"`
	ClientID     string    `json:"client_id"`
	Functions    []string  `json:"functions"`
	Asleep       bool      `json:"asleep"`
	AssignedJobs int       `json:"assigned_jobs"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastSeen     time.Time `json:"last_seen"`
	IsActive     bool      `json:"is_active"`
}

// FunctionStatus aggregates queue and worker counts for one function name
type FunctionStatus struct {
	Name             string `json:"name"`
	Total            int    `json:"total"`
	Running          int    `json:"running"`
	AvailableWorkers int    `json:"available_workers"`
}
