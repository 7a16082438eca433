package config

import (
	"time"
)

type ScheduleSvcCfg struct {
	SnapshotInterval     time.Duration
	HistoryRetention     time.Duration
	HistoryPurgeInterval time.Duration
}

func NewScheduleSvcCfg() *ScheduleSvcCfg {
	return &ScheduleSvcCfg{
		SnapshotInterval:     time.Duration(intEnv("SNAPSHOT_INTERVAL_SEC", 10)) * time.Second,
		HistoryRetention:     time.Duration(intEnv("HISTORY_RETENTION_SEC", 3600)) * time.Second,
		HistoryPurgeInterval: time.Duration(intEnv("HISTORY_PURGE_INTERVAL_SEC", 60)) * time.Second,
	}
}
