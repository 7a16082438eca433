package config

import (
	"fmt"
	"os"
	"strconv"

	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

type BrokerConfig struct {
	Host          string
	Port          int
	MaxPacketSize int
	RecentJobs    int
	EventBuffer   int
}

func NewBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		Host:          getEnv("BROKER_HOST", defs.DefaultHost),
		Port:          intEnv("BROKER_PORT", defs.DefaultPort),
		MaxPacketSize: intEnv("BROKER_MAX_PACKET_SIZE", defs.MaxPacketSize),
		RecentJobs:    intEnv("BROKER_RECENT_JOBS", 1024),
		EventBuffer:   intEnv("BROKER_EVENT_BUFFER", 1024),
	}
}

// Address returns host:port for the listener
func (c *BrokerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
