package config

import "os"

type AppConfig struct {
	DebugMode      bool
	SilentMode     bool
	BrokerConfig   *BrokerConfig
	HttpConfig     *HttpConfig
	ScheduleSvcCfg *ScheduleSvcCfg
	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
	JwtConfig      *JwtConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		SilentMode:     os.Getenv("SILENT_MODE") == "true",
		BrokerConfig:   NewBrokerConfig(),
		HttpConfig:     NewHttpConfig(),
		ScheduleSvcCfg: NewScheduleSvcCfg(),
		RedisConfig:    NewRedisConfig(),
		PostgresConfig: NewPostgresConfig(),
		JwtConfig:      NewJwtConfig(),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
