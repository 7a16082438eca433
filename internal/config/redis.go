package config

type RedisConfig struct {
	DB       int
	Url      string
	Password string
}

// Enabled reports whether worker snapshots go to Redis
func (c *RedisConfig) Enabled() bool {
	return c.Url != ""
}

func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		DB:       intEnv("REDIS_DB", 0),
		Url:      getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
	}
}
