package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	PostgresURL string `env:"POSTGRES_URL,required"`
	// RedisAddr enables the Redis-backed creation cooldown for multi-replica
	// deployments. Empty keeps the in-process cooldown.
	RedisAddr string `env:"REDIS_ADDR"`

	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	MaxStoresPerOwner int           `env:"MAX_STORES_PER_OWNER" envDefault:"5"`
	CreationCooldown  time.Duration `env:"CREATION_COOLDOWN" envDefault:"60s"`

	ProvisionerURL     string        `env:"PROVISIONER_URL,required"`
	ProvisionerTimeout time.Duration `env:"PROVISIONER_TIMEOUT" envDefault:"5m"`

	OrchestratorWorkers int `env:"ORCHESTRATOR_WORKERS" envDefault:"4"`
	OrchestratorQueue   int `env:"ORCHESTRATOR_QUEUE" envDefault:"128"`

	BreakerThreshold int           `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"3"`
	BreakerCooldown  time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`
	HealthInterval   time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"10s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
