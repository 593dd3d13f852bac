package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL          string `env:"RABBITMQ_URL,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY,default=8"`
	RateLimitPerSec      int    `env:"RATE_LIMIT_PER_SEC,default=50"`
	DeliveryTimeoutSec   int    `env:"DELIVERY_TIMEOUT_SEC,default=30"`
	MaxAttempts          int    `env:"MAX_ATTEMPTS,default=5"`
	RetryScanIntervalSec int    `env:"RETRY_SCAN_INTERVAL_SEC,default=60"`
	RetryScanLimit       int    `env:"RETRY_SCAN_LIMIT,default=100"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
