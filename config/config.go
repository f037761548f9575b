package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every configuration parameter of the service.
type Config struct {
	DatabaseURL  string `env:"DATABASE_URL,required"`
	ServerPort   int    `env:"SERVER_PORT" envDefault:"8080"`
	JWTSecretKey string `env:"JWT_SECRET_KEY,required"`

	WalletBaseURL string        `env:"WALLET_BASE_URL,required"`
	WalletAPIKey  string        `env:"WALLET_API_KEY,required"`
	WalletTimeout time.Duration `env:"WALLET_TIMEOUT" envDefault:"10s"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`

	CheckInWindow  time.Duration `env:"CHECK_IN_WINDOW" envDefault:"15m"`
	ConfirmWindow  time.Duration `env:"CONFIRM_WINDOW" envDefault:"10m"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	SettlementLoop time.Duration `env:"SETTLEMENT_RETRY_INTERVAL" envDefault:"5m"`
}

// Load reads the environment into a Config. A .env file is picked up when
// present; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	return cfg, nil
}
