package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	MongoURI      string `env:"MONGODB_URI,required" validate:"required"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"opg-api" validate:"required"`

	AuthTokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"75m" validate:"min=1m"`
	// ServiceToken is the front-end service credential. Left empty, the service routes
	// reject every request.
	ServiceToken string `env:"SERVICE_TOKEN" validate:"omitempty,min=32"`

	// StackName namespaces cron lock keys so several deployments can share one store.
	StackName       string        `env:"STACK_NAME" envDefault:"local" validate:"required"`
	CleanupSchedule string        `env:"CLEANUP_SCHEDULE" envDefault:"0 3 * * *" validate:"required"`
	CleanupLockTTL  time.Duration `env:"CLEANUP_LOCK_TTL" envDefault:"1h" validate:"min=1m"`

	LockBackend       string `env:"LOCK_BACKEND" envDefault:"mongo" validate:"oneof=mongo postgres redis dynamodb memory"`
	DatabaseURL       string `env:"DATABASE_URL" validate:"required_if=LockBackend postgres"`
	RedisURI          string `env:"REDIS_URI" validate:"required_if=LockBackend redis"`
	DynamoDBLockTable string `env:"DYNAMODB_LOCK_TABLE" envDefault:"locks"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"eu-west-1"`
	AWSEndpointURL     string `env:"AWS_ENDPOINT_URL"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	NotifyCallbackURL   string `env:"NOTIFY_CALLBACK_URL" validate:"required_if=Env production,required_if=Env staging"`
	NotifyCallbackToken string `env:"NOTIFY_CALLBACK_TOKEN"`

	SummarySink    string `env:"SUMMARY_SINK" envDefault:"log" validate:"oneof=log sns email"`
	SNSTopicARN    string `env:"SNS_TOPIC_ARN" validate:"required_if=SummarySink sns"`
	ResendAPIKey   string `env:"RESEND_API_KEY" validate:"required_if=SummarySink email"`
	ResendFrom     string `env:"RESEND_FROM" validate:"required_if=SummarySink email"`
	SummaryEmailTo string `env:"SUMMARY_EMAIL_TO" validate:"required_if=SummarySink email"`
}

// Load reads an optional .env file, then the environment. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
