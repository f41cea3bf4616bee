package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/config"
	"github.com/ErlanBelekov/account-lifecycle/internal/cleanup"
	"github.com/ErlanBelekov/account-lifecycle/internal/domain"
	"github.com/ErlanBelekov/account-lifecycle/internal/health"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/awsx"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/dynamo"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/mongodb"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/redisdb"
	"github.com/ErlanBelekov/account-lifecycle/internal/lock"
	ctxlog "github.com/ErlanBelekov/account-lifecycle/internal/log"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/notify"
	"github.com/ErlanBelekov/account-lifecycle/internal/optimistic"
	"github.com/ErlanBelekov/account-lifecycle/internal/scheduler"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const cleanupJob = "cleanup"

func main() {
	once := flag.Bool("once", false, "run one lock-guarded cleanup pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(closeCtx)
	}()

	logger.Info("db connected")

	deps := map[string]health.Pinger{"mongo": db}
	clock := clockwork.NewRealClock()

	backend, closeBackend, err := newLockBackend(ctx, cfg, db, deps)
	if err != nil {
		stop()
		log.Fatalf("lock backend: %v", err)
	}
	defer closeBackend()

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("summary publisher: %v", err)
	}

	var notifier cleanup.Notifier = notify.NewLogNotifier(logger)
	if cfg.NotifyCallbackURL != "" {
		notifier = notify.NewCallbackNotifier(nil, cfg.NotifyCallbackURL, cfg.NotifyCallbackToken)
	}

	tokens := usecase.NewTokenGenerator(nil)
	store := mongodb.NewStore(db.Database)
	engine := optimistic.New(store, clock)
	accountRepo := mongodb.NewAccountRepository(db.Database)

	accountUsecase := usecase.NewAccountUsecase(
		accountRepo,
		mongodb.NewLogRepository(db.Database),
		usecase.NewApplicationUsecase(store, engine, tokens, clock, logger),
		usecase.NewProfileUsecase(store, engine, clock),
		usecase.NewEmailUsecase(accountRepo, tokens, clock),
		tokens,
		clock,
		logger,
	)

	cleaner := cleanup.NewEngine(accountRepo, accountUsecase, notifier, publisher, clock, cfg.StackName, logger)
	cronLock := lock.NewCronLock(backend, cfg.StackName, clock, logger)

	runner, err := scheduler.NewRunner(cronLock, cleanupJob, cfg.CleanupSchedule, cfg.CleanupLockTTL, func(ctx context.Context) {
		cleaner.Run(ctx)
	}, logger)
	if err != nil {
		stop()
		log.Fatalf("runner: %v", err)
	}

	metrics.Register()

	if *once {
		ran, err := runner.RunOnce(ctx)
		if err != nil {
			logger.Error("cleanup run", "error", err)
			stop()
			os.Exit(1)
		}
		if !ran {
			logger.Info("cleanup skipped", "reason", domain.ErrLockNotAcquired)
			return
		}
		logger.Info("cleanup pass done")
		return
	}

	checker := health.NewChecker(deps, logger, prometheus.DefaultRegisterer)
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	runner.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

// newLockBackend connects the configured lock store and registers it with deps for the
// readiness probe.
func newLockBackend(ctx context.Context, cfg *config.Config, db *mongodb.DB, deps map[string]health.Pinger) (lock.Backend, func(), error) {
	noop := func() {}

	switch cfg.LockBackend {
	case "mongo":
		return mongodb.NewLockBackend(db.Database), noop, nil

	case "postgres":
		pool, err := postgres.NewLockPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		b := postgres.NewLockBackend(pool)
		if err := b.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		deps["postgres"] = pool
		return b, pool.Close, nil

	case "redis":
		client, err := redisdb.Connect(ctx, cfg.RedisURI)
		if err != nil {
			return nil, nil, err
		}
		deps["redis"] = redisdb.Pinger{Client: client}
		return redisdb.NewLockBackend(client), func() { _ = client.Close() }, nil

	case "dynamodb":
		awsCfg, err := awsx.LoadConfig(ctx, awsOptions(cfg))
		if err != nil {
			return nil, nil, err
		}
		return dynamo.NewLockBackend(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBLockTable), noop, nil

	case "memory":
		return lock.NewMemoryBackend(), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
}

func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notify.Publisher, error) {
	switch cfg.SummarySink {
	case "sns":
		awsCfg, err := awsx.LoadConfig(ctx, awsOptions(cfg))
		if err != nil {
			return nil, err
		}
		return notify.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.SNSTopicARN), nil
	case "email":
		return notify.NewEmailPublisher(cfg.ResendAPIKey, cfg.ResendFrom, cfg.SummaryEmailTo), nil
	}
	return notify.NewLogPublisher(logger), nil
}

func awsOptions(cfg *config.Config) awsx.Options {
	return awsx.Options{
		Region:          cfg.AWSRegion,
		EndpointURL:     cfg.AWSEndpointURL,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}
}
