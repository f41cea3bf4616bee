package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/account-lifecycle/config"
	"github.com/ErlanBelekov/account-lifecycle/internal/health"
	"github.com/ErlanBelekov/account-lifecycle/internal/infrastructure/mongodb"
	ctxlog "github.com/ErlanBelekov/account-lifecycle/internal/log"
	"github.com/ErlanBelekov/account-lifecycle/internal/metrics"
	"github.com/ErlanBelekov/account-lifecycle/internal/optimistic"
	httptransport "github.com/ErlanBelekov/account-lifecycle/internal/transport/http"
	"github.com/ErlanBelekov/account-lifecycle/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

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

	if err := mongodb.EnsureIndexes(ctx, db.Database, mongodb.Indexes(usecase.ApplicationCollection)); err != nil {
		stop()
		log.Fatalf("indexes: %v", err)
	}

	clock := clockwork.NewRealClock()
	tokens := usecase.NewTokenGenerator(nil)
	store := mongodb.NewStore(db.Database)
	engine := optimistic.New(store, clock)

	// Accounts
	accountRepo := mongodb.NewAccountRepository(db.Database)
	logRepo := mongodb.NewLogRepository(db.Database)

	authUsecase := usecase.NewAuthUsecase(accountRepo, tokens, clock, cfg.AuthTokenTTL, logger)
	passwordUsecase := usecase.NewPasswordUsecase(accountRepo, authUsecase, tokens, clock, logger)
	emailUsecase := usecase.NewEmailUsecase(accountRepo, tokens, clock)

	// Documents
	applicationUsecase := usecase.NewApplicationUsecase(store, engine, tokens, clock, logger)
	profileUsecase := usecase.NewProfileUsecase(store, engine, clock)

	accountUsecase := usecase.NewAccountUsecase(accountRepo, logRepo, applicationUsecase, profileUsecase, emailUsecase, tokens, clock, logger)

	if cfg.ServiceToken == "" {
		logger.Warn("SERVICE_TOKEN is not set, service routes will reject every request")
	}
	handlers := httptransport.NewHandlers(logger, authUsecase, accountUsecase, passwordUsecase, emailUsecase, applicationUsecase, profileUsecase)

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{"mongo": db}, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, handlers, authUsecase, cfg.ServiceToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}
