package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/webhook-relay/internal/config"
	"github.com/kursadbilgin/webhook-relay/internal/handler"
	"github.com/kursadbilgin/webhook-relay/internal/infra/postgresql"
	"github.com/kursadbilgin/webhook-relay/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/webhook-relay/internal/infra/redis"
	"github.com/kursadbilgin/webhook-relay/internal/observability"
	"github.com/kursadbilgin/webhook-relay/internal/queue"
	"github.com/kursadbilgin/webhook-relay/internal/repository"
	"github.com/kursadbilgin/webhook-relay/internal/sender"
	"github.com/kursadbilgin/webhook-relay/internal/service"
	"github.com/kursadbilgin/webhook-relay/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rmq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rmq.Close()

	publisher := queue.NewRabbitMQPublisher(rmq)
	consumer := queue.NewRabbitMQConsumer(rmq, cfg.WorkerConcurrency, logger)

	deliveryRepo := repository.NewGormDeliveryRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	destinationRepo := repository.NewGormDestinationRepo(db)

	metrics := observability.NewMetrics()

	dispatchService, err := service.NewDispatchService(deliveryRepo, destinationRepo, publisher, cfg.MaxAttempts, logger)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}
	dispatchService.SetMetrics(metrics)

	queryService, err := service.NewDeliveryQueryService(deliveryRepo, attemptRepo)
	if err != nil {
		logger.Fatal("query service initialization failed", zap.Error(err))
	}

	destinationService, err := service.NewDestinationService(destinationRepo)
	if err != nil {
		logger.Fatal("destination service initialization failed", zap.Error(err))
	}

	webhookSender := sender.NewWebhookSender(time.Duration(cfg.DeliveryTimeoutSec) * time.Second)

	worker, err := service.NewDeliveryWorker(
		deliveryRepo,
		attemptRepo,
		destinationRepo,
		consumer,
		webhookSender,
		rateLimiter,
		cfg.WorkerConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("delivery worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	scanner, err := service.NewRetryScanner(
		deliveryRepo,
		publisher,
		time.Duration(cfg.RetryScanIntervalSec)*time.Second,
		cfg.RetryScanLimit,
		logger,
	)
	if err != nil {
		logger.Fatal("retry scanner initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterDeliveryRoutes(app, dispatchService, queryService, destinationService); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		return scanner.Start(groupCtx)
	})

	g.Go(func() error {
		logger.Info("webhook-relay api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
	logger.Info("webhook-relay stopped")
}
