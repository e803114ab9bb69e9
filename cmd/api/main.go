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
	goredis "github.com/redis/go-redis/v9"
	"github.com/walkweek/walkweek/internal/config"
	"github.com/walkweek/walkweek/internal/handler"
	infraredis "github.com/walkweek/walkweek/internal/infra/redis"
	"github.com/walkweek/walkweek/internal/infra/sqlite"
	"github.com/walkweek/walkweek/internal/infra/sqlite/migrations"
	"github.com/walkweek/walkweek/internal/observability"
	"github.com/walkweek/walkweek/internal/provider"
	"github.com/walkweek/walkweek/internal/ratelimit"
	"github.com/walkweek/walkweek/internal/repository"
	"github.com/walkweek/walkweek/internal/service"
	"github.com/walkweek/walkweek/internal/storage"
	"github.com/walkweek/walkweek/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := sqlite.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("sqlite initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("sqlite underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	metrics := observability.NewMetrics()

	runner, err := storage.NewRunner(db, logger, storage.WithRetryHook(metrics.IncTxRetry))
	if err != nil {
		logger.Fatal("transaction runner init failed", zap.Error(err))
	}

	users := repository.NewGormUserRepo(db, runner)
	audits := repository.NewGormAuditRepo(db, runner)
	reminderLog := repository.NewGormReminderLogRepo(db, runner)
	statuses := repository.NewGormStatusRepo(db, runner)
	settings := repository.NewGormSettingsRepo(db, runner)

	var limiter ratelimit.RateLimiter = ratelimit.Nop{}
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		limiter, err = infraredis.NewRateLimiter(rdb, cfg.SMSRateLimitPerSec)
		if err != nil {
			logger.Fatal("rate limiter init failed", zap.Error(err))
		}
	}

	twilio := provider.NewTwilioProvider()

	outbound, err := service.NewOutboundService(users, audits, twilio, cfg.Twilio, limiter, metrics, logger)
	if err != nil {
		logger.Fatal("outbound service init failed", zap.Error(err))
	}

	location, err := time.LoadLocation(cfg.WalkTimezone)
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("tz", cfg.WalkTimezone), zap.Error(err))
	}

	scheduler, err := service.NewReminderScheduler(
		users, reminderLog, settings, outbound,
		location, cfg.ReminderMorning, cfg.ReminderEvening,
		metrics, logger,
	)
	if err != nil {
		logger.Fatal("reminder scheduler init failed", zap.Error(err))
	}

	retention, err := service.NewRetentionService(
		audits, statuses, reminderLog, settings,
		cfg.AuditRetentionDays, metrics, logger,
	)
	if err != nil {
		logger.Fatal("retention service init failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(observability.CorrelationMiddleware())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterSMSRoutes(app, outbound, audits, statuses); err != nil {
		logger.Fatal("sms routes init failed", zap.Error(err))
	}
	if err := handler.RegisterUserRoutes(app, users); err != nil {
		logger.Fatal("user routes init failed", zap.Error(err))
	}
	if err := handler.RegisterSettingsRoutes(app, settings); err != nil {
		logger.Fatal("settings routes init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("walkweek api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	group.Go(func() error {
		return scheduler.Start(groupCtx)
	})

	group.Go(func() error {
		return retention.Start(groupCtx)
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
}
