package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment/internal/handler"
	"github.com/noah-isme/sis-enrollment/internal/repository"
	"github.com/noah-isme/sis-enrollment/internal/service"
	"github.com/noah-isme/sis-enrollment/pkg/cache"
	"github.com/noah-isme/sis-enrollment/pkg/config"
	"github.com/noah-isme/sis-enrollment/pkg/logger"
	"github.com/noah-isme/sis-enrollment/pkg/mail"
	"github.com/noah-isme/sis-enrollment/pkg/server"
	"github.com/noah-isme/sis-enrollment/pkg/stream"
)

func main() {
	cfg, err := config.LoadFor("notification-worker", 8082)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	mailer, err := mail.New(cfg.Mail, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to configure mailer", "error", err)
	}

	metrics := service.NewMetricsService()
	consumer := stream.NewConsumer(redisClient, stream.ConsumerConfig{
		Stream:    cfg.Events.Stream,
		Group:     cfg.Notifications.Group,
		Consumer:  cfg.Notifications.Consumer,
		BatchSize: int64(cfg.Notifications.BatchSize),
		Block:     cfg.Notifications.Block,
		ClaimIdle: cfg.Notifications.ClaimIdle,
	})
	notifications := service.NewNotificationService(consumer, repository.NewCacheRepository(redisClient), mailer, service.NotificationConfig{
		EmailDomain:  cfg.Notifications.EmailDomain,
		DedupTTL:     cfg.Notifications.DedupTTL,
		LeaseTTL:     cfg.Notifications.ClaimIdle,
		ReclaimEvery: cfg.Notifications.ClaimIdle,
	}, metrics, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterOps(r, handler.NewMetricsHandler(metrics,
		handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	))

	go func() {
		if err := server.Run(ctx, cfg.Port, r, logr); err != nil {
			logr.Sugar().Errorw("ops server failed", "error", err)
		}
	}()

	if err := notifications.Run(ctx); err != nil {
		logr.Sugar().Errorw("notification consumer failed", "error", err)
	}
}
