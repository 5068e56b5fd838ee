package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sis-enrollment/internal/handler"
	"github.com/noah-isme/sis-enrollment/internal/middleware"
	"github.com/noah-isme/sis-enrollment/internal/repository"
	"github.com/noah-isme/sis-enrollment/internal/service"
	"github.com/noah-isme/sis-enrollment/pkg/config"
	"github.com/noah-isme/sis-enrollment/pkg/database"
	"github.com/noah-isme/sis-enrollment/pkg/logger"
	reqidmiddleware "github.com/noah-isme/sis-enrollment/pkg/middleware/requestid"
	"github.com/noah-isme/sis-enrollment/pkg/server"
)

func main() {
	cfg, err := config.LoadFor("enrollment-api", 8081)
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	records := service.NewEnrollmentRecordService(repository.NewEnrollmentRecordRepository(db), validator.New(), logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metrics))

	handler.RegisterOps(r, handler.NewMetricsHandler(metrics,
		handler.ReadinessCheck{Name: "postgres", Check: db.PingContext},
	))
	handler.RegisterEnrollmentRecordRoutes(r, handler.NewEnrollmentRecordHandler(records))

	if err := server.Run(ctx, cfg.Port, r, logr); err != nil {
		logr.Sugar().Errorw("server failed", "error", err)
	}
}
