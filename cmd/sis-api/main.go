package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sis-enrollment/api/swagger"
	"github.com/noah-isme/sis-enrollment/internal/client"
	"github.com/noah-isme/sis-enrollment/internal/handler"
	"github.com/noah-isme/sis-enrollment/internal/middleware"
	"github.com/noah-isme/sis-enrollment/internal/repository"
	"github.com/noah-isme/sis-enrollment/internal/service"
	"github.com/noah-isme/sis-enrollment/pkg/cache"
	"github.com/noah-isme/sis-enrollment/pkg/config"
	"github.com/noah-isme/sis-enrollment/pkg/database"
	"github.com/noah-isme/sis-enrollment/pkg/jobs"
	"github.com/noah-isme/sis-enrollment/pkg/logger"
	reqidmiddleware "github.com/noah-isme/sis-enrollment/pkg/middleware/requestid"
	"github.com/noah-isme/sis-enrollment/pkg/server"
	"github.com/noah-isme/sis-enrollment/pkg/stream"
)

// @title SIS API
// @version 1.0.0
// @description Course enrollment, scheduling and grading for the Study Information System.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()
	rules := service.NewSchedulingValidator()

	persons := repository.NewPersonRepository(db)
	semesters := repository.NewSemesterRepository(db)
	parallels := repository.NewParallelRepository(db)
	courses := repository.NewCourseRepository(db)
	classrooms := repository.NewClassroomRepository(db)
	memberships := repository.NewMembershipStore(db)
	outbox := repository.NewOutboxRepository(db)

	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Events.ActiveCacheTTL, logr)
	semesterSvc := service.NewSemesterService(semesters, cacheSvc, cfg.Events.ActiveCacheTTL, validate, logr)

	enrollmentClient := client.NewEnrollmentClient(cfg.EnrollmentClient.BaseURL, cfg.EnrollmentClient.Timeout, logr)
	dispatcher := service.NewOutboxDispatcher(outbox, enrollmentClient, service.OutboxDispatcherConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		BaseBackoff:  cfg.Outbox.BaseBackoff,
		MaxBackoff:   cfg.Outbox.MaxBackoff,
		Lease:        2 * cfg.EnrollmentClient.Timeout,
	}, metrics, logr)

	publisher := service.NewGradeEventPublisher(
		stream.NewPublisher(redisClient, cfg.Events.Stream, 0),
		jobs.QueueConfig{
			Workers:    cfg.Events.PublishWorkers,
			MaxRetries: cfg.Events.PublishRetries,
			RetryDelay: cfg.Events.RetryDelay,
		},
		metrics, logr,
	)

	enrollmentSvc := service.NewEnrollmentService(persons, parallels, memberships, semesterSvc, rules, dispatcher, enrollmentClient, metrics, logr)
	courseSvc := service.NewCourseService(courses, classrooms, semesters, parallels, semesterSvc, rules, validate, logr)
	gradeSvc := service.NewGradeService(persons, parallels, enrollmentClient, publisher, validate, metrics, logr)
	authSvc := service.NewAuthService(cfg.JWT.Secret)

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
		handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.SISRoutes{
		Auth:        authSvc,
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Grades:      handler.NewGradeHandler(gradeSvc),
		Semesters:   handler.NewSemesterHandler(semesterSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Logger:      logr,
	}.Register(r.Group(cfg.APIPrefix))

	publisher.Start(ctx)
	defer publisher.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	logr.Sugar().Infow("sis api starting", "env", cfg.Env, "enrollment_service", cfg.EnrollmentClient.BaseURL)
	if err := server.Run(ctx, cfg.Port, r, logr); err != nil {
		logr.Sugar().Errorw("server failed", "error", err)
		stop()
	}
	wg.Wait()
}
