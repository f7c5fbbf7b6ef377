package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-skills-api/internal/config"
	"github.com/noah-isme/gema-skills-api/internal/database"
	"github.com/noah-isme/gema-skills-api/internal/handler"
	"github.com/noah-isme/gema-skills-api/internal/middleware"
	"github.com/noah-isme/gema-skills-api/internal/observability"
	"github.com/noah-isme/gema-skills-api/internal/repository"
	"github.com/noah-isme/gema-skills-api/internal/router"
	"github.com/noah-isme/gema-skills-api/internal/service"
	cloud "github.com/noah-isme/gema-skills-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	probes := []handler.HealthProbe{{
		Name: "postgres",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()

		probes = append(probes, handler.HealthProbe{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		logger.Warn().Msg("redis url not set; catalog cache and redis event fan-out disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()

		probes = append(probes, handler.HealthProbe{
			Name:  "nats",
			Check: func(context.Context) error { return natsConn.FlushTimeout(time.Second) },
		})
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	submissionRepo := repository.NewProjectSubmissionRepository(db)
	eventRepo := repository.NewProgressEventRepository(db)

	courseService, err := service.NewCourseService(courseRepo, redisClient, cfg.CatalogCacheTTL, validate, logger)
	if err != nil {
		log.Fatalf("failed to build course service: %v", err)
	}
	eventService := service.NewProgressEventService(eventRepo, redisClient, cfg.EventsChannel, natsConn, logger)
	enrollmentService := service.NewEnrollmentService(courseService, enrollmentRepo, submissionRepo, eventService, validate, logger)
	projectService := service.NewProjectService(courseService, enrollmentRepo, submissionRepo, eventService, validate, logger)

	streamCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()
	eventService.Start(streamCtx)

	deps := router.Dependencies{
		CourseHandler:     handler.NewCourseHandler(courseService, enrollmentService, logger),
		EnrollmentHandler: handler.NewEnrollmentHandler(enrollmentService, projectService, logger),
		ProjectHandler:    handler.NewProjectHandler(projectService, logger),
		StreamHandler:     handler.NewProgressStreamHandler(enrollmentService, eventService, logger),
		HealthProbes:      probes,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		MetricsHandler:    observability.MetricsHandler(),
	}

	storageConfig := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if storageConfig.Configured() {
		storage, err := cloud.New(storageConfig, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		artifactService := service.NewArtifactService(storage, cfg.UploadMaxSizeMB, logger)
		deps.ArtifactHandler = handler.NewArtifactHandler(artifactService, logger)
	} else {
		logger.Warn().Msg("cloudinary credentials not set; artifact uploads disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, deps)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddress()).Msg("skills api listening")
	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
