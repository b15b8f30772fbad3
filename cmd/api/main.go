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
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-go-api/internal/config"
	"github.com/noah-isme/exam-go-api/internal/database"
	"github.com/noah-isme/exam-go-api/internal/handler"
	"github.com/noah-isme/exam-go-api/internal/middleware"
	"github.com/noah-isme/exam-go-api/internal/repository"
	"github.com/noah-isme/exam-go-api/internal/router"
	"github.com/noah-isme/exam-go-api/internal/scheduler"
	"github.com/noah-isme/exam-go-api/internal/service"
	"github.com/noah-isme/exam-go-api/pkg/ai"
	cloud "github.com/noah-isme/exam-go-api/pkg/cloudinary"
	"github.com/noah-isme/exam-go-api/pkg/coderunner"
	"github.com/noah-isme/exam-go-api/pkg/docker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, catalog cache disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, exam events stay in-process")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	examRepo := repository.NewExamRepository(db)

	runner := buildRunner(cfg, logger)

	events := service.NewExamEventPublisher(natsConn, cfg.EventSubject, logger)

	catalogService := service.NewCatalogService(questionRepo, redisClient, cfg.CatalogCacheTTL, validate, logger)
	evaluator := service.NewAnswerEvaluator(runner, logger, service.EvaluatorConfig{
		RunTimeout:      cfg.ExecutionTimeout,
		DefaultLanguage: cfg.DefaultLanguage,
	})
	examService := service.NewExamService(examRepo, questionRepo, evaluator, service.WeightedScorePolicy{}, events, validate, logger)
	authService := service.NewAuthService(userRepo, validate, service.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}, logger)
	adminService := service.NewAdminService(userRepo, examRepo, questionRepo, buildReviewer(cfg, logger), validate, logger)

	autoSubmit := scheduler.New(cfg.SweepSpec, logger)
	autoSubmit.SetCompleter(examService)
	examService.SetScheduler(autoSubmit)

	var recordingService service.RecordingService
	if uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger); err != nil {
		logger.Warn().Err(err).Msg("cloudinary unavailable, recording uploads disabled")
	} else {
		recordingService = service.NewRecordingService(uploader, cfg.RecordingMaxMB, logger)
	}

	authHandler := handler.NewAuthHandler(authService, logger)
	questionHandler := handler.NewQuestionHandler(catalogService, logger)
	examHandler := handler.NewExamHandler(examService, recordingService, logger)
	adminHandler := handler.NewAdminHandler(adminService, examService, logger)
	monitorHandler := handler.NewMonitorHandler(events, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.RecordingMaxMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     authHandler,
		QuestionHandler: questionHandler,
		ExamHandler:     examHandler,
		AdminHandler:    adminHandler,
		MonitorHandler:  monitorHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events.Start(runCtx)
	if err := autoSubmit.Start(runCtx); err != nil {
		log.Fatalf("failed to start auto-submit scheduler: %v", err)
	}
	defer autoSubmit.Stop()

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// buildRunner prefers the remote runner service and falls back to the local
// Docker sandbox.
func buildRunner(cfg config.Config, logger zerolog.Logger) coderunner.Runner {
	if cfg.CodeRunnerURL != "" {
		client, err := coderunner.NewClient(coderunner.Config{
			BaseURL:    cfg.CodeRunnerURL,
			Timeout:    cfg.ExecutionTimeout,
			MaxRetries: 2,
			Logger:     logger,
		})
		if err == nil {
			return client
		}
		logger.Warn().Err(err).Msg("remote runner unavailable, falling back to docker sandbox")
	}

	sandbox, err := docker.NewSandbox(docker.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.ExecutionTimeout,
		MemoryLimitMB: int64(cfg.CodeRunMemoryMB),
		CPUShares:     int64(cfg.CodeRunCPUShares),
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("failed to create code runner: %v", err)
	}
	return sandbox
}

func buildReviewer(cfg config.Config, logger zerolog.Logger) ai.Reviewer {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		reviewer, err := ai.NewOpenAIReviewer(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Logger: logger})
		if err != nil {
			logger.Warn().Err(err).Msg("openai reviewer unavailable")
			return nil
		}
		return reviewer
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil
		}
		reviewer, err := ai.NewAnthropicReviewer(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			logger.Warn().Err(err).Msg("anthropic reviewer unavailable")
			return nil
		}
		return reviewer
	default:
		return nil
	}
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
