package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/go-commit-digest/internal/adapter/ai"
	"github.com/arturoeanton/go-commit-digest/internal/adapter/scm"
	"github.com/arturoeanton/go-commit-digest/internal/adapter/store"
	"github.com/arturoeanton/go-commit-digest/internal/adapter/store/migrations"
	"github.com/arturoeanton/go-commit-digest/internal/handler"
	"github.com/arturoeanton/go-commit-digest/internal/service"
	"github.com/arturoeanton/go-commit-digest/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("🚀 Starting Commit Digest",
		"port", cfg.Port,
		"repository", cfg.Repository,
		"branch", cfg.Branch,
		"model", cfg.AIModel,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := migrations.RunMigrations(pgStore.DB()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	summarizer := ai.NewOpenAIProvider(ai.OpenAIConfig{
		BaseURL:    cfg.AIBaseURL,
		Model:      cfg.AIModel,
		APIKey:     cfg.AIAPIKey,
		MaxRetries: cfg.AIMaxRetries,
		RetryBase:  time.Duration(cfg.AIRetryBase) * time.Second,
	})
	github := scm.NewGitHubProvider(cfg.GitHubAPIURL, cfg.GitHubToken)

	// ── Services ─────────────────────────────────────────────────────────
	summaryService := service.NewSummaryService(pgStore, summarizer)
	ingestService := service.NewIngestService(pgStore, github, summarizer, summaryService, cfg.Repository, cfg.Branch)
	releaseService := service.NewReleaseService(pgStore, pgStore, github, cfg.Repository)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"app":        cfg.AppName,
			"repository": cfg.Repository,
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	jobTracker := handler.NewJobTracker()

	webhookHandler := handler.NewWebhookHandler(ingestService, cfg.Repository, cfg.WebhookSecret)
	webhookHandler.Register(api)

	commitHandler := handler.NewCommitHandler(pgStore, ingestService, jobTracker, cfg.Repository)
	commitHandler.Register(api)

	releaseHandler := handler.NewReleaseHandler(releaseService)
	releaseHandler.Register(api)

	jobsHandler := handler.NewJobsHandler(jobTracker)
	jobsHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
