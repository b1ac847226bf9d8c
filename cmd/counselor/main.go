package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"uni-counselor/internal/api"
	"uni-counselor/internal/api/handlers"
	"uni-counselor/internal/repository"
	"uni-counselor/internal/service"
	"uni-counselor/pkg/auth"
	"uni-counselor/pkg/config"
	"uni-counselor/pkg/logger"
	"uni-counselor/pkg/postgres"

	"go.uber.org/zap"
)

// @title Uni Counselor API
// @version 1.0
// @description AI counseling service for international students applying to German universities

// @contact.name API Support
// @contact.email support@uni-counselor.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting Uni Counselor service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	profileRepo := repository.NewProfileRepository(db, appLogger)
	catalogRepo := repository.NewCatalogRepository(db, appLogger)
	immigrationRepo := repository.NewImmigrationRepository(db, appLogger)
	embeddingRepo := repository.NewEmbeddingRepository(db, appLogger)
	sessionRepo := repository.NewSessionRepository(db, appLogger)
	planRepo := repository.NewPlanRepository(db, appLogger)
	assessmentRepo := repository.NewAssessmentRepository(db, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	// Chat providers: a misconfigured provider pair is a startup failure,
	// not a per-request one
	gateway, closeProviders, err := buildGateway(&cfg.AI, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize AI providers", zap.Error(err))
	}
	defer closeProviders()

	// Retrieval index, hydrated from persisted embeddings
	embedder := service.NewOpenAIEmbedder(&cfg.Embedding, cfg.AI.RequestTimeout)
	index := service.NewEmbeddingIndex(embedder, embeddingRepo, appLogger)
	if err := index.Load(ctx); err != nil {
		appLogger.Fatal("Failed to load embedding index", zap.Error(err))
	}
	appLogger.Info("Embedding index loaded", zap.Int("records", index.Size()))

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)
	profileService := service.NewProfileService(profileRepo, appLogger)
	indexService := service.NewIndexService(catalogRepo, index, appLogger)
	assessmentService := service.NewAssessmentService(gateway, &cfg.Assessment, appLogger)
	intentExtractor := service.NewModelIntentExtractor(gateway, appLogger)
	counselorService := service.NewCounselorService(
		sessionRepo, planRepo, profileRepo, assessmentRepo, catalogRepo,
		index, intentExtractor, gateway, &cfg.Retrieval, appLogger,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, appLogger)
	profileHandler := handlers.NewProfileHandler(profileService, appLogger)
	sessionHandler := handlers.NewSessionHandler(sessionRepo, profileService, counselorService, appLogger)
	planHandler := handlers.NewPlanHandler(planRepo, profileService, appLogger)
	assessmentHandler := handlers.NewAssessmentHandler(assessmentService, assessmentRepo, immigrationRepo, profileService, appLogger)
	indexHandler := handlers.NewIndexHandler(indexService, index, appLogger)

	// Setup router
	app := api.SetupRouter(
		authHandler, profileHandler, sessionHandler, planHandler,
		assessmentHandler, indexHandler, jwtManager, appLogger,
	)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}

// buildGateway wires the primary and fallback chat providers from config.
// The fallback vendor is selectable: "openai" (any OpenAI-compatible API) or
// "gigachat".
func buildGateway(cfg *config.AIConfig, appLogger *zap.Logger) (*service.Gateway, func(), error) {
	var primary, fallback service.ProviderClient
	closers := func() {}

	if cfg.Primary.APIKey != "" {
		primary = service.NewOpenAIClient("openrouter", cfg.Primary, cfg.RequestTimeout)
	}

	switch cfg.FallbackVendor {
	case "gigachat":
		if cfg.GigaChat.APIKey != "" {
			client, err := service.NewGigaChatClient(&cfg.GigaChat, appLogger)
			if err != nil {
				return nil, nil, err
			}
			fallback = client
			closers = client.Close
		}
	default:
		if cfg.Fallback.APIKey != "" {
			fallback = service.NewOpenAIClient("openai", cfg.Fallback, cfg.RequestTimeout)
		}
	}

	if primary == nil && fallback == nil {
		return nil, nil, service.ErrNoProviderConfigured
	}

	return service.NewGateway(primary, fallback, appLogger), closers, nil
}
