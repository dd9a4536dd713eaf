package main

import (
	"context"

	"go.uber.org/zap"

	api "jobtrail-backend/cmd/api"
	accountdomain "jobtrail-backend/internal/account/domain"
	accountRepo "jobtrail-backend/internal/account/repository"
	accountUsecase "jobtrail-backend/internal/account/usecase"
	"jobtrail-backend/internal/notification"
	trackerUsecase "jobtrail-backend/internal/tracker/usecase"
	"jobtrail-backend/pkg/config"
	"jobtrail-backend/pkg/database"
	"jobtrail-backend/pkg/gemini"
	"jobtrail-backend/pkg/gmail"
	"jobtrail-backend/pkg/logger"
	"jobtrail-backend/pkg/notion"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New()
	defer log.Sync()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&accountdomain.Account{}); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Initialize repositories (dependency injection)
	accountRepository := accountRepo.NewAccountRepository(db)

	// External service adapters
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)
	geminiService := gemini.NewGeminiService(cfg.GeminiAPIKey)
	notionClient := notion.NewClient(cfg.NotionSecret, cfg.NotionDatabaseID)

	// Initialize use cases (dependency injection)
	guard := trackerUsecase.NewRunGuard()
	syncUsecaseInstance := trackerUsecase.NewSyncUsecase(accountRepository, gmailService, geminiService, notionClient, guard)
	authUsecaseInstance := accountUsecase.NewAuthUsecase(accountRepository, gmailService, cfg)

	// Gmail push notifications (optional, needs a Pub/Sub project)
	if cfg.GoogleProjectID != "" && cfg.GooglePubSubTopic != "" {
		notifService, err := notification.NewService(cfg.GoogleProjectID, cfg.GooglePubSubTopic, accountRepository, syncUsecaseInstance, cfg.GoogleCredentials)
		if err != nil {
			log.Error("failed to initialize push trigger", zap.Error(err))
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Info("GOOGLE_PROJECT_ID not configured, push trigger disabled")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, syncUsecaseInstance, accountRepository)

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
