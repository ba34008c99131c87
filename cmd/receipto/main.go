package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"receipto/internal/api"
	"receipto/internal/api/handlers"
	"receipto/internal/repository"
	"receipto/internal/service"
	"receipto/internal/storage"
	"receipto/pkg/auth"
	"receipto/pkg/config"
	"receipto/pkg/logger"
	"receipto/pkg/postgres"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// @title Receipto API
// @version 1.0
// @description Receipt ingestion and categorization service: upload a receipt image, let OCR extract its fields, and file it under a category.

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting Receipto service")

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	objectStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		appLogger.Fatal("Failed to connect to object storage", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	categoryRepo := repository.NewCategoryRepository(db, appLogger)
	receiptRepo := repository.NewReceiptRepository(db, appLogger)

	// JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	// Services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)
	userService := service.NewUserService(userRepo, categoryRepo, receiptRepo, appLogger)
	appService := service.NewAppService(db, objectStore, userRepo, receiptRepo, appLogger)

	preprocessor := service.NewImagePreprocessor(cfg.Preprocess, appLogger)
	ocrService := service.NewOCRService(cfg.OCR, appLogger)
	extractor := service.NewExtractor(appLogger)
	categoryService := service.NewCategoryService(categoryRepo, appLogger)
	receiptService := service.NewReceiptService(
		receiptRepo,
		categoryRepo,
		categoryService,
		preprocessor,
		ocrService,
		extractor,
		objectStore,
		cfg.MinIO.Folder,
		cfg.Preprocess.Enabled,
		appLogger,
	)

	// Handlers
	validate := validator.New()
	appHandler := handlers.NewAppHandler(appService, appLogger)
	authHandler := handlers.NewAuthHandler(authService, validate, appLogger)
	userHandler := handlers.NewUserHandler(userService, validate, appLogger)
	receiptHandler := handlers.NewReceiptHandler(receiptService, appLogger)

	app, err := api.SetupRouter(appHandler, authHandler, userHandler, receiptHandler, jwtManager, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to set up router", zap.Error(err))
	}

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
