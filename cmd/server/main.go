package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bobby-s-dev/species-archive/internal/api"
	"github.com/bobby-s-dev/species-archive/internal/config"
	"github.com/bobby-s-dev/species-archive/internal/scheduler"
	"github.com/bobby-s-dev/species-archive/internal/services"
	"github.com/bobby-s-dev/species-archive/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Initialize logger
	zapConfig := zap.NewProductionConfig()
	logger, _ := zapConfig.Build()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Species Archive Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if level, err := zapcore.ParseLevel(cfg.Server.LogLevel); err == nil {
		zapConfig.Level.SetLevel(level)
	}

	// Initialize aggregator
	aggregator, err := services.NewAggregator(context.Background(), cfg, logger)
	if errors.Is(err, config.ErrConfigurationMissing) {
		logger.Fatal("Generator credentials are not configured", zap.Error(err))
	}
	if err != nil {
		logger.Fatal("Failed to initialize aggregator", zap.Error(err))
	}
	defer aggregator.Close()

	// Favorites and history are optional; the archive still serves lookups
	// without them.
	var favorites store.FavoritesStore
	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("Failed to create store directory", zap.Error(err))
		}
	}
	sqliteStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Warn("Favorites store unavailable", zap.String("path", cfg.Store.Path), zap.Error(err))
	} else {
		favorites = sqliteStore
		defer sqliteStore.Close()
	}

	// Initialize scheduler
	featuredScheduler := scheduler.NewScheduler(aggregator, cfg.Scheduler.FeaturedSpec, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	// Setup handlers and routes
	handler := api.NewHandler(aggregator, favorites, logger).WithScheduler(featuredScheduler)
	api.SetupRoutes(app, handler, logger)

	// Start scheduler
	if err := featuredScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	featuredScheduler.Stop()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	// Default to 500 status code
	code := fiber.StatusInternalServerError
	message := "Something went wrong while reading the archives."

	// Check if it's a Fiber error
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   message,
		"success": false,
	})
}
