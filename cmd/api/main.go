package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopmirror/internal/api"
	"shopmirror/internal/cart"
	"shopmirror/internal/catalog"
	"shopmirror/internal/config"
	"shopmirror/internal/database"
	"shopmirror/internal/logger"
	"shopmirror/internal/queue"
	"shopmirror/internal/search"
	"shopmirror/internal/services/shopify"
	"shopmirror/internal/worker/processors/export"
	"shopmirror/internal/worker/processors/validation"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	logger, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL, cfg.Env)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	client := shopify.NewClient(shopify.ClientConfig{
		ShopDomain:      cfg.Shopify.ShopDomain,
		AccessToken:     cfg.Shopify.AccessToken,
		StorefrontToken: cfg.Shopify.StorefrontToken,
		APIVersion:      cfg.Shopify.APIVersion,
	}, logger)

	q := queue.New(db.DB)
	engine := catalog.NewEngine(db.DB, client, q, logger, catalog.Options{PageSize: cfg.Shopify.PageSize})

	publisher := export.New(cfg.Kafka, logger)
	defer publisher.Close()

	if cfg.Shopify.WebhookSecret == "" {
		logger.Warn("SHOPIFY_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}
	if cfg.Shopify.WebhookAddress != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		created, err := engine.EnsureWebhooks(ctx, cfg.Shopify.WebhookAddress, nil)
		cancel()
		if err != nil {
			logger.Error("Failed to register webhooks", zap.Error(err))
		} else if len(created) > 0 {
			logger.Info("Registered webhooks", zap.Strings("topics", created))
		}
	}

	// Initialize API server
	server := api.New(cfg, logger, api.Dependencies{
		DB:        db.DB,
		Queue:     q,
		Syncer:    engine,
		Carts:     cart.NewService(cart.NewGormStore(db.DB), cart.NewCatalogVariants(db.DB), client, logger),
		Search:    search.NewBuilder(db.DB, search.PublishedVendorsOnly),
		Validator: validation.New(cfg.Shopify.WebhookSecret, logger),
		Publisher: publisher,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}
