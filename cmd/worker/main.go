package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"shopmirror/internal/cart"
	"shopmirror/internal/catalog"
	"shopmirror/internal/config"
	"shopmirror/internal/database"
	"shopmirror/internal/imagestore"
	"shopmirror/internal/lock"
	"shopmirror/internal/logger"
	"shopmirror/internal/queue"
	"shopmirror/internal/services/shopify"
	"shopmirror/internal/worker"
	"shopmirror/internal/worker/processors"
	"shopmirror/internal/worker/processors/export"

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

	store, err := imagestore.New(context.Background(), imagestore.Config{
		Provider:  cfg.Images.Store,
		Dir:       cfg.Images.Dir,
		BaseURL:   cfg.Images.BaseURL,
		Bucket:    cfg.Images.S3Bucket,
		Region:    cfg.Images.S3Region,
		Endpoint:  cfg.Images.S3Endpoint,
		Prefix:    cfg.Images.S3Prefix,
		AccessKey: cfg.Images.S3Key,
		SecretKey: cfg.Images.S3Secret,
	})
	if err != nil {
		logger.Fatal("Failed to initialize image store", zap.Error(err))
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "postgres":
		pg, err := lock.NewPgAdvisoryLocker(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to initialize advisory lock", zap.Error(err))
		}
		defer pg.Close()
		locker = pg
	default:
		locker = lock.NewDBLocker(db.DB, cfg.Lock.TTL)
	}

	q := queue.New(db.DB)
	engine := catalog.NewEngine(db.DB, client, q, logger, catalog.Options{
		PageSize: cfg.Shopify.PageSize,
		Images:   catalog.NewImageMaterializer(store, client, logger),
	})

	publisher := export.New(cfg.Kafka, logger)
	defer publisher.Close()

	processor := processors.NewEventProcessor(q, locker, engine, publisher, logger, processors.Options{
		MaxAttempts:     cfg.Worker.MaxAttempts,
		StaleClaimAfter: cfg.Worker.StaleClaimAfter,
	})

	// Initialize worker
	w := worker.New(cfg.Worker, processor, engine, cart.NewGormStore(db.DB), logger)

	// Start worker
	logger.Info("Starting worker...")
	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start worker", zap.Error(err))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	w.Stop()
}
