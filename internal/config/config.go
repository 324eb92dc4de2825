package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Database
	DatabaseURL string

	// API Configuration
	APIPort            string
	APIHost            string
	CORSAllowedOrigins []string

	Shopify ShopifyConfig
	Kafka   KafkaConfig
	Images  ImageConfig
	Lock    LockConfig
	Worker  WorkerConfig

	// Environment
	Env      string
	LogLevel string
}

type ShopifyConfig struct {
	ShopDomain      string
	AccessToken     string
	StorefrontToken string
	APIVersion      string
	WebhookSecret   string // SHOPIFY_WEBHOOK_SECRET: verifies X-Shopify-Hmac-Sha256
	WebhookAddress  string // public URL of POST /webhooks/shopify; empty skips registration
	PageSize        int
}

type KafkaConfig struct {
	Brokers      []string
	ChangesTopic string
}

type ImageConfig struct {
	Store      string // "local" | "s3"
	Dir        string
	BaseURL    string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
	S3Key      string
	S3Secret   string
}

type LockConfig struct {
	Backend string // "db" | "postgres"
	TTL     time.Duration
}

type WorkerConfig struct {
	QueueSchedule    string
	FullSyncSchedule string
	Batch            int
	MaxAttempts      int
	StaleClaimAfter  time.Duration
	CartIdleTTL      time.Duration
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_HOST", "0.0.0.0")
	v.SetDefault("API_PORT", "8080")
	v.SetDefault("DATABASE_URL", "sqlite://shopmirror.db")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SHOPIFY_API_VERSION", "2024-07")
	v.SetDefault("SYNC_PAGE_SIZE", 250)
	v.SetDefault("KAFKA_CHANGES_TOPIC", "catalog-changes")
	v.SetDefault("IMAGE_STORE", "local")
	v.SetDefault("IMAGE_DIR", "files/shopify")
	v.SetDefault("IMAGE_BASE_URL", "/files/shopify")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("LOCK_BACKEND", "db")
	v.SetDefault("LOCK_TTL", "5m")
	v.SetDefault("QUEUE_SCHEDULE", "@every 30s")
	v.SetDefault("FULL_SYNC_SCHEDULE", "0 3 * * *")
	v.SetDefault("QUEUE_BATCH", 50)
	v.SetDefault("QUEUE_MAX_ATTEMPTS", 5)
	v.SetDefault("QUEUE_STALE_CLAIM", "15m")
	v.SetDefault("CART_IDLE_TTL", "720h")

	cfg := &Config{
		DatabaseURL:        v.GetString("DATABASE_URL"),
		APIPort:            v.GetString("API_PORT"),
		APIHost:            v.GetString("API_HOST"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		Shopify: ShopifyConfig{
			ShopDomain:      strings.TrimSpace(v.GetString("SHOPIFY_SHOP_DOMAIN")),
			AccessToken:     strings.TrimSpace(v.GetString("SHOPIFY_ACCESS_TOKEN")),
			StorefrontToken: strings.TrimSpace(v.GetString("SHOPIFY_STOREFRONT_TOKEN")),
			APIVersion:      v.GetString("SHOPIFY_API_VERSION"),
			WebhookSecret:   strings.TrimSpace(v.GetString("SHOPIFY_WEBHOOK_SECRET")),
			WebhookAddress:  strings.TrimSpace(v.GetString("SHOPIFY_WEBHOOK_ADDRESS")),
			PageSize:        v.GetInt("SYNC_PAGE_SIZE"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(v.GetString("KAFKA_BROKERS")),
			ChangesTopic: v.GetString("KAFKA_CHANGES_TOPIC"),
		},
		Images: ImageConfig{
			Store:      v.GetString("IMAGE_STORE"),
			Dir:        v.GetString("IMAGE_DIR"),
			BaseURL:    v.GetString("IMAGE_BASE_URL"),
			S3Bucket:   v.GetString("S3_BUCKET"),
			S3Region:   v.GetString("S3_REGION"),
			S3Endpoint: v.GetString("S3_ENDPOINT"),
			S3Prefix:   v.GetString("S3_PREFIX"),
			S3Key:      v.GetString("S3_ACCESS_KEY"),
			S3Secret:   v.GetString("S3_SECRET_KEY"),
		},
		Lock: LockConfig{
			Backend: v.GetString("LOCK_BACKEND"),
			TTL:     v.GetDuration("LOCK_TTL"),
		},
		Worker: WorkerConfig{
			QueueSchedule:    v.GetString("QUEUE_SCHEDULE"),
			FullSyncSchedule: v.GetString("FULL_SYNC_SCHEDULE"),
			Batch:            v.GetInt("QUEUE_BATCH"),
			MaxAttempts:      v.GetInt("QUEUE_MAX_ATTEMPTS"),
			StaleClaimAfter:  v.GetDuration("QUEUE_STALE_CLAIM"),
			CartIdleTTL:      v.GetDuration("CART_IDLE_TTL"),
		},
		Env:      v.GetString("ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Shopify.ShopDomain == "" {
		return fmt.Errorf("SHOPIFY_SHOP_DOMAIN is required")
	}
	if c.Shopify.AccessToken == "" {
		return fmt.Errorf("SHOPIFY_ACCESS_TOKEN is required")
	}
	if c.Shopify.PageSize <= 0 || c.Shopify.PageSize > 250 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be between 1 and 250")
	}
	switch c.Images.Store {
	case "local":
	case "s3":
		if c.Images.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when IMAGE_STORE=s3")
		}
	default:
		return fmt.Errorf("unsupported IMAGE_STORE %q", c.Images.Store)
	}
	switch c.Lock.Backend {
	case "db", "postgres":
	default:
		return fmt.Errorf("unsupported LOCK_BACKEND %q", c.Lock.Backend)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
