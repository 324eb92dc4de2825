// Package imagestore keeps materialized product images on disk or in S3.
package imagestore

import (
	"context"
	"fmt"
)

// Store saves files under stable names and hands back public references.
type Store interface {
	// Exists reports whether name has already been stored.
	Exists(ctx context.Context, name string) (bool, error)
	// Put stores data under name and returns its public reference.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Ref returns the public reference of name without touching storage.
	Ref(name string) string
}

type Config struct {
	Provider   string // "local" | "s3"
	Dir        string
	BaseURL    string
	Bucket     string
	Region     string
	Endpoint   string
	Prefix     string
	AccessKey  string
	SecretKey  string
	PublicBase string
}

func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocal(cfg.Dir, cfg.BaseURL)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported image store: %s", cfg.Provider)
	}
}
