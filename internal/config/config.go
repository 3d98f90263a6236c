// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string `validate:"required"`
	Port string `validate:"required,numeric"`
	Env  string `validate:"oneof=development production testing"`

	// PostgreSQL connection
	DBHost     string `validate:"required"`
	DBPort     string `validate:"required,numeric"`
	DBUser     string `validate:"required"`
	DBPassword string
	DBName     string `validate:"required"`

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string `validate:"omitempty,numeric"`
	ValkeyPassword string

	// S3-compatible object storage (optional)
	S3Endpoint      string `validate:"omitempty,url"`
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3BucketPublic  string
	S3BucketPrivate string
	S3PublicURL     string `validate:"omitempty,url"`

	// Image generation backends
	AIProvider       string `validate:"oneof=gemini stability"`
	GeminiKey        string
	GeminiModel      string
	GeminiBaseURL    string `validate:"omitempty,url"`
	StabilityKey     string
	StabilityModel   string
	StabilityBaseURL string `validate:"omitempty,url"`

	// Shopify Admin API (optional, used by the product loader)
	ShopifyShop  string
	ShopifyToken string

	// Customization limits
	MaxUploadBytes        int64         `validate:"gt=0"`
	GenerationTimeout     time.Duration `validate:"gt=0"`
	GenerationRetries     int           `validate:"gte=0,lte=10"`
	GenerationConcurrency int           `validate:"gt=0"`
	SubjectCategory       string        `validate:"required"`

	// Submissions allowed per client per minute; 0 disables the limiter.
	RateLimitPerMinute int `validate:"gte=0"`
	TrustProxy         bool
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. A .env file in the working directory
// is loaded first if present; variables already set win. Returns an error
// if values are malformed or critical values are missing in production mode.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	maxUploadMB, err := envInt("MAX_UPLOAD_MB", 10)
	if err != nil {
		return nil, err
	}
	timeout, err := envDuration("GENERATION_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, err
	}
	retries, err := envInt("GENERATION_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	concurrency, err := envInt("GENERATION_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	rateLimit, err := envInt("RATE_LIMIT_PER_MINUTE", 10)
	if err != nil {
		return nil, err
	}
	trustProxy, err := envBool("TRUST_PROXY", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "pawtrait"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "pawtrait"),

		ValkeyHost:     os.Getenv("VALKEY_HOST"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3BucketPublic:  envOrDefault("S3_BUCKET_PUBLIC", "pawtrait-public"),
		S3BucketPrivate: envOrDefault("S3_BUCKET_PRIVATE", "pawtrait-private"),
		S3PublicURL:     os.Getenv("S3_PUBLIC_URL"),

		AIProvider:       envOrDefault("AI_PROVIDER", "gemini"),
		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),
		StabilityKey:     os.Getenv("STABILITY_API_KEY"),
		StabilityModel:   os.Getenv("STABILITY_MODEL"),
		StabilityBaseURL: os.Getenv("STABILITY_BASE_URL"),

		ShopifyShop:  os.Getenv("SHOPIFY_SHOP"),
		ShopifyToken: os.Getenv("SHOPIFY_ACCESS_TOKEN"),

		MaxUploadBytes:        int64(maxUploadMB) << 20,
		GenerationTimeout:     timeout,
		GenerationRetries:     retries,
		GenerationConcurrency: concurrency,
		SubjectCategory:       envOrDefault("SUBJECT_CATEGORY", "pet"),

		RateLimitPerMinute: rateLimit,
		TrustProxy:         trustProxy,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasValkey reports whether a Valkey host is configured.
func (c *Config) HasValkey() bool {
	return c.ValkeyHost != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
