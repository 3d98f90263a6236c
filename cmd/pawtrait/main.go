// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the pawtrait customization server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"pawtrait/internal/ai"
	"pawtrait/internal/cache"
	"pawtrait/internal/config"
	"pawtrait/internal/customize"
	"pawtrait/internal/database"
	"pawtrait/internal/handlers"
	"pawtrait/internal/middleware"
	"pawtrait/internal/router"
	"pawtrait/internal/shopify"
	"pawtrait/internal/storage"
	"pawtrait/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	// Text logs in development, JSON everywhere else.
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	if cfg.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DSN(), database.PoolOptions{})
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := database.Migrate(ctx, db); err != nil {
		return err
	}

	styleStore := store.NewStyleStore(db)
	imageStore := store.NewGeneratedImageStore(db)

	// Valkey is optional; without it the style cache reads straight through.
	var valkeyClient *redis.Client
	if cfg.HasValkey() {
		valkeyClient, err = cache.ConnectValkey(ctx, cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			return err
		}
		defer valkeyClient.Close()
	} else {
		slog.Warn("valkey not configured, style cache disabled")
	}
	styles := cache.NewStyleCache(valkeyClient, styleStore, cache.DefaultStyleTTL)

	// The default styles are upserted by name on every start.
	if err := database.Seed(ctx, styleStore); err != nil {
		return err
	}
	styles.Invalidate(ctx)

	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3BucketPublic, cfg.S3BucketPrivate, cfg.S3PublicURL,
	)
	if err != nil {
		return err
	}

	registry := ai.NewRegistry(ctx, cfg.AIProvider, map[string]ai.ProviderConfig{
		"gemini":    {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL, Timeout: cfg.GenerationTimeout},
		"stability": {APIKey: cfg.StabilityKey, Model: cfg.StabilityModel, BaseURL: cfg.StabilityBaseURL, Timeout: cfg.GenerationTimeout},
	})
	slog.Info("image backends initialized",
		"active", registry.ActiveName(),
		"available", registry.Available(),
	)

	// Submissions need somewhere to put the images. Without storage the
	// endpoint answers 503 and the rest of the API keeps working.
	var (
		service handlers.Submitter
		links   handlers.OriginalLinker
	)
	if storageClient != nil {
		slog.Info("s3 storage connected",
			"endpoint", cfg.S3Endpoint,
			"public_bucket", storageClient.PublicBucket(),
			"private_bucket", storageClient.PrivateBucket(),
		)
		service = customize.NewService(styles, imageStore, registry, storageClient, customize.Options{
			MaxUploadBytes: cfg.MaxUploadBytes,
			Subject:        cfg.SubjectCategory,
			Timeout:        cfg.GenerationTimeout,
			Retries:        uint64(cfg.GenerationRetries),
			Concurrency:    int64(cfg.GenerationConcurrency),
		})
		links = storageClient
	} else {
		slog.Warn("s3 storage not configured, submissions disabled")
	}

	var products handlers.ProductFetcher
	if shop := shopify.New(cfg.ShopifyShop, cfg.ShopifyToken); shop != nil {
		products = shop
	} else {
		slog.Warn("shopify not configured, product loader returns ids only")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, cfg.TrustProxy)
		defer limiter.Stop()
	}

	r := router.New(
		handlers.Health(db),
		handlers.NewCustomizations(service, imageStore, styles, links),
		handlers.NewCatalog(styles, products),
		limiter,
	)

	// WriteTimeout covers every retry of a generation plus the uploads.
	writeTimeout := cfg.GenerationTimeout*time.Duration(cfg.GenerationRetries+1) + 30*time.Second
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")

		// Give in-flight generations time to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}
