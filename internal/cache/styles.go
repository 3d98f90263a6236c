// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// styles.go provides a Valkey-backed read-through cache for the style
// catalog. Styles change only at provisioning time, so the whole catalog
// is cached as one JSON document and lookups are served from it.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pawtrait/internal/models"
)

const (
	// stylesKey is the Valkey key holding the serialized catalog.
	stylesKey = "styles:all"

	// DefaultStyleTTL is how long the catalog stays cached.
	DefaultStyleTTL = 10 * time.Minute
)

// StyleSource is the authoritative style catalog, usually store.StyleStore.
type StyleSource interface {
	List(ctx context.Context) ([]models.Style, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Style, error)
	FindByName(ctx context.Context, name string) (*models.Style, error)
}

// StyleCache fronts a StyleSource with Valkey. A nil Valkey client turns it
// into a pass-through, and cache errors fall back to the source.
type StyleCache struct {
	client *redis.Client
	source StyleSource
	ttl    time.Duration
}

// NewStyleCache creates a style cache over source.
func NewStyleCache(client *redis.Client, source StyleSource, ttl time.Duration) *StyleCache {
	if ttl == 0 {
		ttl = DefaultStyleTTL
	}
	return &StyleCache{client: client, source: source, ttl: ttl}
}

// List returns all styles, from Valkey when cached.
func (sc *StyleCache) List(ctx context.Context) ([]models.Style, error) {
	if styles, ok := sc.get(ctx); ok {
		return styles, nil
	}

	styles, err := sc.source.List(ctx)
	if err != nil {
		return nil, err
	}
	sc.set(ctx, styles)
	return styles, nil
}

// FindByID returns the style with the given id, or (nil, nil) if none.
func (sc *StyleCache) FindByID(ctx context.Context, id uuid.UUID) (*models.Style, error) {
	if styles, ok := sc.get(ctx); ok {
		for i := range styles {
			if styles[i].ID == id {
				return &styles[i], nil
			}
		}
	}
	return sc.source.FindByID(ctx, id)
}

// FindByName returns the style with the given unique name, or (nil, nil).
func (sc *StyleCache) FindByName(ctx context.Context, name string) (*models.Style, error) {
	if styles, ok := sc.get(ctx); ok {
		for i := range styles {
			if styles[i].Name == name {
				return &styles[i], nil
			}
		}
	}
	return sc.source.FindByName(ctx, name)
}

// Invalidate drops the cached catalog. Called after provisioning.
func (sc *StyleCache) Invalidate(ctx context.Context) {
	if sc.client == nil {
		return
	}
	if err := sc.client.Del(ctx, stylesKey).Err(); err != nil {
		slog.Warn("style cache invalidate error", "error", err)
	}
	slog.Debug("style cache invalidated")
}

func (sc *StyleCache) get(ctx context.Context) ([]models.Style, bool) {
	if sc.client == nil {
		return nil, false
	}
	val, err := sc.client.Get(ctx, stylesKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("style cache get error", "error", err)
		return nil, false
	}

	var styles []models.Style
	if err := json.Unmarshal(val, &styles); err != nil {
		slog.Warn("style cache decode error", "error", err)
		return nil, false
	}
	slog.Debug("style cache hit", "count", len(styles))
	return styles, true
}

func (sc *StyleCache) set(ctx context.Context, styles []models.Style) {
	if sc.client == nil {
		return
	}
	data, err := json.Marshal(styles)
	if err != nil {
		slog.Warn("style cache encode error", "error", err)
		return
	}
	if err := sc.client.Set(ctx, stylesKey, data, sc.ttl).Err(); err != nil {
		slog.Warn("style cache set error", "error", err)
	}
}
