// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pawtrait/internal/models"
)

// testValkeyClient returns a Redis client for tests.
// Skips if Valkey is unavailable.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15, // Use DB 15 for tests.
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping integration test: Valkey not reachable: %v", err)
	}

	client.Del(ctx, stylesKey)
	t.Cleanup(func() {
		client.Del(ctx, stylesKey)
		client.Close()
	})

	return client
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// fakeSource is an in-memory StyleSource that counts calls.
type fakeSource struct {
	mu     sync.Mutex
	styles []models.Style
	err    error
	lists  int
	finds  int
}

func (f *fakeSource) List(_ context.Context) ([]models.Style, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Style(nil), f.styles...), nil
}

func (f *fakeSource) FindByID(_ context.Context, id uuid.UUID) (*models.Style, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	for i := range f.styles {
		if f.styles[i].ID == id {
			s := f.styles[i]
			return &s, nil
		}
	}
	return nil, f.err
}

func (f *fakeSource) FindByName(_ context.Context, name string) (*models.Style, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	for i := range f.styles {
		if f.styles[i].Name == name {
			s := f.styles[i]
			return &s, nil
		}
	}
	return nil, f.err
}

func sampleStyles() []models.Style {
	return []models.Style{
		{
			ID:             uuid.New(),
			Name:           "Portrait Royal",
			PromptTemplate: "A royal portrait of a {animalType}",
			NegativePrompt: "blurry",
			Parameters:     models.StyleParameters{"strength": 0.75},
			CreatedAt:      time.Now().UTC().Truncate(time.Second),
		},
		{
			ID:             uuid.New(),
			Name:           "Pop Art Coloré",
			PromptTemplate: "Pop art {animalType}",
			Parameters:     models.StyleParameters{"guidance_scale": 7.5},
		},
	}
}

func TestConnectValkey(t *testing.T) {
	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")

	client, err := ConnectValkey(context.Background(), host, port, os.Getenv("VALKEY_PASSWORD"))
	if err != nil {
		t.Skipf("skipping: Valkey not available: %v", err)
	}
	defer client.Close()

	pong, err := client.Ping(context.Background()).Result()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if pong != "PONG" {
		t.Errorf("expected PONG, got %q", pong)
	}
}

func TestStyleCacheWithoutClient(t *testing.T) {
	src := &fakeSource{styles: sampleStyles()}
	sc := NewStyleCache(nil, src, 0)
	ctx := context.Background()

	for range 3 {
		styles, err := sc.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(styles) != 2 {
			t.Fatalf("List: got %d styles, want 2", len(styles))
		}
	}
	if src.lists != 3 {
		t.Errorf("source lists: got %d, want 3 (pass-through)", src.lists)
	}

	got, err := sc.FindByName(ctx, "Portrait Royal")
	if err != nil || got == nil {
		t.Fatalf("FindByName: got (%v, %v)", got, err)
	}
	missing, err := sc.FindByID(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("FindByID unknown: got (%v, %v), want (nil, nil)", missing, err)
	}

	sc.Invalidate(ctx)
}

func TestStyleCacheSourceError(t *testing.T) {
	want := errors.New("db down")
	sc := NewStyleCache(nil, &fakeSource{err: want}, 0)

	if _, err := sc.List(context.Background()); !errors.Is(err, want) {
		t.Errorf("List: got %v, want %v", err, want)
	}
}

func TestStyleCacheReadThrough(t *testing.T) {
	client := testValkeyClient(t)
	styles := sampleStyles()
	src := &fakeSource{styles: styles}
	sc := NewStyleCache(client, src, time.Minute)
	ctx := context.Background()

	first, err := sc.List(ctx)
	if err != nil {
		t.Fatalf("List (miss): %v", err)
	}
	second, err := sc.List(ctx)
	if err != nil {
		t.Fatalf("List (hit): %v", err)
	}
	if src.lists != 1 {
		t.Errorf("source lists: got %d, want 1", src.lists)
	}
	if len(first) != len(second) {
		t.Fatalf("cached list length: got %d, want %d", len(second), len(first))
	}
	if second[0].PromptTemplate != styles[0].PromptTemplate || second[0].Parameters.Float("strength", 0) != 0.75 {
		t.Errorf("cached style lost fields: %+v", second[0])
	}

	got, err := sc.FindByID(ctx, styles[1].ID)
	if err != nil || got == nil || got.Name != styles[1].Name {
		t.Fatalf("FindByID: got (%v, %v)", got, err)
	}
	if src.finds != 0 {
		t.Errorf("source finds: got %d, want 0 (served from cache)", src.finds)
	}

	sc.Invalidate(ctx)
	if _, err := sc.List(ctx); err != nil {
		t.Fatalf("List after invalidate: %v", err)
	}
	if src.lists != 2 {
		t.Errorf("source lists after invalidate: got %d, want 2", src.lists)
	}
}

func TestStyleCacheTTL(t *testing.T) {
	client := testValkeyClient(t)
	sc := NewStyleCache(client, &fakeSource{styles: sampleStyles()}, 0)

	if _, err := sc.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}
	ttl, err := client.TTL(context.Background(), stylesKey).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > DefaultStyleTTL {
		t.Errorf("TTL: got %v, want (0, %v]", ttl, DefaultStyleTTL)
	}
}
