// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ai provides a unified interface for image-to-image generation
// backends (Gemini, Stability AI). Each backend implements the Transformer
// interface, and the Registry selects the active one by name.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// TransformRequest is a single image-to-image generation call.
type TransformRequest struct {
	Image          []byte
	ContentType    string
	Prompt         string
	NegativePrompt string
	// Parameters carries backend tuning values such as "strength",
	// "guidance_scale" and "steps". Unknown keys are ignored.
	Parameters map[string]float64
}

// TransformResult holds the generated image.
type TransformResult struct {
	Data        []byte
	ContentType string
}

// Transformer defines the interface that all generation backends must
// implement. Failures are returned as *Error so callers can decide whether
// a retry makes sense.
type Transformer interface {
	// Transform restyles the input image according to the prompt. It is not
	// idempotent: two calls with the same input may produce different images.
	Transform(ctx context.Context, req TransformRequest) (*TransformResult, error)

	// Name returns the backend identifier (e.g., "gemini", "stability").
	Name() string
}

// ProviderConfig holds the credentials and settings for a single backend.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Registry manages available generation backends and selects the active one.
// It supports runtime switching by changing the active backend name.
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Transformer
	active    string
}

// NewRegistry creates a registry and initialises backends for every config
// that has a non-empty API key. Backends without keys are silently skipped;
// backends that fail to initialise are logged and skipped.
func NewRegistry(ctx context.Context, active string, configs map[string]ProviderConfig) *Registry {
	r := &Registry{
		providers: make(map[string]Transformer),
		active:    active,
	}

	for name, cfg := range configs {
		if cfg.APIKey == "" {
			continue
		}
		switch name {
		case "gemini":
			g, err := newGemini(ctx, cfg)
			if err != nil {
				slog.Warn("gemini backend unavailable", "error", err)
				continue
			}
			r.providers[name] = g
		case "stability":
			r.providers[name] = newStability(cfg)
		}
	}

	return r
}

// Register adds or replaces a backend under its own name.
func (r *Registry) Register(t Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[t.Name()] = t
}

// Transform calls the active backend's Transform method.
func (r *Registry) Transform(ctx context.Context, req TransformRequest) (*TransformResult, error) {
	t, err := r.Active()
	if err != nil {
		return nil, err
	}
	return t.Transform(ctx, req)
}

// Active returns the currently active backend.
func (r *Registry) Active() (Transformer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.providers[r.active]
	if !ok {
		return nil, &Error{Provider: r.active, Kind: KindBackend, Err: fmt.Errorf("no backend configured for %q", r.active)}
	}
	return t, nil
}

// SetActive switches the active backend at runtime. Returns an error if
// the named backend has no API key configured.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("ai: backend %q is not available (no API key?)", name)
	}
	r.active = name
	return nil
}

// ActiveName returns the name of the currently active backend.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.active
}

// Available returns the sorted names of all configured backends.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasProvider reports whether the named backend is configured.
func (r *Registry) HasProvider(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[name]
	return ok
}
