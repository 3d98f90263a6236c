// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Command customize drives the customization flow from a terminal against
// a running server: stage a photo, choose a style, generate, and
// optionally add the result to the cart.
//
//	customize -photo rex.jpg -style "Portrait Royal" -product 778812345 -cart
//	customize -i -product 778812345
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pawtrait/internal/client"
	"pawtrait/internal/wizard"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	var (
		server     = flag.String("server", envOr("PAWTRAIT_URL", "http://localhost:8080"), "customization API base URL")
		photoPath  = flag.String("photo", "", "path to the pet photo")
		styleID    = flag.String("style", "", "style id or name")
		productID  = flag.String("product", "", "storefront product id")
		addToCart  = flag.Bool("cart", false, "add the generated image to the cart")
		listStyles = flag.Bool("styles", false, "list the available styles and exit")
		retries    = flag.Int("retries", 1, "resubmissions after a temporary failure")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall timeout")
		preferIPv4 = flag.Bool("4", false, "dial IPv4 only")
		verbose    = flag.Bool("v", false, "debug logging")
		interact   = flag.Bool("i", false, "interactive mode")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(*server, client.Options{Timeout: *timeout, PreferIPv4: *preferIPv4})

	if *listStyles {
		if err := printStyles(ctx, api); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if *interact {
		if err := newShell(api, *productID, os.Stdout).run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if *photoPath == "" || *styleID == "" || *productID == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, api, *photoPath, *styleID, *productID, *addToCart, *retries); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, api *client.Client, photoPath, styleID, productID string, cart bool, retries int) error {
	data, err := os.ReadFile(photoPath)
	if err != nil {
		return err
	}

	m := wizard.New(productID, api, api)
	if err := m.SelectPhoto(wizard.Photo{Name: filepath.Base(photoPath), Data: data}); err != nil {
		return err
	}
	if err := m.SelectStyle(styleID); err != nil {
		return err
	}

	snap, err := submit(ctx, m, retries)
	if err != nil {
		return failure(snap, err)
	}
	fmt.Println(snap.Notification.Message)
	fmt.Println("image:", snap.Result.GeneratedImageURL)
	fmt.Println("id:   ", snap.Result.GeneratedImageID)

	if !cart {
		return nil
	}
	snap, err = m.AddToCart(ctx)
	if err != nil || snap.State != wizard.CartConfirmed {
		return failure(snap, err)
	}
	fmt.Println(snap.Notification.Message)
	for k, v := range snap.Cart.Properties {
		fmt.Printf("  %s = %s\n", k, v)
	}
	return nil
}

// submit resubmits after failures the server marked as temporary.
func submit(ctx context.Context, m *wizard.Machine, retries int) (wizard.Snapshot, error) {
	for attempt := 0; ; attempt++ {
		snap, err := m.Submit(ctx)
		if err == nil {
			return snap, nil
		}

		var apiErr *client.APIError
		if attempt >= retries || !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return snap, err
		}
		slog.Warn("temporary failure, resubmitting", "attempt", attempt+1, "error", err)

		if err := m.Acknowledge(); err != nil {
			return snap, err
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 2 * time.Second):
		}
	}
}

// failure prefers the customer-facing notification over the raw error.
func failure(snap wizard.Snapshot, err error) error {
	if snap.Notification != nil && snap.Notification.IsError {
		return errors.New(snap.Notification.Message)
	}
	if err == nil {
		err = fmt.Errorf("unexpected state %s", snap.State)
	}
	return err
}

func printStyles(ctx context.Context, api *client.Client) error {
	styles, err := api.Styles(ctx)
	if err != nil {
		return err
	}
	for _, s := range styles {
		fmt.Printf("%s  %s\n", s.ID, s.Name)
		if s.Description != "" {
			fmt.Printf("    %s\n", s.Description)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
