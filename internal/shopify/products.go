// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package shopify reads product details from the Shopify Admin GraphQL API.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pawtrait/internal/models"
)

const (
	defaultAPIVersion = "2024-10"

	productQuery = `query Product($id: ID!) {
  product(id: $id) {
    id
    title
    featuredImage {
      url
    }
  }
}`
)

// ErrProductNotFound is returned when the shop has no product with the id.
var ErrProductNotFound = errors.New("shopify: product not found")

// Client is a minimal Admin API client.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

// New creates a client for shop ("my-store.myshopify.com" or a full base
// URL). Returns nil when shop or token is empty so callers can treat the
// integration as optional.
func New(shop, token string) *Client {
	if shop == "" || token == "" {
		return nil
	}
	base := strings.TrimRight(shop, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Client{
		endpoint: base + "/admin/api/" + defaultAPIVersion + "/graphql.json",
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// ProductGID converts a numeric product id into a Shopify global id.
// Ids that are already global ids are returned unchanged.
func ProductGID(id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Product/" + id
}

// Product fetches one product by numeric or global id.
func (c *Client) Product(ctx context.Context, id string) (*models.Product, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query:     productQuery,
		Variables: map[string]any{"id": ProductGID(id)},
	})
	if err != nil {
		return nil, fmt.Errorf("shopify marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("shopify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("shopify read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopify: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result productResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("shopify unmarshal: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("shopify: %s", result.Errors[0].Message)
	}
	p := result.Data.Product
	if p == nil {
		return nil, ErrProductNotFound
	}

	out := &models.Product{ID: p.ID, Title: p.Title}
	if p.FeaturedImage != nil {
		out.ImageURL = p.FeaturedImage.URL
	}
	return out, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type productResponse struct {
	Data struct {
		Product *struct {
			ID            string `json:"id"`
			Title         string `json:"title"`
			FeaturedImage *struct {
				URL string `json:"url"`
			} `json:"featuredImage"`
		} `json:"product"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
