// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"pawtrait/internal/models"
)

// GeneratedImageStore persists the outcome of successful generations.
// The table is append-only: there is deliberately no Update method.
type GeneratedImageStore struct {
	db *sql.DB
}

// NewGeneratedImageStore creates a new GeneratedImageStore.
func NewGeneratedImageStore(db *sql.DB) *GeneratedImageStore {
	return &GeneratedImageStore{db: db}
}

const generatedImageColumns = `id, original_image_url, generated_image_url, style_id, product_id, created_at`

func scanGeneratedImage(scanner interface{ Scan(...any) error }) (*models.GeneratedImage, error) {
	var g models.GeneratedImage
	err := scanner.Scan(&g.ID, &g.OriginalImageURL, &g.GeneratedImageURL, &g.StyleID, &g.ProductID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new record and returns it with the generated ID and
// timestamp.
func (s *GeneratedImageStore) Create(ctx context.Context, g *models.GeneratedImage) (*models.GeneratedImage, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO generated_images (original_image_url, generated_image_url, style_id, product_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+generatedImageColumns,
		g.OriginalImageURL, g.GeneratedImageURL, g.StyleID, g.ProductID,
	)
	created, err := scanGeneratedImage(row)
	if err != nil {
		return nil, fmt.Errorf("create generated image: %w", err)
	}
	return created, nil
}

// FindByID retrieves a generated image by its UUID. Returns nil if not found.
func (s *GeneratedImageStore) FindByID(ctx context.Context, id uuid.UUID) (*models.GeneratedImage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+generatedImageColumns+` FROM generated_images WHERE id = $1`, id)
	g, err := scanGeneratedImage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find generated image by id: %w", err)
	}
	return g, nil
}

// ListByProduct returns the most recent generations for a product.
func (s *GeneratedImageStore) ListByProduct(ctx context.Context, productID string, limit int) ([]models.GeneratedImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+generatedImageColumns+`
		FROM generated_images
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generated images: %w", err)
	}
	defer rows.Close()

	var items []models.GeneratedImage
	for rows.Next() {
		g, err := scanGeneratedImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generated image: %w", err)
		}
		items = append(items, *g)
	}
	return items, rows.Err()
}

// CountByProduct returns how many generations exist for a product.
func (s *GeneratedImageStore) CountByProduct(ctx context.Context, productID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generated_images WHERE product_id = $1`, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count generated images: %w", err)
	}
	return count, nil
}
