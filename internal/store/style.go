// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store implements the PostgreSQL-backed style catalog and the
// append-only generated image log.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"pawtrait/internal/models"
)

// StyleStore handles all style-related database operations. Styles are
// read-only at runtime; writes only happen through provisioning.
type StyleStore struct {
	db *sql.DB
}

// NewStyleStore creates a new StyleStore with the given database connection.
func NewStyleStore(db *sql.DB) *StyleStore {
	return &StyleStore{db: db}
}

// styleColumns lists the columns selected in style queries.
const styleColumns = `id, name, description, thumbnail_url, prompt_template,
	negative_prompt, parameters, created_at`

// scanStyle scans a style row from the result set.
func scanStyle(scanner interface{ Scan(...any) error }) (*models.Style, error) {
	var s models.Style
	err := scanner.Scan(
		&s.ID, &s.Name, &s.Description, &s.ThumbnailURL, &s.PromptTemplate,
		&s.NegativePrompt, &s.Parameters, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns every style ordered by name.
func (s *StyleStore) List(ctx context.Context) ([]models.Style, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+styleColumns+` FROM styles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list styles: %w", err)
	}
	defer rows.Close()

	var items []models.Style
	for rows.Next() {
		st, err := scanStyle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan style: %w", err)
		}
		items = append(items, *st)
	}
	return items, rows.Err()
}

// FindByID retrieves a style by its UUID. Returns nil if not found.
func (s *StyleStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Style, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+styleColumns+` FROM styles WHERE id = $1`, id)
	st, err := scanStyle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find style by id: %w", err)
	}
	return st, nil
}

// FindByName retrieves a style by its unique name. Returns nil if not found.
func (s *StyleStore) FindByName(ctx context.Context, name string) (*models.Style, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+styleColumns+` FROM styles WHERE name = $1`, name)
	st, err := scanStyle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find style by name: %w", err)
	}
	return st, nil
}

// Upsert inserts a style keyed by name, or returns the existing row
// unchanged when the name is already taken.
func (s *StyleStore) Upsert(ctx context.Context, st *models.Style) (*models.Style, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO styles (name, description, thumbnail_url, prompt_template, negative_prompt, parameters)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+styleColumns,
		st.Name, st.Description, st.ThumbnailURL, st.PromptTemplate, st.NegativePrompt, st.Parameters,
	)
	out, err := scanStyle(row)
	if err != nil {
		return nil, fmt.Errorf("upsert style: %w", err)
	}
	return out, nil
}
