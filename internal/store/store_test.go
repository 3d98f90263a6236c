// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Shared helpers for the store integration tests, which are skipped when
// PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"

	"pawtrait/internal/database"
	"pawtrait/internal/models"
)

// testDSN builds the test connection string from the POSTGRES_* variables.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "pawtrait")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "pawtrait")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB connects to the test database and applies migrations. The test
// is skipped when PostgreSQL is not reachable.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Connect(ctx, testDSN(), database.PoolOptions{MaxOpen: 20})
	if err != nil {
		t.Skipf("skipping integration test: %v", err)
	}
	if _, err := database.Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testStyle inserts a throwaway style and removes it (and any generated
// images pointing at it) when the test ends.
func testStyle(t *testing.T, db *sql.DB) *models.Style {
	t.Helper()

	s := NewStyleStore(db)
	st, err := s.Upsert(context.Background(), &models.Style{
		Name:           "test-style-" + uuid.NewString()[:8],
		PromptTemplate: "A portrait of a {animalType}",
		NegativePrompt: "blurry",
		Parameters:     models.StyleParameters{"strength": 0.5},
	})
	if err != nil {
		t.Fatalf("Upsert test style: %v", err)
	}

	t.Cleanup(func() {
		db.Exec("DELETE FROM generated_images WHERE style_id = $1", st.ID)
		db.Exec("DELETE FROM styles WHERE id = $1", st.ID)
	})
	return st
}
