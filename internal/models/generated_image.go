// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedImage records one successful photo-to-art transformation.
// Rows are append-only: a correction is a new row, never an update.
type GeneratedImage struct {
	ID                uuid.UUID `json:"id"`
	OriginalImageURL  string    `json:"originalImageUrl"`
	GeneratedImageURL string    `json:"generatedImageUrl"`
	StyleID           uuid.UUID `json:"styleId"`
	ProductID         string    `json:"productId"`
	CreatedAt         time.Time `json:"createdAt"`
}
