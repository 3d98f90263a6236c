// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubjectPlaceholder is the token in a style's prompt template that gets
// replaced with the subject category (e.g. "dog", "pet").
const SubjectPlaceholder = "{animalType}"

// StyleParameters is the numeric configuration bag attached to a style
// (e.g. "strength", "guidance_scale"). Backends read the keys they know
// and ignore the rest. Stored as JSONB.
type StyleParameters map[string]float64

// Value implements driver.Valuer so parameters can be written to JSONB.
func (p StyleParameters) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB columns.
func (p *StyleParameters) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = StyleParameters{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("style parameters: unsupported type %T", src)
	}

	out := StyleParameters{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("style parameters: %w", err)
	}
	*p = out
	return nil
}

// Float returns the parameter value for key, or fallback when absent.
func (p StyleParameters) Float(key string, fallback float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return fallback
}

// Style is a named art preset that drives the photo transformation.
// Styles are provisioned by seeding and never edited by customers.
type Style struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	ThumbnailURL   string          `json:"thumbnailUrl"`
	PromptTemplate string          `json:"promptTemplate"`
	NegativePrompt string          `json:"negativePrompt"`
	Parameters     StyleParameters `json:"parameters"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Prompt renders the prompt template for the given subject category.
// Every occurrence of the placeholder is replaced.
func (s *Style) Prompt(subject string) string {
	return strings.ReplaceAll(s.PromptTemplate, SubjectPlaceholder, subject)
}
