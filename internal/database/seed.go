package database

import (
	"context"
	"fmt"
	"log/slog"

	"pawtrait/internal/models"
)

// DefaultStyles are the presets provisioned on first start. Names are the
// idempotency key: re-seeding never overwrites an existing style.
var DefaultStyles = []models.Style{
	{
		Name:           "Portrait Royal",
		Description:    "Transformez votre animal en noble d'un autre temps.",
		ThumbnailURL:   "https://placehold.co/600x400",
		PromptTemplate: "A royal portrait of a {animalType} in a renaissance painting style, highly detailed, ornate frame",
		NegativePrompt: "modern, blurry, cartoon, low quality",
		Parameters:     models.StyleParameters{"strength": 0.8, "guidance_scale": 8.0},
	},
	{
		Name:           "Pop Art Coloré",
		Description:    "Donnez à votre compagnon un look pop art inspiré de Warhol.",
		ThumbnailURL:   "https://placehold.co/600x400.jpg",
		PromptTemplate: "A vibrant pop art portrait of a {animalType} in the style of Andy Warhol, bold colors, graphic lines",
		NegativePrompt: "realistic, dull, blurry, 3d",
		Parameters:     models.StyleParameters{"strength": 0.9, "guidance_scale": 7.0},
	},
}

// StyleUpserter is the write side of the style catalog used for
// provisioning.
type StyleUpserter interface {
	Upsert(ctx context.Context, s *models.Style) (*models.Style, error)
}

// Seed upserts the default styles by name. Existing rows are left
// untouched, so it is safe to run on every start.
func Seed(ctx context.Context, styles StyleUpserter) error {
	for i := range DefaultStyles {
		st, err := styles.Upsert(ctx, &DefaultStyles[i])
		if err != nil {
			return fmt.Errorf("seed style %q: %w", DefaultStyles[i].Name, err)
		}
		slog.Debug("style provisioned", "name", st.Name, "id", st.ID)
	}

	slog.Info("style catalog provisioned", "count", len(DefaultStyles))
	return nil
}
