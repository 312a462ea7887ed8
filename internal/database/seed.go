package database

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/PvtMilo/gen-ai/internal/models"
)

//go:embed themes.json
var seedThemesJSON []byte

type seedTheme struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Thumbnail      string                 `json:"thumbnail"`
	Prompt         string                 `json:"prompt"`
	NegativePrompt string                 `json:"negative_prompt"`
	Params         map[string]interface{} `json:"params"`
}

// SeedThemesIfEmpty loads the built-in theme catalog into an empty
// themes table, assigning serials in file order. A non-empty table is
// left untouched.
func (c *Client) SeedThemesIfEmpty() (int, error) {
	count, err := c.CountThemes()
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	var seeds []seedTheme
	if err := json.Unmarshal(seedThemesJSON, &seeds); err != nil {
		return 0, fmt.Errorf("failed to parse seed themes: %w", err)
	}

	seeded := 0
	for i, seed := range seeds {
		params, err := json.Marshal(seed.Params)
		if err != nil {
			return seeded, fmt.Errorf("theme %s: %w", seed.ID, err)
		}

		theme := &models.Theme{
			ID:           seed.ID,
			SerialID:     sql.NullInt64{Int64: int64(i + 1), Valid: true},
			Title:        seed.Title,
			ThumbnailURL: seed.Thumbnail,
			Prompt:       seed.Prompt,
			Params:       params,
		}
		if seed.NegativePrompt != "" {
			theme.NegativePrompt = sql.NullString{String: seed.NegativePrompt, Valid: true}
		}

		if err := c.InsertTheme(theme); err != nil {
			return seeded, fmt.Errorf("theme %s: %w", seed.ID, err)
		}
		seeded++
	}
	return seeded, nil
}
