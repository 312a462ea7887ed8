package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/PvtMilo/gen-ai/internal/models"
)

const themeSelect = `
	SELECT id, serial_id, title, thumbnail_url, prompt, negative_prompt, params
	FROM themes
`

const themeOrder = ` ORDER BY serial_id ASC NULLS LAST, id ASC`

func scanTheme(row interface{ Scan(...interface{}) error }) (*models.Theme, error) {
	var t models.Theme
	err := row.Scan(&t.ID, &t.SerialID, &t.Title, &t.ThumbnailURL, &t.Prompt, &t.NegativePrompt, &t.Params)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) ListThemes() ([]models.Theme, error) {
	rows, err := c.db.Query(themeSelect + themeOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	defer rows.Close()

	var themes []models.Theme
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan theme: %w", err)
		}
		themes = append(themes, *t)
	}
	return themes, rows.Err()
}

func (c *Client) GetTheme(themeID string) (*models.Theme, error) {
	t, err := scanTheme(c.db.QueryRow(themeSelect+` WHERE id = $1`, themeID))
	if err == sql.ErrNoRows {
		return nil, ErrThemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get theme: %w", err)
	}
	return t, nil
}

func (c *Client) ThemeIDExists(themeID string) (bool, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM themes WHERE id = $1`, themeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check theme id: %w", err)
	}
	return count > 0, nil
}

func (c *Client) CountThemes() (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM themes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count themes: %w", err)
	}
	return count, nil
}

// NextThemeSerial returns max(serial_id)+1, or 1 on an empty table.
// Serials are never reused after deletions.
func (c *Client) NextThemeSerial() (int64, error) {
	var max sql.NullInt64
	if err := c.db.QueryRow(`SELECT MAX(serial_id) FROM themes`).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to get max theme serial: %w", err)
	}
	return max.Int64 + 1, nil
}

func (c *Client) InsertTheme(t *models.Theme) error {
	params := t.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	_, err := c.db.Exec(`
		INSERT INTO themes (id, serial_id, title, thumbnail_url, prompt, negative_prompt, params)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.SerialID, t.Title, t.ThumbnailURL, t.Prompt, t.NegativePrompt, params)
	if err != nil {
		return fmt.Errorf("failed to insert theme: %w", err)
	}
	return nil
}

func (c *Client) UpdateTheme(t *models.Theme) error {
	params := t.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	res, err := c.db.Exec(`
		UPDATE themes
		SET title = $1, thumbnail_url = $2, prompt = $3, negative_prompt = $4, params = $5
		WHERE id = $6
	`, t.Title, t.ThumbnailURL, t.Prompt, t.NegativePrompt, params, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update theme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrThemeNotFound
	}
	return nil
}

func (c *Client) DeleteTheme(themeID string) error {
	res, err := c.db.Exec(`DELETE FROM themes WHERE id = $1`, themeID)
	if err != nil {
		return fmt.Errorf("failed to delete theme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrThemeNotFound
	}
	return nil
}

// ThumbnailInUse reports whether any remaining theme still references
// the exact thumbnail URL, which blocks file deletion.
func (c *Client) ThumbnailInUse(thumbnailURL string) (bool, error) {
	var count int
	err := c.db.QueryRow(
		`SELECT COUNT(*) FROM themes WHERE thumbnail_url = $1`, thumbnailURL,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check thumbnail usage: %w", err)
	}
	return count > 0, nil
}
