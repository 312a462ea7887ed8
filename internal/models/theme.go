package models

import (
	"database/sql"
	"encoding/json"
)

type Theme struct {
	ID             string
	SerialID       sql.NullInt64
	Title          string
	ThumbnailURL   string
	Prompt         string
	NegativePrompt sql.NullString
	Params         json.RawMessage
}

// ParamMap decodes the params column; a missing or malformed column
// yields an empty map rather than an error.
func (t *Theme) ParamMap() map[string]interface{} {
	params := make(map[string]interface{})
	if len(t.Params) > 0 {
		_ = json.Unmarshal(t.Params, &params)
	}
	return params
}
