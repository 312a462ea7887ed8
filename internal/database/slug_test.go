package database_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PvtMilo/gen-ai/internal/database"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "royal-palace", database.Slugify("Royal Palace"))
	assert.Equal(t, "neon-nights-2077", database.Slugify("Neon Nights 2077!"))
	assert.Equal(t, "cafe", database.Slugify("--Café--"))
	assert.Equal(t, "theme", database.Slugify("!!!"))
	assert.Equal(t, "theme", database.Slugify(""))
}

func TestSlugify_FoldsDiacritics(t *testing.T) {
	assert.Equal(t, "senorita-cafe", database.Slugify("Señorita Café"))
	assert.Equal(t, "creme-brulee", database.Slugify("Crème Brûlée"))
	assert.Equal(t, "uber-koln", database.Slugify("Über Köln"))
}

func TestNextThemeID_FirstFree(t *testing.T) {
	id := database.NextThemeID("Royal Palace", func(string) bool { return false })
	assert.Equal(t, "royal-palace", id)
}

func TestNextThemeID_Suffixes(t *testing.T) {
	taken := map[string]bool{
		"royal-palace":   true,
		"royal-palace-2": true,
	}
	id := database.NextThemeID("Royal Palace", func(candidate string) bool {
		return taken[candidate]
	})
	assert.Equal(t, "royal-palace-3", id)
}

func TestNextThemeID_Deterministic(t *testing.T) {
	taken := map[string]bool{"vintage-studio": true}
	isTaken := func(candidate string) bool { return taken[candidate] }

	first := database.NextThemeID("Vintage Studio", isTaken)
	second := database.NextThemeID("Vintage Studio", isTaken)
	assert.Equal(t, first, second)
	assert.Equal(t, "vintage-studio-2", first)
}

func TestNextThemeID_LongTitleStaysWithinLimit(t *testing.T) {
	title := strings.Repeat("very long theme title ", 10)
	taken := map[string]bool{}
	isTaken := func(candidate string) bool { return taken[candidate] }

	first := database.NextThemeID(title, isTaken)
	assert.LessOrEqual(t, len(first), 64)

	taken[first] = true
	second := database.NextThemeID(title, isTaken)
	assert.LessOrEqual(t, len(second), 64)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(second, "-2"))
}
