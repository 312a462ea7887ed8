package database

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const themeIDMaxLen = 64

// Slugify derives a URL-safe theme id base from a title: accented
// letters are folded to their ASCII base, ASCII letters and digits are
// kept, every other run of characters becomes a single dash, and the
// result is lowercased. Empty results fall back to "theme".
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range norm.NFKD.String(title) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining marks left over from the decomposition
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "theme"
	}
	return slug
}

// NextThemeID picks the first free id for a title: the bare slug, then
// slug-2, slug-3, and so on. The id never exceeds 64 characters; the
// base is truncated to make room for the numeric suffix.
func NextThemeID(title string, taken func(string) bool) string {
	base := Slugify(title)
	if len(base) > themeIDMaxLen {
		base = strings.TrimRight(base[:themeIDMaxLen], "-")
	}
	if base == "" {
		base = "theme"
	}

	candidate := base
	for counter := 2; taken(candidate); counter++ {
		suffix := fmt.Sprintf("-%d", counter)
		maxBase := min(themeIDMaxLen-len(suffix), len(base))
		prefix := strings.TrimRight(base[:maxBase], "-")
		if prefix == "" {
			prefix = "theme"
		}
		candidate = prefix + suffix
	}
	return candidate
}
