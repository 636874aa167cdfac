package pipeline

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří"
// -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeFilename reduces an uploaded filename to a safe, stable photo
// reference: base name only, diacritics stripped, spaces collapsed to
// underscores. Camera uploads arrive with all kinds of path prefixes and
// locale-specific names; photo references must be comparable across them.
func NormalizeFilename(name string) string {
	name = filepath.Base(name)
	name = removeDiacritics(name)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
