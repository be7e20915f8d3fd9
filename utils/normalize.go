package utils

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// NormalizeText reduces a title or URL slug to a comparable form: ASCII
// transliteration, case folding, punctuation stripped, whitespace collapsed.
// "The Batman", "the-batman" and "The Batman" all normalize identically.
func NormalizeText(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Slug turns a title into a safe filename stem, e.g. "Official Trailer #2"
// becomes "official-trailer-2".
func Slug(s string) string {
	normalized := NormalizeText(s)
	if normalized == "" {
		return "trailer"
	}
	return strings.ReplaceAll(normalized, " ", "-")
}
