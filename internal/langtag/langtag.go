// Package langtag compares BCP-47-like language tags the way trailer
// manifests use them: only the primary language subtag matters, regions are
// advisory ("pt-BR" matches "pt", "en-US" matches "en-GB").
package langtag

import (
	"strings"

	"golang.org/x/text/language"
)

// Primary returns the primary language subtag of a tag, lowercased.
// Falls back to naive splitting when the tag does not parse, so scraped
// values like "es-419" or bare "en" still work.
func Primary(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if t, err := language.Parse(tag); err == nil {
		if base, conf := t.Base(); conf != language.No {
			return base.String()
		}
	}
	primary, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(primary)
}

// Match reports whether two tags share a primary language subtag.
func Match(a, b string) bool {
	pa, pb := Primary(a), Primary(b)
	return pa != "" && pa == pb
}

// Region returns the region subtag of a tag, lowercased, or "" when absent.
func Region(tag string) string {
	if t, err := language.Parse(strings.TrimSpace(tag)); err == nil {
		if region, conf := t.Region(); conf > language.Low && region.IsCountry() {
			return strings.ToLower(region.String())
		}
	}
	parts := strings.Split(tag, "-")
	if len(parts) >= 2 && len(parts[len(parts)-1]) == 2 {
		return strings.ToLower(parts[len(parts)-1])
	}
	return ""
}

// Normalize rebuilds a tag as "<primary>" or "<primary>-<REGION>".
func Normalize(tag string) string {
	primary := Primary(tag)
	if primary == "" {
		return ""
	}
	if region := Region(tag); region != "" {
		return primary + "-" + strings.ToUpper(region)
	}
	return primary
}
