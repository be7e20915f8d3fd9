package appletv

import "strings"

// mergeVTT concatenates segmented WebVTT parts into one document: a single
// header, with per-segment WEBVTT headers and X-TIMESTAMP-MAP lines dropped.
func mergeVTT(parts []string) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	for _, part := range parts {
		part = strings.ReplaceAll(part, "\r\n", "\n")
		var kept []string
		for _, line := range strings.Split(part, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "WEBVTT") || strings.HasPrefix(trimmed, "X-TIMESTAMP-MAP") {
				continue
			}
			kept = append(kept, line)
		}
		chunk := strings.Trim(strings.Join(kept, "\n"), "\n")
		if chunk == "" {
			continue
		}
		b.WriteString(chunk)
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
