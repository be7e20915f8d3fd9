// Package scrape isolates the fragile parts of reading embedded JSON out of
// streaming-service HTML. Site markup drifts; when it does, only these
// helpers and the per-service extractors built on them need touching.
package scrape

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ExtractionError indicates a page no longer has the shape the extractor
// expects, which usually means the upstream site changed.
type ExtractionError struct {
	Site   string
	Detail string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("scrape: %s: %s", e.Site, e.Detail)
}

// ScriptByID returns the text content of the <script> element with the given
// id attribute.
func ScriptByID(page, id string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", false
	}
	var found string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, attr := range n.Attr {
				if attr.Key == "id" && attr.Val == id {
					found = textContent(n)
					return true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	if walk(doc) {
		return found, true
	}
	return "", false
}

// ScriptContaining returns the first <script> body that contains marker.
func ScriptContaining(page, marker string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", false
	}
	var found string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "script" {
			if body := textContent(n); strings.Contains(body, marker) {
				found = body
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	if walk(doc) {
		return found, true
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// FixHexEscapes replaces JavaScript \xHH escapes with their characters so
// the payload becomes valid JSON. Netflix serializes its page state with
// them.
func FixHexEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if i+3 < len(s) && s[i] == '\\' && s[i+1] == 'x' && isHex(s[i+2]) && isHex(s[i+3]) {
			code, err := strconv.ParseUint(s[i+2:i+4], 16, 16)
			if err == nil {
				b.WriteRune(rune(code))
				i += 4
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
