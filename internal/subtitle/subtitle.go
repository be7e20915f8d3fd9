// Package subtitle converts timed-text XML (TTML) documents into WebVTT.
package subtitle

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoCues is returned when the document contains no timed paragraphs.
var ErrNoCues = errors.New("subtitle: no cues found")

type cue struct {
	begin string
	end   string
	text  string
}

// XMLToVTT renders a TTML document as WebVTT. Timestamps given in
// 100-nanosecond ticks (a trailing "t") are converted to clock time, any
// other timestamp format is passed through untouched.
func XMLToVTT(xmlContent string) (string, error) {
	cues, err := parseCues(xmlContent)
	if err != nil {
		return "", err
	}
	if len(cues) == 0 {
		return "", ErrNoCues
	}

	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, c := range cues {
		b.WriteString(formatTime(c.begin))
		b.WriteString(" --> ")
		b.WriteString(formatTime(c.end))
		b.WriteByte('\n')
		b.WriteString(c.text)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

func parseCues(xmlContent string) ([]cue, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlContent))
	decoder.Strict = false

	var cues []cue
	var current *cue
	var text strings.Builder
	depth := 0

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := token.(type) {
		case xml.StartElement:
			if current == nil && t.Name.Local == "p" {
				current = &cue{}
				text.Reset()
				depth = 1
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "begin":
						current.begin = attr.Value
					case "end":
						current.end = attr.Value
					}
				}
			} else if current != nil {
				depth++
				// line breaks inside a cue become newlines
				if t.Name.Local == "br" {
					text.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if current == nil {
				continue
			}
			depth--
			if depth == 0 {
				current.text = strings.TrimSpace(text.String())
				if current.begin != "" && current.end != "" && current.text != "" {
					cues = append(cues, *current)
				}
				current = nil
			}
		case xml.CharData:
			if current != nil {
				text.Write(t)
			}
		}
	}
	return cues, nil
}

func formatTime(t string) string {
	if !strings.HasSuffix(t, "t") {
		return t
	}
	ticks, err := strconv.ParseInt(strings.TrimSuffix(t, "t"), 10, 64)
	if err != nil {
		return t
	}

	totalSeconds := float64(ticks) / 10000000
	hours := int(totalSeconds) / 3600
	minutes := (int(totalSeconds) % 3600) / 60
	seconds := int(totalSeconds) % 60
	millis := int((totalSeconds - float64(int(totalSeconds))) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}
