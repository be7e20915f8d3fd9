// Package hls parses HLS master and media playlists into the track lists the
// service adapters select from. It covers the subset of the m3u8 grammar the
// supported streaming services emit; unknown tags are ignored.
package hls

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Variant is one encoded video rendition referenced by a master playlist.
type Variant struct {
	Bandwidth  int
	Width      int
	Height     int
	Codecs     string
	VideoRange string
	URI        string
}

// Rendition is one alternate audio or subtitle track (EXT-X-MEDIA).
type Rendition struct {
	GroupID         string
	Name            string
	Language        string
	Characteristics []string
	Forced          bool
	Default         bool
	URI             string
}

// Master is a parsed master playlist.
type Master struct {
	Variants       []Variant
	AudioGroups    []Rendition
	SubtitleGroups []Rendition
}

// Segment is one entry of a media playlist. Init segments (EXT-X-MAP) come
// first and must be fetched before any media segment.
type Segment struct {
	URI  string
	Init bool
}

// Media is a parsed media playlist: its segments in playback order,
// init segment included.
type Media struct {
	Segments []Segment
}

var errNotPlaylist = errors.New("hls: missing #EXTM3U header")

// ParseMaster parses master playlist text. Some services append a trailing
// non-payload line to the document; when the first parse fails the last line
// is stripped and the parse retried once.
func ParseMaster(text string) (*Master, error) {
	m, err := parseMaster(text)
	if err != nil {
		stripped, ok := stripLastLine(text)
		if !ok {
			return nil, err
		}
		if m, retryErr := parseMaster(stripped); retryErr == nil {
			return m, nil
		}
		return nil, err
	}
	return m, nil
}

func parseMaster(text string) (*Master, error) {
	lines := splitLines(text)
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "#EXTM3U") {
		return nil, errNotPlaylist
	}

	m := &Master{}
	var pending *Variant
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			if pending != nil {
				return nil, fmt.Errorf("hls: stream-inf without uri before %q", line)
			}
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := Variant{
				Bandwidth:  atoi(attrs["BANDWIDTH"]),
				Codecs:     attrs["CODECS"],
				VideoRange: attrs["VIDEO-RANGE"],
			}
			v.Width, v.Height = parseResolution(attrs["RESOLUTION"])
			pending = &v
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			r := Rendition{
				GroupID:  attrs["GROUP-ID"],
				Name:     attrs["NAME"],
				Language: attrs["LANGUAGE"],
				Forced:   attrs["FORCED"] == "YES",
				Default:  attrs["DEFAULT"] == "YES",
				URI:      attrs["URI"],
			}
			if chars := attrs["CHARACTERISTICS"]; chars != "" {
				r.Characteristics = strings.Split(chars, ",")
			}
			switch attrs["TYPE"] {
			case "AUDIO":
				m.AudioGroups = append(m.AudioGroups, r)
			case "SUBTITLES":
				m.SubtitleGroups = append(m.SubtitleGroups, r)
			}
		case strings.HasPrefix(line, "#"):
			// unrelated tag
		default:
			if pending == nil {
				return nil, fmt.Errorf("hls: unexpected uri line %q", line)
			}
			pending.URI = line
			m.Variants = append(m.Variants, *pending)
			pending = nil
		}
	}
	if pending != nil {
		return nil, errors.New("hls: stream-inf without uri at end of playlist")
	}
	return m, nil
}

// ParseMedia parses media playlist text, applying the same strip-and-retry
// tolerance as ParseMaster.
func ParseMedia(text string) (*Media, error) {
	m, err := parseMedia(text)
	if err != nil {
		stripped, ok := stripLastLine(text)
		if !ok {
			return nil, err
		}
		if m, retryErr := parseMedia(stripped); retryErr == nil {
			return m, nil
		}
		return nil, err
	}
	return m, nil
}

func parseMedia(text string) (*Media, error) {
	lines := splitLines(text)
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "#EXTM3U") {
		return nil, errNotPlaylist
	}

	m := &Media{}
	expectSegment := false
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			if uri := attrs["URI"]; uri != "" {
				m.Segments = append(m.Segments, Segment{URI: uri, Init: true})
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			expectSegment = true
		case strings.HasPrefix(line, "#"):
			// unrelated tag
		default:
			if !expectSegment {
				return nil, fmt.Errorf("hls: segment uri %q without #EXTINF", line)
			}
			m.Segments = append(m.Segments, Segment{URI: line})
			expectSegment = false
		}
	}
	if expectSegment {
		return nil, errors.New("hls: #EXTINF without segment uri at end of playlist")
	}
	if len(m.Segments) == 0 {
		return nil, errors.New("hls: media playlist has no segments")
	}
	return m, nil
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripLastLine(text string) (string, bool) {
	trimmed := strings.TrimRight(text, "\r\n \t")
	idx := strings.LastIndexByte(trimmed, '\n')
	if idx < 0 {
		return "", false
	}
	return trimmed[:idx], true
}

// parseAttributes splits an attribute list of the form KEY=VALUE,KEY="V,V"
// into a map, honoring quoted values.
func parseAttributes(list string) map[string]string {
	attrs := make(map[string]string)
	for len(list) > 0 {
		eq := strings.IndexByte(list, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(list[:eq])
		rest := list[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				value = rest[1:]
				rest = ""
			} else {
				value = rest[1 : end+1]
				rest = rest[end+2:]
				rest = strings.TrimPrefix(rest, ",")
			}
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				value = rest
				rest = ""
			} else {
				value = rest[:end]
				rest = rest[end+1:]
			}
		}
		attrs[key] = strings.TrimSpace(value)
		list = rest
	}
	return attrs
}

func parseResolution(s string) (int, int) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0
	}
	return atoi(w), atoi(h)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
