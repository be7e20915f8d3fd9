// Package dash parses the DASH manifests Prime Video serves for trailers.
// Only representation-level data is needed: one best video track and one
// audio track per language.
package dash

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"trailfetch/internal/langtag"
)

// Representation is one encoded rendition described by an MPD.
type Representation struct {
	IsVideo      bool
	IsAudio      bool
	Width        int
	AudioTrackID string
	Language     string
	BaseURL      string
}

// Manifest is a parsed MPD.
type Manifest struct {
	Representations []Representation
}

type mpdDoc struct {
	Periods []struct {
		AdaptationSets []adaptationSet `xml:"AdaptationSet"`
	} `xml:"Period"`
}

type adaptationSet struct {
	ContentType     string `xml:"contentType,attr"`
	MimeType        string `xml:"mimeType,attr"`
	AudioTrackID    string `xml:"audioTrackId,attr"`
	Lang            string `xml:"lang,attr"`
	Representations []struct {
		Width    int    `xml:"width,attr"`
		MimeType string `xml:"mimeType,attr"`
		BaseURL  string `xml:"BaseURL"`
	} `xml:"Representation"`
}

// Parse decodes MPD XML into a flat representation list. Content kind is
// taken from the adaptation-set attributes when present; otherwise it falls
// back to checking the base-URL path for a "video"/"audio" substring, which
// is what the served manifests were observed to require.
func Parse(text string) (*Manifest, error) {
	var doc mpdDoc
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("dash: decode mpd: %w", err)
	}

	m := &Manifest{}
	for _, period := range doc.Periods {
		for _, set := range period.AdaptationSets {
			for _, rep := range set.Representations {
				r := Representation{
					Width:        rep.Width,
					AudioTrackID: set.AudioTrackID,
					Language:     set.Lang,
					BaseURL:      strings.TrimSpace(rep.BaseURL),
				}
				r.IsVideo, r.IsAudio = classify(set, rep.MimeType, r.BaseURL)
				m.Representations = append(m.Representations, r)
			}
		}
	}
	if len(m.Representations) == 0 {
		return nil, errors.New("dash: manifest has no representations")
	}
	return m, nil
}

func classify(set adaptationSet, repMime, baseURL string) (video, audio bool) {
	kind := set.ContentType
	if kind == "" {
		for _, mime := range []string{set.MimeType, repMime} {
			if prefix, _, ok := strings.Cut(mime, "/"); ok {
				kind = prefix
				break
			}
		}
	}
	switch kind {
	case "video":
		return true, false
	case "audio":
		return false, true
	}
	// Substring heuristic over the resolved path segment. Brittle, but real
	// manifests from the supported platform omit the attributes above.
	lower := strings.ToLower(baseURL)
	return strings.Contains(lower, "video"), strings.Contains(lower, "audio")
}

// SelectVideo returns the widest video representation.
func (m *Manifest) SelectVideo() (Representation, error) {
	var best *Representation
	for i := range m.Representations {
		r := &m.Representations[i]
		if !r.IsVideo {
			continue
		}
		if best == nil || r.Width > best.Width {
			best = r
		}
	}
	if best == nil {
		return Representation{}, errors.New("dash: no video representation")
	}
	return *best, nil
}

// SelectAudio returns the audio representation whose track id matches the
// requested one, falling back to language-tag matching and then to the first
// audio representation.
func (m *Manifest) SelectAudio(audioTrackID, lang string) (Representation, error) {
	var first *Representation
	for i := range m.Representations {
		r := &m.Representations[i]
		if !r.IsAudio {
			continue
		}
		if first == nil {
			first = r
		}
		if audioTrackID != "" && r.AudioTrackID == audioTrackID {
			return *r, nil
		}
	}
	if lang != "" {
		for i := range m.Representations {
			r := &m.Representations[i]
			if r.IsAudio && langtag.Match(r.Language, lang) {
				return *r, nil
			}
		}
	}
	if first == nil {
		return Representation{}, errors.New("dash: no audio representation")
	}
	return *first, nil
}
