// Package appletv downloads trailers published on tv.apple.com.
package appletv

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strings"

	"trailfetch/internal/fetch"
	"trailfetch/internal/langtag"
	"trailfetch/internal/remux"
	"trailfetch/internal/scrape"
	"trailfetch/services"
	"trailfetch/services/search"
	"trailfetch/utils"
)

const (
	serviceName   = "APPLE_TV"
	serviceDomain = "tv.apple.com"

	shoeboxScriptID = "shoebox-uts-api"
	trailersShelfID = "uts.col.Trailers"
)

// Service locates Apple TV trailer pages and downloads their HLS streams.
type Service struct {
	fetch  *fetch.Client
	search *search.Client
	remux  *remux.Engine
}

func NewService(fetcher *fetch.Client, searcher *search.Client, engine *remux.Engine) *Service {
	return &Service{fetch: fetcher, search: searcher, remux: engine}
}

func (s *Service) Name() string   { return serviceName }
func (s *Service) Domain() string { return serviceDomain }

func (s *Service) Locate(ctx context.Context, req services.LocateRequest) ([]services.Candidate, error) {
	page := req.TrailerPage
	if page == "" {
		found, err := s.discover(ctx, req.Name, req.Year)
		if err != nil {
			return nil, err
		}
		page = found
	}

	page = injectRegion(page, langtag.Region(req.Lang))

	if req.OnTrailerFound != nil {
		req.OnTrailerFound(page)
	}

	trailers, err := s.extractTrailers(ctx, page)
	if err != nil {
		return nil, err
	}

	var out []services.Candidate
	for i, tr := range trailers {
		resultPath := filepath.Join(req.OutDir, fmt.Sprintf("trailer-%d.mp4", i+1))
		candidate, err := s.downloadFromPlaylist(ctx, playlistJob{
			ManifestURL:     tr.HLSURL,
			Title:           tr.Title,
			ResultPath:      resultPath,
			Lang:            req.Lang,
			FullAudioTracks: req.FullAudioTracks,
			OutDir:          req.OutDir,
		})
		if err != nil {
			log.Printf("[appletv] trailer %d (%s) failed: %v", i+1, tr.Title, err)
			continue
		}
		out = append(out, candidate)
	}

	if len(out) == 0 {
		return nil, services.ErrNoTrailers
	}
	return out, nil
}

// discover finds the title's Apple TV page through a site-restricted search.
// The match is on the page URL's slug segment, not on the result title.
func (s *Service) discover(ctx context.Context, name string, year int) (string, error) {
	log.Printf("[appletv] searching for %q (%d)", name, year)

	term := fmt.Sprintf("%s %d site:https://%s", name, year, serviceDomain)
	results, err := s.search.Search(ctx, term)
	if err != nil {
		return "", err
	}

	want := utils.NormalizeText(name)
	for _, r := range results {
		if !strings.HasPrefix(r.Link, "https://"+serviceDomain) {
			continue
		}
		parts := strings.Split(strings.TrimRight(r.Link, "/"), "/")
		if len(parts) < 2 {
			continue
		}
		slug := parts[len(parts)-2]
		if utils.NormalizeText(slug) == want {
			return r.Link, nil
		}
	}
	return "", services.ErrNoTrailers
}

// injectRegion places the storefront region segment right before the trailing
// title-id segment. Apple serves different trailer sets per storefront, so
// the region comes from the requested language, defaulting to "us".
func injectRegion(pageURL, region string) string {
	if region == "" {
		region = "us"
	}
	region = strings.ToLower(region)

	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return pageURL
	}
	last := len(segments) - 1
	if segments[last-1] == region {
		return pageURL
	}
	rebuilt := append([]string{}, segments[:last]...)
	rebuilt = append(rebuilt, region, segments[last])
	u.Path = "/" + strings.Join(rebuilt, "/")
	return u.String()
}

type shoeboxTrailer struct {
	Title  string
	HLSURL string
}

type shoeboxCanvas struct {
	Canvas struct {
		Shelves []struct {
			ID    string `json:"id"`
			Items []struct {
				Title     string `json:"title"`
				Playables []struct {
					Assets struct {
						HLSURL string `json:"hlsUrl"`
					} `json:"assets"`
				} `json:"playables"`
			} `json:"items"`
		} `json:"shelves"`
	} `json:"canvas"`
}

func (s *Service) extractTrailers(ctx context.Context, pageURL string) ([]shoeboxTrailer, error) {
	page, _, err := s.fetch.Page(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}

	raw, ok := scrape.ScriptByID(page, shoeboxScriptID)
	if !ok {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "shoebox script not found"}
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "shoebox payload is not an object"}
	}
	if len(entries) == 0 {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "shoebox payload is empty"}
	}

	titleID := trailingSegment(pageURL)
	var entry json.RawMessage
	for key, value := range entries {
		if strings.HasSuffix(key, titleID) {
			entry = value
			break
		}
	}
	if entry == nil {
		for _, value := range entries {
			entry = value
			break
		}
	}

	var data shoeboxCanvas
	if err := unmarshalMaybeString(entry, &data); err != nil {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "unexpected shoebox entry shape"}
	}

	for _, shelf := range data.Canvas.Shelves {
		if !strings.HasPrefix(shelf.ID, trailersShelfID) {
			continue
		}
		var trailers []shoeboxTrailer
		for _, item := range shelf.Items {
			if len(item.Playables) == 0 || item.Playables[0].Assets.HLSURL == "" {
				continue
			}
			trailers = append(trailers, shoeboxTrailer{
				Title:  item.Title,
				HLSURL: item.Playables[0].Assets.HLSURL,
			})
		}
		if len(trailers) > 0 {
			return trailers, nil
		}
	}
	return nil, services.ErrNoTrailers
}

// unmarshalMaybeString handles shoebox entries that arrive either as inline
// JSON or as a JSON-encoded string of JSON.
func unmarshalMaybeString(raw json.RawMessage, out any) error {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		return json.Unmarshal([]byte(inner), out)
	}
	return json.Unmarshal(raw, out)
}

func trailingSegment(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	return segments[len(segments)-1]
}
