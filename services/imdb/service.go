// Package imdb downloads trailers from www.imdb.com video pages.
//
// IMDb serves combined audio+video MP4 files directly, so there is no remux
// step. Discovery by name is not supported: the adapter only works from a
// direct trailer page.
package imdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"trailfetch/internal/fetch"
	"trailfetch/internal/scrape"
	"trailfetch/services"
)

const (
	serviceName   = "IMDB"
	serviceDomain = "www.imdb.com"

	nextDataScriptID = "__NEXT_DATA__"
)

// Service downloads IMDb trailers as direct MP4 files.
type Service struct {
	fetch *fetch.Client
}

func NewService(fetcher *fetch.Client) *Service {
	return &Service{fetch: fetcher}
}

func (s *Service) Name() string   { return serviceName }
func (s *Service) Domain() string { return serviceDomain }

func (s *Service) Locate(ctx context.Context, req services.LocateRequest) ([]services.Candidate, error) {
	if req.TrailerPage == "" {
		return nil, services.ErrNoTrailers
	}

	if req.OnTrailerFound != nil {
		req.OnTrailerFound(req.TrailerPage)
	}

	page, _, err := s.fetch.Page(ctx, req.TrailerPage, nil)
	if err != nil {
		return nil, err
	}

	videoIDs, err := extractVideoIDs(page)
	if err != nil {
		return nil, err
	}
	if len(videoIDs) == 0 {
		return nil, services.ErrNoTrailers
	}

	var out []services.Candidate
	for i, id := range videoIDs {
		log.Printf("[imdb] downloading video %d of %d", i+1, len(videoIDs))

		videoURL := fmt.Sprintf("https://%s/video/%s/", serviceDomain, id)
		resultPath := filepath.Join(req.OutDir, fmt.Sprintf("trailer-%d.mp4", i+1))

		title, err := s.downloadVideoPage(ctx, videoURL, resultPath)
		if err != nil {
			log.Printf("[imdb] video %s failed: %v", id, err)
			continue
		}
		if title == "" {
			title = fmt.Sprintf("Trailer %d", i+1)
		}
		out = append(out, services.Candidate{Title: title, Path: resultPath})
	}

	if len(out) == 0 {
		return nil, services.ErrNoTrailers
	}
	return out, nil
}

// extractVideoIDs pulls trailer video ids out of a title page's embedded
// JSON: the "videos" category items whose content type mentions a trailer.
func extractVideoIDs(page string) ([]string, error) {
	raw, ok := scrape.ScriptByID(page, nextDataScriptID)
	if !ok {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "next data script not found"}
	}

	var doc struct {
		Props struct {
			PageProps struct {
				ContentData struct {
					Categories []struct {
						ID      string `json:"id"`
						Section struct {
							Items []struct {
								Video struct {
									ID          string `json:"id"`
									ContentType struct {
										ID string `json:"id"`
									} `json:"contentType"`
								} `json:"video"`
							} `json:"items"`
						} `json:"section"`
					} `json:"categories"`
				} `json:"contentData"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "next data is not valid JSON"}
	}

	var ids []string
	for _, category := range doc.Props.PageProps.ContentData.Categories {
		if category.ID != "videos" {
			continue
		}
		for _, item := range category.Section.Items {
			if item.Video.ID == "" || !strings.Contains(item.Video.ContentType.ID, "trailer") {
				continue
			}
			ids = append(ids, item.Video.ID)
		}
	}
	return ids, nil
}

// downloadVideoPage resolves a video page's best direct MP4 and downloads it.
func (s *Service) downloadVideoPage(ctx context.Context, videoURL, dest string) (string, error) {
	page, _, err := s.fetch.Page(ctx, videoURL, nil)
	if err != nil {
		return "", err
	}

	title, playbackURL, err := extractPlayback(page)
	if err != nil {
		return "", err
	}

	if err := s.fetch.Fetch(ctx, playbackURL, dest, fetch.Options{}); err != nil {
		return "", err
	}
	return title, nil
}

type playbackURL struct {
	URL           string `json:"url"`
	VideoMimeType string `json:"videoMimeType"`
	DisplayName   struct {
		Value string `json:"value"`
	} `json:"displayName"`
}

// extractPlayback picks the highest-resolution non-HLS URL of a video page.
// Display names are resolution labels like "1080p"; anything that does not
// parse as a resolution is skipped.
func extractPlayback(page string) (title, url string, err error) {
	raw, ok := scrape.ScriptByID(page, nextDataScriptID)
	if !ok {
		return "", "", &scrape.ExtractionError{Site: serviceName, Detail: "next data script not found"}
	}

	var doc struct {
		Props struct {
			PageProps struct {
				VideoPlaybackData struct {
					Video struct {
						Name struct {
							Value string `json:"value"`
						} `json:"name"`
						PlaybackURLs []playbackURL `json:"playbackURLs"`
					} `json:"video"`
				} `json:"videoPlaybackData"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", "", &scrape.ExtractionError{Site: serviceName, Detail: "video page next data is not valid JSON"}
	}

	best := 0
	for _, u := range doc.Props.PageProps.VideoPlaybackData.Video.PlaybackURLs {
		if u.VideoMimeType == "M3U8" || u.URL == "" {
			continue
		}
		resolution, convErr := strconv.Atoi(strings.TrimSuffix(u.DisplayName.Value, "p"))
		if convErr != nil {
			continue
		}
		if resolution > best {
			best = resolution
			url = u.URL
		}
	}
	if url == "" {
		return "", "", services.ErrNoTrailers
	}
	return doc.Props.PageProps.VideoPlaybackData.Video.Name.Value, url, nil
}
