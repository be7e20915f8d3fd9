// Package primevideo downloads trailers published on www.primevideo.com.
//
// Prime Video resolves streams through its GetPlaybackResources endpoint:
// the page yields a title id, the endpoint yields per-audio-track DASH
// manifest URL sets. The catalog exposes a single trailer per title.
package primevideo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"trailfetch/internal/dash"
	"trailfetch/internal/fetch"
	"trailfetch/internal/langtag"
	"trailfetch/internal/remux"
	"trailfetch/internal/scrape"
	"trailfetch/services"
	"trailfetch/services/search"
	"trailfetch/utils"
)

const (
	serviceName   = "PRIME_VIDEO"
	serviceDomain = "www.primevideo.com"

	playbackEndpoint = "https://atv-ps.primevideo.com/cdp/catalog/GetPlaybackResources"
	// deviceTypeID identifies a generic web player to the playback endpoint.
	deviceTypeID = "AOAGZA014O5RE"
)

var titleIDPattern = regexp.MustCompile(`"pageTitleId"\s*:\s*"([^"]+)"`)

// Service locates Prime Video trailer pages and downloads their DASH streams.
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

	if req.OnTrailerFound != nil {
		req.OnTrailerFound(page)
	}

	body, _, err := s.fetch.Page(ctx, page, nil)
	if err != nil {
		return nil, err
	}

	titleID, err := extractTitleID(body)
	if err != nil {
		return nil, err
	}

	playback, err := s.playbackResources(ctx, titleID)
	if err != nil {
		return nil, err
	}
	if len(playback.AudioTracks) == 0 {
		return nil, services.ErrNoTrailers
	}

	audio := selectAudioTrack(playback.AudioTracks, req.Lang)
	mpdURL, err := selectManifestURL(playback.URLSets, audio.AudioTrackID)
	if err != nil {
		return nil, err
	}

	candidate, err := s.downloadFromManifest(ctx, mpdURL, audio, req)
	if err != nil {
		return nil, err
	}
	return []services.Candidate{candidate}, nil
}

// discover finds the title's Prime Video page through a site-restricted
// search. Result titles look like "<name> - Prime Video", so everything
// after the first dash is stripped before matching.
func (s *Service) discover(ctx context.Context, name string, year int) (string, error) {
	log.Printf("[primevideo] searching for %q (%d)", name, year)

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
		title := strings.TrimSpace(strings.Split(r.Title, "-")[0])
		if utils.NormalizeText(title) == want {
			return r.Link, nil
		}
	}
	return "", services.ErrNoTrailers
}

func extractTitleID(page string) (string, error) {
	m := titleIDPattern.FindStringSubmatch(page)
	if m == nil {
		return "", &scrape.ExtractionError{Site: serviceName, Detail: "page title id not found"}
	}
	return m[1], nil
}

type playbackResources struct {
	AudioTracks []audioTrack
	URLSets     map[string]urlSet
}

type audioTrack struct {
	AudioTrackID string `json:"audioTrackId"`
	LanguageCode string `json:"languageCode"`
}

type urlSet struct {
	URLs struct {
		Manifest struct {
			URL          string `json:"url"`
			AudioTrackID string `json:"audioTrackId"`
			VideoQuality string `json:"videoQuality"`
		} `json:"manifest"`
	} `json:"urls"`
}

// playbackResources asks the playback endpoint for the title's trailer
// material with every audio track included.
func (s *Service) playbackResources(ctx context.Context, titleID string) (*playbackResources, error) {
	params := url.Values{}
	params.Set("asin", titleID)
	params.Set("consumptionType", "Streaming")
	params.Set("desiredResources", "PlaybackUrls")
	params.Set("deviceTypeID", deviceTypeID)
	params.Set("firmware", "1")
	params.Set("gascEnabled", "true")
	params.Set("resourceUsage", "CacheResources")
	params.Set("videoMaterialType", "Trailer")
	params.Set("audioTrackId", "all")

	var resp struct {
		PlaybackUrls struct {
			AudioTracks []audioTrack      `json:"audioTracks"`
			URLSets     map[string]urlSet `json:"urlSets"`
		} `json:"playbackUrls"`
	}
	raw, err := s.fetch.Text(ctx, playbackEndpoint+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "playback resources response is not valid JSON"}
	}
	return &playbackResources{
		AudioTracks: resp.PlaybackUrls.AudioTracks,
		URLSets:     resp.PlaybackUrls.URLSets,
	}, nil
}

func selectAudioTrack(tracks []audioTrack, lang string) audioTrack {
	for _, track := range tracks {
		if langtag.Match(track.LanguageCode, lang) {
			return track
		}
	}
	return tracks[0]
}

// selectManifestURL picks the HD url set whose audio track matches the
// selection; "ALL" and empty ids are wildcards.
func selectManifestURL(sets map[string]urlSet, audioTrackID string) (string, error) {
	for _, set := range sets {
		manifest := set.URLs.Manifest
		if manifest.VideoQuality != "HD" {
			continue
		}
		if manifest.AudioTrackID == audioTrackID || manifest.AudioTrackID == "ALL" || manifest.AudioTrackID == "" {
			return manifest.URL, nil
		}
	}
	return "", services.ErrNoTrailers
}

func (s *Service) downloadFromManifest(ctx context.Context, mpdURL string, audio audioTrack, req services.LocateRequest) (services.Candidate, error) {
	mpdText, err := s.fetch.Text(ctx, mpdURL)
	if err != nil {
		return services.Candidate{}, err
	}
	manifest, err := dash.Parse(mpdText)
	if err != nil {
		return services.Candidate{}, err
	}

	video, err := manifest.SelectVideo()
	if err != nil {
		return services.Candidate{}, err
	}
	audioRep, err := manifest.SelectAudio(audio.AudioTrackID, req.Lang)
	if err != nil {
		return services.Candidate{}, err
	}

	tempDir, err := os.MkdirTemp(req.OutDir, "primevideo-")
	if err != nil {
		return services.Candidate{}, fmt.Errorf("primevideo: create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	videoTemp := filepath.Join(tempDir, "video.mp4")
	audioTemp := filepath.Join(tempDir, "audio.mp4")

	log.Printf("[primevideo] downloading video of trailer")
	if err := s.fetch.Fetch(ctx, fetch.ResolveURL(mpdURL, video.BaseURL), videoTemp, fetch.Options{}); err != nil {
		return services.Candidate{}, err
	}

	log.Printf("[primevideo] downloading audio of trailer (%s)", audio.LanguageCode)
	if err := s.fetch.Fetch(ctx, fetch.ResolveURL(mpdURL, audioRep.BaseURL), audioTemp, fetch.Options{}); err != nil {
		return services.Candidate{}, err
	}

	resultPath := filepath.Join(req.OutDir, "trailer.mp4")
	log.Printf("[primevideo] merging audio and video of trailer")
	err = s.remux.Remux(ctx, remux.Job{
		VideoPath:  videoTemp,
		Audios:     []remux.AudioInput{{Path: audioTemp, Language: audio.LanguageCode}},
		OutputPath: resultPath,
		OnProgress: func(percent int) {
			log.Printf("[primevideo] merging trailer: %d%%", percent)
		},
	})
	if err != nil {
		return services.Candidate{}, err
	}

	return services.Candidate{Title: "Trailer", Path: resultPath}, nil
}
