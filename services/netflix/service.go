// Package netflix downloads trailers published on www.netflix.com.
//
// Netflix exposes trailers as "Supplemental" videos inside the react context
// embedded in the title page. Stream URLs come from a follow-up manifest
// request that must carry the session cookies of the page fetch.
package netflix

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trailfetch/internal/fetch"
	"trailfetch/internal/langtag"
	"trailfetch/internal/remux"
	"trailfetch/internal/scrape"
	"trailfetch/internal/subtitle"
	"trailfetch/services"
	"trailfetch/services/search"
	"trailfetch/utils"
)

const (
	serviceName   = "NETFLIX"
	serviceDomain = "www.netflix.com"

	reactContextMarker = "window.netflix"
	manifestEndpoint   = "https://www.netflix.com/playapi/cadmium/manifest/1"
)

// manifestProfiles are the capability tags requested from the manifest
// endpoint: plain H.264 video, HE-AAC audio and the text-based subtitle
// formats. DRM-only profiles are deliberately absent.
var manifestProfiles = []string{
	"heaac-2-dash",
	"playready-h264mpl40-dash",
	"imsc1.1",
	"dfxp-ls-sdh",
	"simplesdh",
	"nflx-cmisc",
	"BIF240",
	"BIF320",
}

// Service locates Netflix trailer pages and downloads their streams.
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

	body, headers, err := s.fetch.Page(ctx, page, nil)
	if err != nil {
		return nil, err
	}
	cookies := strings.Join(headers.Values("Set-Cookie"), "; ")

	trailers, err := extractSupplementals(body)
	if err != nil {
		return nil, err
	}
	if len(trailers) == 0 {
		return nil, services.ErrNoTrailers
	}

	tempDir, err := os.MkdirTemp(req.OutDir, "netflix-")
	if err != nil {
		return nil, fmt.Errorf("netflix: create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	var out []services.Candidate
	for i, tr := range trailers {
		log.Printf("[netflix] processing trailer %d/%d (%s)", i+1, len(trailers), tr.Title)
		candidate, err := s.downloadTrailer(ctx, tr, cookies, tempDir, req)
		if err != nil {
			log.Printf("[netflix] trailer %d (%s) failed: %v", i+1, tr.Title, err)
			continue
		}
		out = append(out, candidate)
	}

	if len(out) == 0 {
		return nil, services.ErrNoTrailers
	}
	return out, nil
}

// discover finds the title's Netflix page through a site-restricted search.
// Netflix page titles look like "Watch <name> | Netflix", so the leading
// word and the "| Netflix" suffix are stripped before matching.
func (s *Service) discover(ctx context.Context, name string, year int) (string, error) {
	log.Printf("[netflix] searching for %q (%d)", name, year)

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
		words := strings.Fields(strings.Split(r.Title, "|")[0])
		if len(words) < 2 {
			continue
		}
		title := strings.Join(words[1:], " ")
		if utils.NormalizeText(title) == want {
			return r.Link, nil
		}
	}
	return "", services.ErrNoTrailers
}

type supplemental struct {
	Title   string
	VideoID int64
}

// extractSupplementals pulls the react context out of the page and collects
// every Supplemental-keyed graphql entry with a video id. String values in
// the blob may carry \xHH escapes that must be decoded before parsing.
func extractSupplementals(page string) ([]supplemental, error) {
	script, ok := scrape.ScriptContaining(page, reactContextMarker)
	if !ok {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "react context script not found"}
	}

	_, rawCtx, found := strings.Cut(script, "reactContext =")
	if !found {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "react context assignment not found"}
	}
	rawCtx = strings.TrimSpace(rawCtx)
	rawCtx = strings.TrimSuffix(rawCtx, ";")

	var reactCtx struct {
		Models struct {
			GraphQL struct {
				Data map[string]json.RawMessage `json:"data"`
			} `json:"graphql"`
		} `json:"models"`
	}
	if err := json.Unmarshal([]byte(scrape.FixHexEscapes(rawCtx)), &reactCtx); err != nil {
		return nil, &scrape.ExtractionError{Site: serviceName, Detail: "react context is not valid JSON"}
	}

	var out []supplemental
	for key, raw := range reactCtx.Models.GraphQL.Data {
		if !strings.Contains(key, "Supplemental") {
			continue
		}
		var entry struct {
			Title   string `json:"title"`
			VideoID int64  `json:"videoId"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil || entry.VideoID == 0 {
			continue
		}
		out = append(out, supplemental{Title: entry.Title, VideoID: entry.VideoID})
	}
	return out, nil
}

type manifestResponse struct {
	Result *manifestResult `json:"result"`
}

type manifestResult struct {
	AudioTracks     []audioTrack     `json:"audio_tracks"`
	VideoTracks     []videoTrack     `json:"video_tracks"`
	TimedTextTracks []timedTextTrack `json:"timedtexttracks"`
}

type audioTrack struct {
	Language string   `json:"language"`
	Streams  []stream `json:"streams"`
}

type videoTrack struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Bitrate int         `json:"bitrate"`
	URLs    []streamURL `json:"urls"`
}

type streamURL struct {
	URL string `json:"url"`
}

type timedTextTrack struct {
	Language        string                    `json:"language"`
	RawTrackType    string                    `json:"rawTrackType"`
	TTDownloadables map[string]ttDownloadable `json:"ttDownloadables"`
}

type ttDownloadable struct {
	DownloadURLs map[string]string `json:"downloadUrls"`
}

func (s *Service) downloadTrailer(ctx context.Context, tr supplemental, cookies, tempDir string, req services.LocateRequest) (services.Candidate, error) {
	manifest, err := s.requestManifest(ctx, tr.VideoID, cookies, req.Lang)
	if err != nil {
		return services.Candidate{}, err
	}

	audios := selectAudioStreams(manifest.AudioTracks, req.Lang, req.FullAudioTracks)
	if len(audios) == 0 {
		return services.Candidate{}, fmt.Errorf("netflix: manifest for %q has no playable audio", tr.Title)
	}

	videoURL, err := selectVideoURL(manifest.VideoTracks)
	if err != nil {
		return services.Candidate{}, err
	}

	videoTemp := filepath.Join(tempDir, fmt.Sprintf("video-%d.mp4", tr.VideoID))
	log.Printf("[netflix] downloading video of %q", tr.Title)
	if err := s.fetch.Fetch(ctx, videoURL, videoTemp, fetch.Options{}); err != nil {
		return services.Candidate{}, err
	}

	audioInputs := make([]remux.AudioInput, 0, len(audios))
	for i, audio := range audios {
		log.Printf("[netflix] downloading audio %d/%d (%s) of %q", i+1, len(audios), audio.Language, tr.Title)
		audioTemp := filepath.Join(tempDir, fmt.Sprintf("audio-%d-%d.m4a", tr.VideoID, i))
		if err := s.fetch.Fetch(ctx, audio.URL, audioTemp, fetch.Options{}); err != nil {
			return services.Candidate{}, err
		}
		audioInputs = append(audioInputs, remux.AudioInput{Path: audioTemp, Language: audio.Language})
	}

	resultPath := filepath.Join(req.OutDir, utils.Slug(tr.Title)+".mp4")
	log.Printf("[netflix] merging audio and video of %q", tr.Title)
	err = s.remux.Remux(ctx, remux.Job{
		VideoPath:  videoTemp,
		Audios:     audioInputs,
		OutputPath: resultPath,
		OnProgress: func(percent int) {
			log.Printf("[netflix] merging %q: %d%%", tr.Title, percent)
		},
	})
	if err != nil {
		return services.Candidate{}, err
	}

	subtitles := s.downloadSubtitles(ctx, manifest.TimedTextTracks, tempDir, req.OutDir, tr.VideoID)

	return services.Candidate{Title: tr.Title, Path: resultPath, Subtitles: subtitles}, nil
}

func (s *Service) requestManifest(ctx context.Context, videoID int64, cookies, lang string) (*manifestResult, error) {
	langStr := langtag.Primary(lang)
	if region := langtag.Region(lang); region != "" {
		langStr += "-" + region
	} else {
		langStr += "-US"
	}

	body := map[string]any{
		"version":   2,
		"url":       "manifest",
		"languages": []string{langStr},
		"params": map[string]any{
			"viewableId": videoID,
			"profiles":   manifestProfiles,
		},
	}

	var resp manifestResponse
	headers := map[string]string{"Cookie": cookies}
	if err := s.fetch.PostJSON(ctx, manifestEndpoint, body, headers, &resp); err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, services.ErrNoTrailers
	}
	return resp.Result, nil
}

type audioStream struct {
	URL      string
	Language string
}

// selectAudioStreams picks the requested language's track, falling back to
// the first track that actually carries streams. With fullAudioTracks every
// playable track is returned.
func selectAudioStreams(tracks []audioTrack, lang string, full bool) []audioStream {
	var playable []audioStream
	for _, track := range tracks {
		if len(track.Streams) == 0 || len(track.Streams[0].URLs) == 0 {
			continue
		}
		playable = append(playable, audioStream{
			URL:      track.Streams[0].URLs[0].URL,
			Language: track.Language,
		})
	}
	if len(playable) == 0 {
		return nil
	}
	if full {
		return playable
	}
	for _, track := range playable {
		if langtag.Match(track.Language, lang) {
			return []audioStream{track}
		}
	}
	return playable[:1]
}

// selectVideoURL returns the highest-bitrate stream of the first video track.
func selectVideoURL(tracks []videoTrack) (string, error) {
	if len(tracks) == 0 || len(tracks[0].Streams) == 0 {
		return "", fmt.Errorf("netflix: manifest has no video streams")
	}
	best := tracks[0].Streams[0]
	for _, st := range tracks[0].Streams[1:] {
		if st.Bitrate > best.Bitrate {
			best = st
		}
	}
	if len(best.URLs) == 0 {
		return "", fmt.Errorf("netflix: best video stream has no url")
	}
	return best.URLs[0].URL, nil
}

// downloadSubtitles converts every regular timed-text track to WebVTT.
// Failures only cost the track, never the trailer.
func (s *Service) downloadSubtitles(ctx context.Context, tracks []timedTextTrack, tempDir, outDir string, videoID int64) []services.SubtitleFile {
	var out []services.SubtitleFile
	for i, track := range tracks {
		if track.RawTrackType != "subtitles" || len(track.TTDownloadables) == 0 {
			continue
		}

		var downloadURL string
		for _, d := range track.TTDownloadables {
			for _, u := range d.DownloadURLs {
				downloadURL = u
				break
			}
			break
		}
		if downloadURL == "" {
			continue
		}

		lang := langtag.Normalize(track.Language)
		if lang == "" {
			continue
		}

		xmlTemp := filepath.Join(tempDir, fmt.Sprintf("subtitle-%d-%d.xml", videoID, i))
		if err := s.fetch.Fetch(ctx, downloadURL, xmlTemp, fetch.Options{Timeout: 10 * time.Second}); err != nil {
			log.Printf("[netflix] subtitle %s download failed: %v", lang, err)
			continue
		}

		raw, err := os.ReadFile(xmlTemp)
		if err != nil {
			log.Printf("[netflix] subtitle %s read failed: %v", lang, err)
			continue
		}
		vtt, err := subtitle.XMLToVTT(string(raw))
		if err != nil {
			log.Printf("[netflix] subtitle %s conversion failed: %v", lang, err)
			continue
		}

		dest := filepath.Join(outDir, fmt.Sprintf("%d-%s.vtt", videoID, lang))
		if err := os.WriteFile(dest, []byte(vtt), 0o644); err != nil {
			log.Printf("[netflix] subtitle %s write failed: %v", lang, err)
			continue
		}
		out = append(out, services.SubtitleFile{Path: dest, Language: lang})
	}
	return out
}
