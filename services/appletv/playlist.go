package appletv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"trailfetch/internal/fetch"
	"trailfetch/internal/hls"
	"trailfetch/internal/langtag"
	"trailfetch/internal/remux"
	"trailfetch/services"
	"trailfetch/utils"
)

type playlistJob struct {
	ManifestURL     string
	Title           string
	ResultPath      string
	Lang            string
	FullAudioTracks bool
	OutDir          string
}

// downloadFromPlaylist drives one trailer through the HLS pipeline: pick a
// variant and audio renditions off the master playlist, pull their segments
// sequentially, then mux everything into a single file.
func (s *Service) downloadFromPlaylist(ctx context.Context, job playlistJob) (services.Candidate, error) {
	masterText, err := s.fetch.Text(ctx, job.ManifestURL)
	if err != nil {
		return services.Candidate{}, err
	}
	master, err := hls.ParseMaster(masterText)
	if err != nil {
		return services.Candidate{}, err
	}

	variant, err := hls.SelectVariant(master.Variants)
	if err != nil {
		return services.Candidate{}, err
	}

	audios := selectAudioRenditions(master.AudioGroups, job.Lang, job.FullAudioTracks)
	if len(audios) == 0 {
		return services.Candidate{}, errors.New("appletv: master playlist has no audio renditions")
	}

	tempDir, err := os.MkdirTemp(job.OutDir, "appletv-")
	if err != nil {
		return services.Candidate{}, fmt.Errorf("appletv: create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	log.Printf("[appletv] downloading video for %q (%dx%d)", job.Title, variant.Width, variant.Height)
	videoTemp := filepath.Join(tempDir, "video.mp4")
	if err := s.downloadMedia(ctx, fetch.ResolveURL(job.ManifestURL, variant.URI), videoTemp); err != nil {
		return services.Candidate{}, err
	}

	audioInputs := make([]remux.AudioInput, 0, len(audios))
	for i, rendition := range audios {
		log.Printf("[appletv] downloading audio %d/%d (%s) for %q", i+1, len(audios), rendition.Language, job.Title)
		audioTemp := filepath.Join(tempDir, fmt.Sprintf("audio-%d.mp4", i))
		if err := s.downloadMedia(ctx, fetch.ResolveURL(job.ManifestURL, rendition.URI), audioTemp); err != nil {
			return services.Candidate{}, err
		}
		audioInputs = append(audioInputs, remux.AudioInput{Path: audioTemp, Language: rendition.Language})
	}

	log.Printf("[appletv] merging audio and video for %q", job.Title)
	err = s.remux.Remux(ctx, remux.Job{
		VideoPath:  videoTemp,
		Audios:     audioInputs,
		OutputPath: job.ResultPath,
		OnProgress: func(percent int) {
			log.Printf("[appletv] merging %q: %d%%", job.Title, percent)
		},
	})
	if err != nil {
		return services.Candidate{}, err
	}

	subtitles := s.downloadSubtitles(ctx, master.SubtitleGroups, job)

	return services.Candidate{Title: job.Title, Path: job.ResultPath, Subtitles: subtitles}, nil
}

// downloadMedia appends every segment of a media playlist, in playlist
// order, to dest. Order is what makes the output playable, so fetches are
// strictly sequential.
func (s *Service) downloadMedia(ctx context.Context, playlistURL, dest string) error {
	text, err := s.fetch.Text(ctx, playlistURL)
	if err != nil {
		return err
	}
	media, err := hls.ParseMedia(text)
	if err != nil {
		return err
	}
	for _, segment := range media.Segments {
		segURL := fetch.ResolveURL(playlistURL, segment.URI)
		if err := s.fetch.Fetch(ctx, segURL, dest, fetch.Options{Append: true}); err != nil {
			return err
		}
	}
	return nil
}

// selectAudioRenditions picks which audio tracks end up in the mux: all
// languages when fullAudioTracks is set, otherwise the requested language
// with the first rendition as fallback. Audio-description tracks never
// qualify.
func selectAudioRenditions(renditions []hls.Rendition, lang string, full bool) []hls.Rendition {
	var usable []hls.Rendition
	seen := map[string]bool{}
	for _, r := range renditions {
		if r.URI == "" || describesVideo(r) || seen[r.Language] {
			continue
		}
		seen[r.Language] = true
		usable = append(usable, r)
	}
	if len(usable) == 0 {
		return nil
	}
	if full {
		return usable
	}
	for _, r := range usable {
		if langtag.Match(r.Language, lang) {
			return []hls.Rendition{r}
		}
	}
	return usable[:1]
}

// downloadSubtitles pulls every regular caption track. Forced narratives and
// accessibility variants are skipped. Subtitle failures never fail the
// trailer, the tracks are a bonus.
func (s *Service) downloadSubtitles(ctx context.Context, renditions []hls.Rendition, job playlistJob) []services.SubtitleFile {
	var out []services.SubtitleFile
	seen := map[string]bool{}
	for _, r := range renditions {
		if r.URI == "" || r.Forced || isAccessibility(r) {
			continue
		}
		lang := langtag.Normalize(r.Language)
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true

		path := filepath.Join(job.OutDir, fmt.Sprintf("%s-%s.vtt", utils.Slug(job.Title), lang))
		if err := s.downloadVTT(ctx, fetch.ResolveURL(job.ManifestURL, r.URI), path); err != nil {
			log.Printf("[appletv] subtitle %s for %q failed: %v", lang, job.Title, err)
			continue
		}
		out = append(out, services.SubtitleFile{Path: path, Language: lang})
	}
	return out
}

func (s *Service) downloadVTT(ctx context.Context, playlistURL, dest string) error {
	text, err := s.fetch.Text(ctx, playlistURL)
	if err != nil {
		return err
	}
	media, err := hls.ParseMedia(text)
	if err != nil {
		return err
	}

	parts := make([]string, 0, len(media.Segments))
	for _, segment := range media.Segments {
		part, err := s.fetch.Text(ctx, fetch.ResolveURL(playlistURL, segment.URI))
		if err != nil {
			return err
		}
		parts = append(parts, part)
	}

	return os.WriteFile(dest, []byte(mergeVTT(parts)), 0o644)
}

// describesVideo reports an audio-description rendition voicing on-screen
// action for visually impaired viewers.
func describesVideo(r hls.Rendition) bool {
	for _, c := range r.Characteristics {
		if strings.Contains(c, "describes-video") {
			return true
		}
	}
	return false
}

func isAccessibility(r hls.Rendition) bool {
	for _, c := range r.Characteristics {
		if strings.Contains(c, "public.accessibility") {
			return true
		}
	}
	return false
}
