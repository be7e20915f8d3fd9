package remux

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

type probeOutput struct {
	Streams []struct {
		CodecType string            `json:"codec_type"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (e *Engine) probe(ctx context.Context, path string) (*probeOutput, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, e.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output for %s: %w", path, err)
	}
	return &out, nil
}

// AudioLanguages returns the language tags actually embedded in the file's
// audio streams. The worker uses it to validate adapter results
// independently of their self-reporting; untagged streams are dropped.
func (e *Engine) AudioLanguages(ctx context.Context, path string) ([]string, error) {
	out, err := e.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, stream := range out.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		if lang := stream.Tags["language"]; lang != "" {
			langs = append(langs, lang)
		}
	}
	return langs, nil
}

func (e *Engine) duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := e.probe(ctx, path)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration of %s: %w", path, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
