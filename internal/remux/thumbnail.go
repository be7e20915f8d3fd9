package remux

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Thumbnail extracts a single 1920x1080 JPEG frame five seconds into the
// video, used as the trailer's preview image.
func (e *Engine) Thumbnail(ctx context.Context, videoPath, outPath string) error {
	thumbCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cmd := exec.CommandContext(thumbCtx, e.FFmpegPath,
		"-hide_banner",
		"-y",
		"-ss", "00:00:05",
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", "scale=1920:1080",
		outPath,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &RemuxError{Output: stderr.String(), Err: err}
	}
	return nil
}
