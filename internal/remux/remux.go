// Package remux wraps the external ffmpeg/ffprobe binaries to combine one
// video stream with one or more audio streams into a single playable file.
// Video is stream-copied, audio is coded AAC, nothing is re-encoded on the
// video side so runtime stays bounded and quality is preserved.
package remux

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"trailfetch/internal/langtag"
)

// RemuxError marks a failed external mux invocation.
type RemuxError struct {
	Output string
	Err    error
}

func (e *RemuxError) Error() string {
	msg := strings.TrimSpace(e.Output)
	if len(msg) > 400 {
		msg = msg[len(msg)-400:]
	}
	return fmt.Sprintf("remux: %v: %s", e.Err, msg)
}

func (e *RemuxError) Unwrap() error { return e.Err }

// AudioInput is one audio file to mux, with the language it was served for.
type AudioInput struct {
	Path     string
	Language string
}

// Job describes a single remux operation.
type Job struct {
	VideoPath  string
	Audios     []AudioInput
	OutputPath string
	OnProgress func(percent int)
}

// Engine shells out to ffmpeg and ffprobe.
type Engine struct {
	FFmpegPath  string
	FFprobePath string
}

// NewEngine falls back to PATH lookup when explicit binary paths are empty.
func NewEngine(ffmpegPath, ffprobePath string) *Engine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Engine{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Remux merges job inputs into job.OutputPath. The output is written to a
// temp name and renamed on success, so a failure never leaves a partial file
// at the destination.
func (e *Engine) Remux(ctx context.Context, job Job) error {
	if len(job.Audios) == 0 {
		return &RemuxError{Err: fmt.Errorf("no audio inputs for %s", job.VideoPath)}
	}

	duration, err := e.duration(ctx, job.VideoPath)
	if err != nil {
		// Progress degrades to completion-only reporting; the mux itself
		// does not need the duration.
		log.Printf("[remux] could not probe duration of %s: %v", job.VideoPath, err)
	}

	partial := job.OutputPath + ".part"
	args := buildArgs(job, partial)

	cmd := exec.CommandContext(ctx, e.FFmpegPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &RemuxError{Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &RemuxError{Err: err}
	}

	tracker := newProgressTracker(job.OnProgress)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		reportProgress(scanner.Text(), duration, tracker)
	}

	if err := cmd.Wait(); err != nil {
		_ = os.Remove(partial)
		return &RemuxError{Output: stderr.String(), Err: err}
	}
	if err := os.Rename(partial, job.OutputPath); err != nil {
		_ = os.Remove(partial)
		return &RemuxError{Err: err}
	}
	tracker.Report(100)
	return nil
}

// buildArgs assembles the ffmpeg argument list: video copied as-is, each
// audio mapped as an extra AAC stream tagged with its ISO 639-2 language
// when the two-letter code resolves. Unmappable tags are skipped silently.
func buildArgs(job Job, outputPath string) []string {
	args := []string{"-hide_banner", "-nostats", "-y", "-i", job.VideoPath}
	for _, audio := range job.Audios {
		args = append(args, "-i", audio.Path)
	}

	args = append(args, "-map", "0:v")
	for i := range job.Audios {
		args = append(args, "-map", fmt.Sprintf("%d:a", i+1))
	}
	args = append(args, "-c:v", "copy", "-c:a", "aac")

	for i, audio := range job.Audios {
		if code, ok := langtag.ISO6392(audio.Language); ok {
			args = append(args, fmt.Sprintf("-metadata:s:a:%d", i), "language="+code)
		}
	}

	args = append(args, "-progress", "pipe:1", "-f", "mp4", outputPath)
	return args
}

// reportProgress interprets one line of ffmpeg -progress output.
func reportProgress(line string, duration time.Duration, tracker *progressTracker) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		if duration <= 0 {
			return
		}
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return
		}
		percent := int(time.Duration(us) * time.Microsecond * 100 / duration)
		if percent > 100 {
			percent = 100
		}
		tracker.Report(percent)
	case "progress":
		if value == "end" {
			tracker.Report(100)
		}
	}
}
