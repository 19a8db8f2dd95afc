package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"video-transcriber-go/internal/logger"
)

// Fetcher produces a local audio file for a video URL and time range.
// Implementations must leave their output inside destDir.
type Fetcher interface {
	Fetch(ctx context.Context, videoURL, start, end, destDir string) error
}

// YTDLPFetcher shells out to yt-dlp, extracting the best audio stream as
// WAV and trimming it to the requested window via ffmpeg postprocessor
// arguments. The output lands at destDir/audio.wav.
type YTDLPFetcher struct {
	// Path to the yt-dlp executable. Defaults to "yt-dlp" on PATH.
	Path string

	log *logger.Logger
}

func NewYTDLPFetcher(path string, log *logger.Logger) *YTDLPFetcher {
	if path == "" {
		path = "yt-dlp"
	}
	return &YTDLPFetcher{Path: path, log: log.WithComponent("fetcher")}
}

// Fetch downloads and trims the audio segment. Any yt-dlp failure is a
// download-class error; the last stderr lines are folded into the message
// since yt-dlp reports the actual cause there.
func (f *YTDLPFetcher) Fetch(ctx context.Context, videoURL, start, end, destDir string) error {
	outputTemplate := filepath.Join(destDir, "audio.%(ext)s")

	args := []string{
		"--format", "bestaudio/best",
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"--extract-audio",
		"--audio-format", "wav",
		"--audio-quality", "192",
		"--postprocessor-args", fmt.Sprintf("ffmpeg:-ss %s -to %s -copyts", start, end),
		"--output", outputTemplate,
		videoURL,
	}

	f.log.WithField("url", videoURL).WithField("range", start+" - "+end).Debug("invoking yt-dlp")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.Path, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp: %w: %s", err, lastLines(stderr.String(), 3))
	}
	return nil
}

// lastLines returns the trailing n non-empty lines of s on one line.
func lastLines(s string, n int) string {
	var kept []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimSpace(l))
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, " | ")
}
