package caption

import (
	"fmt"
	"math"
	"strings"

	"video-transcriber-go/internal/types"
)

const (
	// MinWordsPerLine is the floor below which a line is never split off:
	// a segment's trailing words are folded into the final line instead.
	MinWordsPerLine = 2

	// TargetWordsPerLine is the preferred line length in words.
	TargetWordsPerLine = 3

	// epsilon keeps a line from collapsing to zero width when the owning
	// segment itself has zero duration.
	epsilon = 1e-6
)

// Line is a single numbered caption with estimated timing. Index is 1-based
// and increases across all segments of one request.
type Line struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Split breaks coarse transcriber segments into caption lines of roughly
// TargetWordsPerLine words, distributing each segment's duration across its
// words proportionally. Line timestamps are estimates: the transcriber only
// provides per-segment timing, so sub-segment accuracy is not available.
//
// Every emitted line stays inside its segment's [Start, End] window, and
// start times are non-decreasing across the whole output.
func Split(segments []types.TranscriptSegment) []Line {
	var lines []Line
	index := 1

	for _, seg := range segments {
		words := strings.Fields(seg.Text)
		if len(words) == 0 {
			continue
		}

		duration := seg.End - seg.Start
		wordDuration := 0.0
		if duration > 0 {
			wordDuration = duration / float64(len(words))
		}

		for i := 0; i < len(words); {
			var j int
			if len(words)-i > MinWordsPerLine {
				j = i + TargetWordsPerLine
				if j > len(words) {
					j = len(words)
				}
			} else {
				// Remainder is at or below the minimum: keep it
				// together rather than emit a too-short line.
				j = len(words)
			}

			start := seg.Start + float64(i)*wordDuration
			end := math.Min(seg.Start+float64(j)*wordDuration+epsilon, seg.End)

			lines = append(lines, Line{
				Index: index,
				Start: start,
				End:   end,
				Text:  strings.Join(words[i:j], " "),
			})
			index++
			i = j
		}
	}

	return lines
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm. Hours are always
// included, zero-padded, even below one hour.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000.0))

	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	secs := ms / 1_000
	ms %= 1_000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

// Render serializes lines as numbered SRT blocks separated by blank lines.
func Render(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "%d\n", l.Index)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(l.Start), FormatTimestamp(l.End))
		fmt.Fprintf(&b, "%s\n\n", l.Text)
	}
	return strings.TrimSpace(b.String())
}

// SplitToSRT is the Split+Render composition used by the pipeline.
func SplitToSRT(segments []types.TranscriptSegment) string {
	return Render(Split(segments))
}
