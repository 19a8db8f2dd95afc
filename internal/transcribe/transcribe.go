package transcribe

import (
	"context"

	"video-transcriber-go/internal/types"
)

// Result is what a transcriber backend returns for one audio file.
// Segments may be empty when the backend does not produce timings.
type Result struct {
	Text     string                    `json:"text"`
	Segments []types.TranscriptSegment `json:"segments"`
}

// Transcriber turns a local audio file into text plus timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}
