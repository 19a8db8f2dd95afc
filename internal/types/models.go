package types

// TranscriptionRequest is the body of POST /transcribe. Immutable once
// decoded; every field participates in the cache key.
type TranscriptionRequest struct {
	VideoURL  string `json:"video_url"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	GenerateSRT bool `json:"generate_srt"`

	AnalyzeSentiment     bool `json:"analyze_sentiment"`
	AnalyzePOS           bool `json:"analyze_pos"`
	AnalyzeWordFrequency bool `json:"analyze_word_frequency"`
	AnalyzeTopic         bool `json:"analyze_topic"`
}

// AnalysisRequested reports whether any analysis flag is set.
func (r TranscriptionRequest) AnalysisRequested() bool {
	return r.AnalyzeSentiment || r.AnalyzePOS || r.AnalyzeWordFrequency || r.AnalyzeTopic
}

// TranscriptSegment is one timed utterance from the transcriber. Segments
// arrive in chronological, non-overlapping order; that ordering is the
// transcriber's promise, not re-validated here.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// AnalysisResults holds the output of each requested analyzer. A nil map
// marshals as null, matching the wire contract for fragments that were not
// requested or produced nothing.
type AnalysisResults struct {
	Sentiment     map[string]interface{} `json:"sentiment"`
	POSCounts     map[string]interface{} `json:"pos_counts"`
	WordFrequency map[string]interface{} `json:"word_frequency"`
	Topic         map[string]interface{} `json:"topic"`
}

// PipelineResult is the body of a successful /transcribe response and the
// value stored in the result cache.
type PipelineResult struct {
	Message          string           `json:"message"`
	Transcription    *string          `json:"transcription"`
	SRTTranscription *string          `json:"srt_transcription"`
	Analysis         *AnalysisResults `json:"analysis"`
	OriginalURL      string           `json:"original_url"`
	TimeRange        string           `json:"time_range"`

	DownloadSeconds      float64 `json:"download_seconds"`
	TranscriptionSeconds float64 `json:"transcription_seconds"`
	AnalysisSeconds      float64 `json:"analysis_seconds"`
	TotalSeconds         float64 `json:"total_seconds"`
}
