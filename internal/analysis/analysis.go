package analysis

import (
	"video-transcriber-go/internal/logger"
	"video-transcriber-go/internal/types"
)

// Fragment is one analyzer's structured output.
type Fragment map[string]interface{}

// Analyzer produces a structured fragment for a non-empty transcript.
// Analyzers are invoked independently: one failing must not abort its
// siblings.
type Analyzer interface {
	Name() string
	Analyze(text string) (Fragment, error)
}

// Set holds one analyzer per capability. Nil members are skipped even when
// their flag is requested.
type Set struct {
	Sentiment     Analyzer
	POS           Analyzer
	WordFrequency Analyzer
	Topic         Analyzer
}

// DefaultSet returns the stub analyzers matching the current placeholders.
func DefaultSet() Set {
	return Set{
		Sentiment:     stubSentiment{},
		POS:           stubPOS{},
		WordFrequency: stubWordFrequency{},
		Topic:         stubTopic{},
	}
}

// Run invokes the analyzers requested by the flags and collects their
// fragments. A failed analyzer is logged and its fragment left nil; the
// remaining analyzers still run.
func (s Set) Run(req types.TranscriptionRequest, text string, log *logger.Logger) *types.AnalysisResults {
	results := &types.AnalysisResults{}

	run := func(a Analyzer, dst *map[string]interface{}) {
		if a == nil {
			return
		}
		frag, err := a.Analyze(text)
		if err != nil {
			log.WithError(err).WithField("analyzer", a.Name()).Warn("analyzer failed, skipping fragment")
			return
		}
		*dst = frag
	}

	if req.AnalyzeSentiment {
		run(s.Sentiment, &results.Sentiment)
	}
	if req.AnalyzePOS {
		run(s.POS, &results.POSCounts)
	}
	if req.AnalyzeWordFrequency {
		run(s.WordFrequency, &results.WordFrequency)
	}
	if req.AnalyzeTopic {
		run(s.Topic, &results.Topic)
	}
	return results
}
