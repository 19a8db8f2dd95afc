package analysis

// Placeholder analyzers. Each honors the Analyzer contract but returns a
// fixed fragment until a real NLP backend is wired in.

type stubSentiment struct{}

func (stubSentiment) Name() string { return "sentiment" }

func (stubSentiment) Analyze(text string) (Fragment, error) {
	// TODO: wire a real sentiment backend (VADER-style lexicon or an LLM call)
	return Fragment{"sentiment_label": "N/A", "sentiment_score": 0.0}, nil
}

type stubPOS struct{}

func (stubPOS) Name() string { return "pos" }

func (stubPOS) Analyze(text string) (Fragment, error) {
	return Fragment{"pos_counts": map[string]interface{}{}}, nil
}

type stubWordFrequency struct{}

func (stubWordFrequency) Name() string { return "word_frequency" }

func (stubWordFrequency) Analyze(text string) (Fragment, error) {
	return Fragment{"word_frequency": map[string]interface{}{}}, nil
}

type stubTopic struct{}

func (stubTopic) Name() string { return "topic" }

func (stubTopic) Analyze(text string) (Fragment, error) {
	return Fragment{"topic": "N/A"}, nil
}
