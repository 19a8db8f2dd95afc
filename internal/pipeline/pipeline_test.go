package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"video-transcriber-go/internal/analysis"
	"video-transcriber-go/internal/cache"
	"video-transcriber-go/internal/logger"
	"video-transcriber-go/internal/transcribe"
	"video-transcriber-go/internal/types"
)

// fakeFetcher drops the named files into the destination directory, or
// fails outright.
type fakeFetcher struct {
	calls int
	err   error
	files []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, videoURL, start, end, destDir string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	for _, name := range f.files {
		if err := os.WriteFile(filepath.Join(destDir, name), []byte("audio"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeTranscriber struct {
	calls    int
	lastPath string
	res      *transcribe.Result
	err      error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (*transcribe.Result, error) {
	f.calls++
	f.lastPath = audioPath
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

func happyTranscriber() *fakeTranscriber {
	return &fakeTranscriber{
		res: &transcribe.Result{
			Text: "  hello world from the test  ",
			Segments: []types.TranscriptSegment{
				{Start: 0, End: 5, Text: "hello world from the test"},
			},
		},
	}
}

func testRequest() types.TranscriptionRequest {
	return types.TranscriptionRequest{
		VideoURL:    "https://example.com/watch?v=abc",
		StartTime:   "00:10",
		EndTime:     "00:40",
		GenerateSRT: true,
	}
}

// newOrchestrator wires an orchestrator with the given doubles, a real
// miniredis-backed cache and synchronous cleanup so tests can assert on the
// filesystem immediately.
func newOrchestrator(t *testing.T, f *fakeFetcher, tr *fakeTranscriber) (*Orchestrator, string, *int) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tempRoot := t.TempDir()
	o := New(Config{TempRoot: tempRoot, CacheTTL: time.Hour},
		f, tr, analysis.DefaultSet(), cache.New(client, logger.Discard()), logger.Discard())

	cleanups := 0
	o.scheduleCleanup = func(dir string) {
		cleanups++
		o.removeDir(dir)
	}
	return o, tempRoot, &cleanups
}

func workdirCount(t *testing.T, tempRoot string) int {
	t.Helper()
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			n++
		}
	}
	return n
}

func TestProcess_Success(t *testing.T) {
	fetcher := &fakeFetcher{files: []string{"audio.wav"}}
	tr := happyTranscriber()
	o, tempRoot, cleanups := newOrchestrator(t, fetcher, tr)

	res, err := o.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Message != "Processing successful." {
		t.Errorf("message: got %q", res.Message)
	}
	if res.Transcription == nil || *res.Transcription != "hello world from the test" {
		t.Errorf("transcription not trimmed: %v", res.Transcription)
	}
	if res.SRTTranscription == nil || *res.SRTTranscription == "" {
		t.Error("expected SRT output when generate_srt is set")
	}
	if res.Analysis != nil {
		t.Error("analysis container present without any analysis flag")
	}
	if res.TimeRange != "00:10 - 00:40" {
		t.Errorf("time range: got %q", res.TimeRange)
	}
	if res.TotalSeconds < 0 {
		t.Errorf("total seconds: got %f", res.TotalSeconds)
	}

	if *cleanups != 1 {
		t.Errorf("expected exactly one scheduled cleanup, got %d", *cleanups)
	}
	if n := workdirCount(t, tempRoot); n != 0 {
		t.Errorf("expected no leftover workdirs, found %d", n)
	}
}

func TestProcess_CacheHitShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{files: []string{"audio.wav"}}
	tr := happyTranscriber()
	o, _, _ := newOrchestrator(t, fetcher, tr)
	ctx := context.Background()

	first, err := o.Process(ctx, testRequest())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second, err := o.Process(ctx, testRequest())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("fetcher invoked %d times, cache hit should skip it", fetcher.calls)
	}
	if tr.calls != 1 {
		t.Errorf("transcriber invoked %d times, cache hit should skip it", tr.calls)
	}
	// The cached result comes back unchanged, including its timings.
	if second.TotalSeconds != first.TotalSeconds {
		t.Errorf("cache hit re-timed the result: %f vs %f", second.TotalSeconds, first.TotalSeconds)
	}
	if *second.Transcription != *first.Transcription {
		t.Error("cached transcription differs")
	}
}

func TestProcess_FetchFailureRemovesWorkdir(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("video unavailable")}
	o, tempRoot, cleanups := newOrchestrator(t, fetcher, happyTranscriber())

	_, err := o.Process(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pipeline.Error, got %T", err)
	}
	if perr.Kind != KindFetch {
		t.Errorf("expected KindFetch, got %v", perr.Kind)
	}

	if n := workdirCount(t, tempRoot); n != 0 {
		t.Errorf("workdir survived fetch failure, found %d", n)
	}
	if *cleanups != 0 {
		t.Error("error path must clean synchronously, not via the scheduler")
	}
}

func TestProcess_MissingOutputFileIsInternalFault(t *testing.T) {
	fetcher := &fakeFetcher{files: nil} // reports success, leaves nothing
	o, tempRoot, _ := newOrchestrator(t, fetcher, happyTranscriber())

	_, err := o.Process(context.Background(), testRequest())
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindInternal {
		t.Fatalf("expected internal fault, got %v", err)
	}
	if n := workdirCount(t, tempRoot); n != 0 {
		t.Errorf("workdir survived, found %d", n)
	}
}

func TestProcess_TranscribeFailureRemovesWorkdir(t *testing.T) {
	fetcher := &fakeFetcher{files: []string{"audio.wav"}}
	tr := &fakeTranscriber{err: errors.New("whisper exploded")}
	o, tempRoot, _ := newOrchestrator(t, fetcher, tr)

	_, err := o.Process(context.Background(), testRequest())
	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != KindInternal {
		t.Fatalf("expected internal fault, got %v", err)
	}
	if n := workdirCount(t, tempRoot); n != 0 {
		t.Errorf("workdir survived, found %d", n)
	}
}

func TestProcess_TranscriberUnavailableIsClassified(t *testing.T) {
	fetcher := &fakeFetcher{files: []string{"audio.wav"}}
	tr := &fakeTranscriber{err: fmt.Errorf("transcribe audio.wav: %w", transcribe.ErrUnavailable)}
	o, tempRoot, _ := newOrchestrator(t, fetcher, tr)

	_, err := o.Process(context.Background(), testRequest())
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pipeline.Error, got %T", err)
	}
	if perr.Kind != KindUnavailable {
		t.Errorf("expected KindUnavailable, got %v", perr.Kind)
	}
	if n := workdirCount(t, tempRoot); n != 0 {
		t.Errorf("workdir survived, found %d", n)
	}
}

func TestProcess_MultipleOutputFilesTakesFirstSorted(t *testing.T) {
	fetcher := &fakeFetcher{files: []string{"audio.webm", "audio.wav"}}
	tr := happyTranscriber()
	o, _, _ := newOrchestrator(t, fetcher, tr)

	if _, err := o.Process(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := filepath.Base(tr.lastPath); got != "audio.wav" {
		t.Errorf("expected first file in sorted order (audio.wav), got %q", got)
	}
}

func TestProcess_AnalysisContainerPresence(t *testing.T) {
	req := testRequest()
	req.AnalyzeSentiment = true

	o, _, _ := newOrchestrator(t, &fakeFetcher{files: []string{"audio.wav"}}, happyTranscriber())

	res, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Analysis == nil {
		t.Fatal("analysis container missing despite analyze_sentiment")
	}
	if res.Analysis.Sentiment == nil {
		t.Error("sentiment fragment missing")
	}
	if res.Analysis.Topic != nil {
		t.Error("topic fragment present without its flag")
	}
}

func TestProcess_EmptyTranscriptSkipsAnalysis(t *testing.T) {
	req := testRequest()
	req.AnalyzeSentiment = true
	req.AnalyzeTopic = true

	tr := &fakeTranscriber{res: &transcribe.Result{Text: "   "}}
	o, _, _ := newOrchestrator(t, &fakeFetcher{files: []string{"audio.wav"}}, tr)

	res, err := o.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Container still present (flags were set) but no analyzer ran.
	if res.Analysis == nil {
		t.Fatal("analysis container missing")
	}
	if res.Analysis.Sentiment != nil || res.Analysis.Topic != nil {
		t.Error("analyzers ran on an empty transcript")
	}
	if res.AnalysisSeconds != 0 {
		t.Errorf("analysis timing recorded without analysis: %f", res.AnalysisSeconds)
	}
}

func TestProcess_NoSegmentsOmitsSRT(t *testing.T) {
	tr := &fakeTranscriber{res: &transcribe.Result{Text: "words without timings"}}
	o, _, _ := newOrchestrator(t, &fakeFetcher{files: []string{"audio.wav"}}, tr)

	res, err := o.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SRTTranscription != nil {
		t.Error("SRT output present without segments")
	}
}

func TestProcess_DegradedCacheStillProcesses(t *testing.T) {
	fetcher := &fakeFetcher{files: []string{"audio.wav"}}
	tempRoot := t.TempDir()
	o := New(Config{TempRoot: tempRoot, CacheTTL: time.Hour},
		fetcher, happyTranscriber(), analysis.DefaultSet(),
		cache.New(nil, logger.Discard()), logger.Discard())
	o.scheduleCleanup = o.removeDir

	res, err := o.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("degraded cache must not fail the request: %v", err)
	}
	if res.Transcription == nil {
		t.Error("missing transcription")
	}

	// Both runs do full work: nothing was cached.
	if _, err := o.Process(context.Background(), testRequest()); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 2 {
		t.Errorf("expected 2 fetches with caching disabled, got %d", fetcher.calls)
	}
}

func TestProcess_DegradedGetSkipsStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	req := testRequest()
	key := cache.Key(req)

	// A malformed stored payload makes Get report the backend degraded
	// while leaving it reachable, so an (incorrect) Set would succeed
	// and overwrite the sentinel value.
	const sentinel = "{not json"
	if err := mr.Set(key, sentinel); err != nil {
		t.Fatal(err)
	}

	o := New(Config{TempRoot: t.TempDir(), CacheTTL: time.Hour},
		&fakeFetcher{files: []string{"audio.wav"}}, happyTranscriber(),
		analysis.DefaultSet(), cache.New(client, logger.Discard()), logger.Discard())
	o.scheduleCleanup = o.removeDir

	if _, err := o.Process(context.Background(), req); err != nil {
		t.Fatalf("degraded cache must not fail the request: %v", err)
	}

	got, err := mr.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if got != sentinel {
		t.Errorf("store ran against a degraded backend: key now holds %q", got)
	}
}
