package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-transcriber-go/internal/analysis"
	"video-transcriber-go/internal/cache"
	"video-transcriber-go/internal/caption"
	"video-transcriber-go/internal/logger"
	"video-transcriber-go/internal/media"
	"video-transcriber-go/internal/transcribe"
	"video-transcriber-go/internal/types"
)

// ErrKind is the coarse classification surfaced to the caller.
type ErrKind int

const (
	// KindBadInput rejects the request before any resource is allocated.
	KindBadInput ErrKind = iota
	// KindFetch covers unreachable or unsupported video sources.
	KindFetch
	// KindUnavailable covers an unreachable transcription backend.
	KindUnavailable
	// KindInternal covers transcription faults, missing output files
	// and any other unexpected failure.
	KindInternal
)

// Error wraps a pipeline failure with its classification. By the time an
// Error is returned, the request's working directory has been removed.
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Reporter optionally persists a finished result outside the response path.
// Failures never affect the request.
type Reporter interface {
	Export(req types.TranscriptionRequest, res *types.PipelineResult, lines []caption.Line) error
}

// Config holds the orchestrator's request-independent settings.
type Config struct {
	// TempRoot is the directory under which per-request working
	// directories are created.
	TempRoot string

	// CacheTTL bounds how long a stored result is served.
	CacheTTL time.Duration
}

// Orchestrator runs the download → transcribe → split → analyze → cache
// sequence for one request at a time. All collaborators are injected so
// tests can substitute doubles.
type Orchestrator struct {
	cfg         Config
	fetcher     media.Fetcher
	transcriber transcribe.Transcriber
	analyzers   analysis.Set
	cache       *cache.ResultCache
	reporter    Reporter
	log         *logger.Logger

	// scheduleCleanup removes a working directory after the result has
	// been assembled. The default runs asynchronously so the response is
	// never blocked on filesystem teardown; tests override it to observe
	// the exactly-once guarantee.
	scheduleCleanup func(dir string)
}

func New(cfg Config, f media.Fetcher, t transcribe.Transcriber, a analysis.Set, c *cache.ResultCache, log *logger.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		fetcher:     f,
		transcriber: t,
		analyzers:   a,
		cache:       c,
		log:         log.WithComponent("pipeline"),
	}
	o.scheduleCleanup = func(dir string) {
		go o.removeDir(dir)
	}
	return o
}

// SetReporter installs an optional post-success exporter.
func (o *Orchestrator) SetReporter(r Reporter) { o.reporter = r }

// Process runs the full pipeline for one request. On a cache hit the stored
// result is returned unchanged, with no fetching and no re-timing. On any
// fetch or transcription failure the working directory is removed before
// the error is returned; on success its removal is scheduled after the
// result is assembled.
func (o *Orchestrator) Process(ctx context.Context, req types.TranscriptionRequest) (*types.PipelineResult, error) {
	key := cache.Key(req)
	log := o.log.WithField("url", req.VideoURL)

	cached, status := o.cache.Get(ctx, key)
	log.WithField("cache", status.String()).Info("cache checked")
	if status == cache.StatusHit {
		return cached, nil
	}
	// An unavailable backend stays unavailable for this request: the
	// store below is skipped rather than re-attempted.
	cacheUsable := status == cache.StatusMiss

	requestID := uuid.NewString()
	workdir := filepath.Join(o.cfg.TempRoot, requestID)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, &Error{Kind: KindInternal, Op: "workdir", Err: err}
	}
	log = log.WithField("request_id", requestID)

	totalStart := time.Now()

	fetchStart := time.Now()
	if err := o.fetcher.Fetch(ctx, req.VideoURL, req.StartTime, req.EndTime, workdir); err != nil {
		o.removeDir(workdir)
		return nil, &Error{Kind: KindFetch, Op: "fetch", Err: err}
	}
	downloadSecs := time.Since(fetchStart).Seconds()

	audioPath, err := findAudio(workdir)
	if err != nil {
		o.removeDir(workdir)
		return nil, &Error{Kind: KindInternal, Op: "fetch output", Err: err}
	}
	log.WithField("download_seconds", round2(downloadSecs)).Info("audio fetched")

	transcribeStart := time.Now()
	tr, err := o.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		o.removeDir(workdir)
		kind := KindInternal
		if errors.Is(err, transcribe.ErrUnavailable) {
			kind = KindUnavailable
		}
		return nil, &Error{Kind: kind, Op: "transcribe", Err: err}
	}
	transcribeSecs := time.Since(transcribeStart).Seconds()
	text := strings.TrimSpace(tr.Text)
	log.WithField("transcription_seconds", round2(transcribeSecs)).Info("audio transcribed")

	var srt *string
	var lines []caption.Line
	if req.GenerateSRT && len(tr.Segments) > 0 {
		lines = caption.Split(tr.Segments)
		rendered := caption.Render(lines)
		srt = &rendered
	}

	// The analysis container is part of the response whenever any flag
	// was set, even when an empty transcript means nothing actually ran.
	var analysisRes *types.AnalysisResults
	var analysisSecs float64
	if req.AnalysisRequested() {
		analysisRes = &types.AnalysisResults{}
		if text != "" {
			analysisStart := time.Now()
			analysisRes = o.analyzers.Run(req, text, o.log)
			analysisSecs = time.Since(analysisStart).Seconds()
			log.WithField("analysis_seconds", round2(analysisSecs)).Info("analysis finished")
		}
	}

	res := &types.PipelineResult{
		Message:              "Processing successful.",
		Transcription:        &text,
		SRTTranscription:     srt,
		Analysis:             analysisRes,
		OriginalURL:          req.VideoURL,
		TimeRange:            req.StartTime + " - " + req.EndTime,
		DownloadSeconds:      round2(downloadSecs),
		TranscriptionSeconds: round2(transcribeSecs),
		AnalysisSeconds:      round2(analysisSecs),
		TotalSeconds:         round2(time.Since(totalStart).Seconds()),
	}

	if cacheUsable {
		o.cache.Set(ctx, key, res, o.cfg.CacheTTL)
	}

	if o.reporter != nil {
		if err := o.reporter.Export(req, res, lines); err != nil {
			log.WithError(err).Warn("report export failed")
		}
	}

	o.scheduleCleanup(workdir)
	return res, nil
}

// findAudio locates the fetcher's output. Zero files is a fatal error for
// the request. More than one is tolerated by taking the first entry;
// os.ReadDir returns names in sorted order, so the tie-break is
// deterministic across platforms.
func findAudio(workdir string) (string, error) {
	entries, err := os.ReadDir(workdir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "audio.") {
			return filepath.Join(workdir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no audio file produced in %s", workdir)
}

func (o *Orchestrator) removeDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		o.log.WithError(err).WithField("dir", dir).Warn("workdir cleanup failed")
		return
	}
	o.log.WithField("dir", dir).Debug("workdir removed")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
