package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"video-transcriber-go/internal/logger"
)

// WhisperConfig configures the remote whisper HTTP client.
type WhisperConfig struct {
	BaseURL string
	Model   string        // default "base"
	Timeout time.Duration // per-attempt HTTP timeout, default 120s

	// MaxElapsed bounds the retry loop. Tests shrink it.
	MaxElapsed time.Duration
}

// WhisperClient uploads audio to a whisper HTTP service and decodes the
// {text, segments} response. Network failures and 5xx responses are
// retried with exponential backoff; 4xx responses are not.
type WhisperClient struct {
	cfg    WhisperConfig
	client *http.Client
	log    *logger.Logger

	// retryInterval seeds the exponential backoff; tests shrink it so
	// retries never sleep for real.
	retryInterval time.Duration
}

func NewWhisperClient(cfg WhisperConfig, log *logger.Logger) *WhisperClient {
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	return &WhisperClient{
		cfg:           cfg,
		client:        &http.Client{Timeout: cfg.Timeout},
		log:           log.WithComponent("whisper"),
		retryInterval: 500 * time.Millisecond,
	}
}

// ErrUnavailable marks exhausted retries against an unreachable or failing
// transcription backend. Callers translate it to a gateway-class failure
// rather than an internal fault.
var ErrUnavailable = errors.New("transcription service unavailable")

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// unavailableError wraps connectivity and server-side failures. These are
// retried; when retries run out the error surfaces and matches
// ErrUnavailable.
type unavailableError struct{ err error }

func (e *unavailableError) Error() string        { return e.err.Error() }
func (e *unavailableError) Unwrap() error        { return e.err }
func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

// Transcribe uploads the file and returns the parsed result. The multipart
// body is rebuilt on every attempt so retries never reuse a drained reader.
func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/transcribe"

	var out *Result
	op := func() error {
		res, err := c.attempt(ctx, endpoint, audioPath)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return backoff.Permanent(perm.err)
			}
			return err
		}
		out = res
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxElapsedTime = c.cfg.MaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", filepath.Base(audioPath), err)
	}
	return out, nil
}

func (c *WhisperClient) attempt(ctx context.Context, endpoint, audioPath string) (*Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("open audio: %w", err)}
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, &permanentError{err: err}
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, &permanentError{err: fmt.Errorf("read audio: %w", err)}
	}
	if err := w.WriteField("model", c.cfg.Model); err != nil {
		return nil, &permanentError{err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &permanentError{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, &permanentError{err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.WithError(err).Warn("whisper request failed, will retry")
		return nil, &unavailableError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &unavailableError{err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 500 {
		c.log.WithField("status", resp.StatusCode).Warn("whisper server error, will retry")
		return nil, &unavailableError{err: fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(payload, 200))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &permanentError{err: fmt.Errorf("http %d: %s", resp.StatusCode, truncate(payload, 200))}
	}

	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, &permanentError{err: fmt.Errorf("decode response: %w", err)}
	}
	return &res, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
