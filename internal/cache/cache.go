package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"video-transcriber-go/internal/logger"
	"video-transcriber-go/internal/types"
)

// Status is the outcome of a cache lookup. Miss and Unavailable both mean
// "no value", but Unavailable additionally tells the caller to skip its
// store attempt for the rest of the request.
type Status int

const (
	StatusHit Status = iota
	StatusMiss
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	default:
		return "unavailable"
	}
}

// Key derives the deterministic cache key for a request. Every field that
// can change the response is concatenated in fixed order; omitting a flag
// would collide two requests that differ only in that flag.
func Key(req types.TranscriptionRequest) string {
	return fmt.Sprintf("transcription:%s:%s-%s:%t:%t:%t:%t:%t",
		req.VideoURL,
		req.StartTime, req.EndTime,
		req.GenerateSRT,
		req.AnalyzeSentiment,
		req.AnalyzePOS,
		req.AnalyzeWordFrequency,
		req.AnalyzeTopic,
	)
}

// ResultCache stores serialized pipeline results in Redis with a TTL.
// Caching is an optimization: every operation degrades to a no-op rather
// than surface an error to the pipeline.
type ResultCache struct {
	rdb *redis.Client
	log *logger.Logger
}

// New wraps an already-constructed Redis client. rdb may be nil, in which
// case every lookup reports StatusUnavailable (caching disabled).
func New(rdb *redis.Client, log *logger.Logger) *ResultCache {
	return &ResultCache{rdb: rdb, log: log}
}

// Get fetches and decodes a cached result. Backend connectivity failures
// and malformed payloads are both reported as StatusUnavailable so the
// caller treats the backend as degraded for the rest of the request.
func (c *ResultCache) Get(ctx context.Context, key string) (*types.PipelineResult, Status) {
	if c.rdb == nil {
		return nil, StatusUnavailable
	}

	raw, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, StatusMiss
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache get failed, disabling cache for request")
		return nil, StatusUnavailable
	}

	var res types.PipelineResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cached payload malformed, disabling cache for request")
		return nil, StatusUnavailable
	}
	return &res, StatusHit
}

// Set stores a result with the given TTL. Best effort: failures are logged
// and swallowed.
func (c *ResultCache) Set(ctx context.Context, key string, res *types.PipelineResult, ttl time.Duration) {
	if c.rdb == nil {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		c.log.WithError(err).Warn("cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache set failed")
		return
	}
	c.log.WithField("key", key).Debug("cached result")
}
