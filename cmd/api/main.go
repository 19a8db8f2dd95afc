package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"video-transcriber-go/internal/analysis"
	"video-transcriber-go/internal/cache"
	"video-transcriber-go/internal/config"
	"video-transcriber-go/internal/logger"
	"video-transcriber-go/internal/media"
	"video-transcriber-go/internal/pipeline"
	"video-transcriber-go/internal/report"
	"video-transcriber-go/internal/server"
	"video-transcriber-go/internal/transcribe"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "video-transcriber-go").Info("starting service")

	cfg := config.FromEnv()

	if err := os.MkdirAll(cfg.TempRoot, 0o755); err != nil {
		log.WithError(err).Fatal("failed to create temp directory")
	}
	log.WithField("temp_dir", cfg.TempRoot).Info("temp directory ready")

	// Redis is optional: if it is down the service runs with caching
	// disabled rather than refusing to start.
	var rdb *redis.Client
	{
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unavailable, caching disabled")
			_ = client.Close()
		} else {
			log.WithField("redis_addr", cfg.RedisAddr).Info("redis connection established")
			rdb = client
		}
		cancel()
	}

	resultCache := cache.New(rdb, log)
	fetcher := media.NewYTDLPFetcher(cfg.YTDLPPath, log)
	transcriber := transcribe.NewWhisperClient(transcribe.WhisperConfig{
		BaseURL: cfg.WhisperURL,
		Model:   cfg.WhisperModel,
	}, log)

	pipe := pipeline.New(pipeline.Config{
		TempRoot: cfg.TempRoot,
		CacheTTL: cfg.CacheTTL,
	}, fetcher, transcriber, analysis.DefaultSet(), resultCache, log)

	if cfg.ReportDir != "" {
		log.WithField("report_dir", cfg.ReportDir).Info("xlsx report export enabled")
		pipe.SetReporter(report.NewWriter(cfg.ReportDir))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.New(pipe, log).Handler(cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server terminated")
		}
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
		cancel()
	}

	if err := os.RemoveAll(cfg.TempRoot); err != nil {
		log.WithError(err).Warn("failed to remove temp directory")
	} else {
		log.Info("temp directory cleaned up")
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis connection")
		}
	}
	log.Info("service stopped")
}
