package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every env-driven setting the service reads at startup.
type Config struct {
	Port string

	// TempRoot hosts the per-request working directories.
	TempRoot string

	RedisAddr string
	RedisDB   int
	CacheTTL  time.Duration

	WhisperURL   string
	WhisperModel string

	YTDLPPath string

	// ReportDir enables xlsx export of finished results when non-empty.
	ReportDir string

	// AllowedOrigins lists the browser origins CORS accepts.
	AllowedOrigins []string
}

// FromEnv builds a Config from the environment, falling back to defaults
// suitable for local runs.
func FromEnv() Config {
	return Config{
		Port:           envOr("PORT", "8000"),
		TempRoot:       envOr("TEMP_DIR", "./temp_audio"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RedisDB:        envIntOr("REDIS_DB", 0),
		CacheTTL:       time.Duration(envIntOr("CACHE_TTL_SECONDS", 3600)) * time.Second,
		WhisperURL:     envOr("WHISPER_URL", "http://localhost:9000"),
		WhisperModel:   envOr("WHISPER_MODEL", "base"),
		YTDLPPath:      envOr("YTDLP_PATH", "yt-dlp"),
		ReportDir:      os.Getenv("REPORT_DIR"),
		AllowedOrigins: splitCSV(envOr("ALLOWED_ORIGINS", "http://localhost:3000")),
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envIntOr(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
