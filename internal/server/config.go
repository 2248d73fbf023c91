// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the lobby service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/lobby-relay/internal/lobby"
)

// RateLimitConfig defines the parameters for per-connection line rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	Env             string
	TCPAddr         string
	HTTPAddr        string
	AllowedOrigins  []string
	MaxLineSize     int64
	SendQueueSize   int
	RateLimit       RateLimitConfig
	ReapInterval    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		Env:      "dev",
		TCPAddr:  "127.0.0.1:1287",
		HTTPAddr: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxLineSize:   4096,
		SendQueueSize: lobby.DefaultSendQueueSize,
		RateLimit: RateLimitConfig{
			Burst:          60,
			RefillInterval: time.Second,
		},
		ReapInterval:    lobby.DefaultReapInterval,
		IdleTimeout:     lobby.DefaultIdleTimeout,
		ShutdownTimeout: 10 * time.Second,
	}
}

// sanitize replaces unusable values with defaults and returns a copy that
// shares no slices with cfg.
func (cfg Config) sanitize() Config {
	def := defaultConfig()

	if cfg.Env == "" {
		cfg.Env = def.Env
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = def.TCPAddr
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = def.HTTPAddr
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = def.MaxLineSize
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = def.ReapInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if env := os.Getenv("LOBBY_ENV"); env != "" {
		cfg.Env = env
	}

	if addr := os.Getenv("LOBBY_TCP_ADDR"); addr != "" {
		cfg.TCPAddr = addr
	}

	if addr := os.Getenv("LOBBY_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_LINE_SIZE"); maxSize != "" {
		cfg.MaxLineSize = parseInt64Value(maxSize, cfg.MaxLineSize)
	}

	if size := os.Getenv("SEND_QUEUE_SIZE"); size != "" {
		cfg.SendQueueSize = parseIntValue(size, cfg.SendQueueSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseDuration(interval, cfg.RateLimit.RefillInterval)
	}

	if interval := os.Getenv("REAP_INTERVAL"); interval != "" {
		cfg.ReapInterval = parseDuration(interval, cfg.ReapInterval)
	}

	if timeout := os.Getenv("ROOM_IDLE_TIMEOUT"); timeout != "" {
		cfg.IdleTimeout = parseDuration(timeout, cfg.IdleTimeout)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts a Go duration ("3s", "500ms") or a whole number of
// seconds.
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
