package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the Aria backend.
type Config struct {
	// Required variables
	JWTSecret string
	HTTPPort  string
	WSPort    string
	FilesRoot string

	// Optional variables with defaults
	GoEnv           string
	LogLevel        string
	FFmpegPath      string
	RedisEnabled    bool
	RedisAddr       string
	RedisPassword   string
	DevelopmentMode bool
	SkipAuth        bool
	AllowedOrigins  string
	ServeFiles      bool

	OTelEnabled       bool
	OTelCollectorAddr string

	RoomIdleTimeout          time.Duration
	RoomUnloadCheckInterval  time.Duration
	MaxImageSize             int64
	MaxEmoteSize             int64

	// Rate Limits (ulule/limiter formatted rate strings)
	RateLimitLogin    string
	RateLimitRefresh  string
	RateLimitPost     string
	RateLimitEmote    string
	RateLimitClaim    string
	RateLimitWsConnect string
}

// ValidateEnv validates all required environment variables and returns a Config object.
// Returns an error if any required variable is missing or invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Required: JWT_SECRET (minimum 32 characters)
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, fmt.Sprintf("JWT_SECRET must be at least 32 characters (got %d)", len(cfg.JWTSecret)))
	}

	// Required: HTTP_PORT (valid port number, default 3000 per the wire spec)
	cfg.HTTPPort = getEnvOrDefault("HTTP_PORT", "3000")
	if !isValidPort(cfg.HTTPPort) {
		errs = append(errs, fmt.Sprintf("HTTP_PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.HTTPPort))
	}

	// Required: WS_PORT (valid port number, default 3001 per the wire spec)
	cfg.WSPort = getEnvOrDefault("WS_PORT", "3001")
	if !isValidPort(cfg.WSPort) {
		errs = append(errs, fmt.Sprintf("WS_PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.WSPort))
	}

	// Required: FILES_ROOT, the root of the persisted filesystem tree
	cfg.FilesRoot = os.Getenv("FILES_ROOT")
	if cfg.FilesRoot == "" {
		errs = append(errs, "FILES_ROOT is required")
	}

	cfg.FFmpegPath = getEnvOrDefault("FFMPEG_PATH", "ffmpeg")

	// Conditional: REDIS_ADDR (required if REDIS_ENABLED=true; otherwise the
	// rate limiter falls back to an in-memory store)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.SkipAuth = os.Getenv("SKIP_AUTH") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.ServeFiles = os.Getenv("SERVE_FILES") == "true"

	cfg.OTelEnabled = os.Getenv("OTEL_ENABLED") == "true"
	cfg.OTelCollectorAddr = getEnvOrDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	cfg.RoomIdleTimeout = getEnvDurationOrDefault("ROOM_IDLE_TIMEOUT", time.Hour)
	cfg.RoomUnloadCheckInterval = getEnvDurationOrDefault("ROOM_UNLOAD_CHECK_INTERVAL", 15*time.Minute)
	cfg.MaxImageSize = getEnvInt64OrDefault("MAX_IMAGE_SIZE", 8<<20)
	cfg.MaxEmoteSize = getEnvInt64OrDefault("MAX_EMOTE_SIZE", 4<<20)

	// Rate limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitLogin = getEnvOrDefault("RATE_LIMIT_LOGIN", "30-M")
	cfg.RateLimitRefresh = getEnvOrDefault("RATE_LIMIT_REFRESH", "60-M")
	cfg.RateLimitPost = getEnvOrDefault("RATE_LIMIT_POST", "500-M")
	cfg.RateLimitEmote = getEnvOrDefault("RATE_LIMIT_EMOTE", "60-M")
	cfg.RateLimitClaim = getEnvOrDefault("RATE_LIMIT_CLAIM", "20-H")
	cfg.RateLimitWsConnect = getEnvOrDefault("RATE_LIMIT_WS_CONNECT", "100-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

func isValidPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port >= 1 && port <= 65535
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	if !isValidPort(parts[1]) {
		return false
	}
	return parts[0] != ""
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"jwt_secret", redactSecret(cfg.JWTSecret),
		"http_port", cfg.HTTPPort,
		"ws_port", cfg.WSPort,
		"files_root", cfg.FilesRoot,
		"ffmpeg_path", cfg.FFmpegPath,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"room_idle_timeout", cfg.RoomIdleTimeout,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value)
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
