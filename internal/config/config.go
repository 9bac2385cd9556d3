package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	DatabaseURL string

	// Master key for envelope encryption: either 64 hex chars directly, or
	// derived from a passphrase+salt. Empty means encryption is disabled.
	MasterKeyHex        string
	MasterKeyPassphrase string
	MasterKeySalt       string
	EncryptAtRest       bool

	JWTSecret string
	JWTTTL    time.Duration

	SystemPrompt        string
	ContextHistoryLimit int

	SummaryRefreshEvery     int
	SummaryMessageWindow    int
	SummarySnapshotMaxChars int
	SummaryMaxOutputTokens  int

	CompletionMode    string
	CompletionBaseURL string
	CompletionAPIKey  string
	CompletionModel   string
	ReplyMaxTokens    int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "empathai"),
		AllowAnyOrigin:      false,
		DatabaseURL:         stringsTrimSpace("DATABASE_URL"),
		MasterKeyHex:        stringsTrimSpace("MASTER_KEY"),
		MasterKeyPassphrase: stringsTrimSpace("MASTER_KEY_PASSPHRASE"),
		MasterKeySalt:       stringsTrimSpace("MASTER_KEY_SALT"),
		EncryptAtRest:       true,
		JWTSecret:           stringsTrimSpace("JWT_SECRET"),
		JWTTTL:              24 * time.Hour,
		SystemPrompt:        envOrDefault("APP_SYSTEM_PROMPT", ""),
		ContextHistoryLimit: 10,
		// Every Nth user message triggers a background summary refresh.
		SummaryRefreshEvery:     8,
		SummaryMessageWindow:    200,
		SummarySnapshotMaxChars: 3000,
		SummaryMaxOutputTokens:  220,
		CompletionMode:          envOrDefault("COMPLETION_ADAPTER_MODE", "auto"),
		CompletionBaseURL:       stringsTrimSpace("COMPLETION_BASE_URL"),
		CompletionAPIKey:        stringsTrimSpace("COMPLETION_API_KEY"),
		CompletionModel:         stringsTrimSpace("COMPLETION_MODEL"),
		ReplyMaxTokens:          512,
		ShutdownTimeout:         15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.JWTTTL, err = durationFromEnv("JWT_TTL", cfg.JWTTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.EncryptAtRest, err = boolFromEnv("ENCRYPT_AT_REST", cfg.EncryptAtRest)
	if err != nil {
		return Config{}, err
	}

	cfg.ContextHistoryLimit, err = intFromEnv("CONTEXT_HISTORY_LIMIT", cfg.ContextHistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryRefreshEvery, err = intFromEnv("SUMMARY_REFRESH_EVERY", cfg.SummaryRefreshEvery)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryMessageWindow, err = intFromEnv("SUMMARY_MESSAGE_WINDOW", cfg.SummaryMessageWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.SummarySnapshotMaxChars, err = intFromEnv("SUMMARY_SNAPSHOT_MAX_CHARS", cfg.SummarySnapshotMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryMaxOutputTokens, err = intFromEnv("SUMMARY_MAX_OUTPUT_TOKENS", cfg.SummaryMaxOutputTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyMaxTokens, err = intFromEnv("COMPLETION_REPLY_MAX_TOKENS", cfg.ReplyMaxTokens)
	if err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTTTL <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL must be positive")
	}
	if cfg.MasterKeyHex != "" && len(cfg.MasterKeyHex) != 64 {
		return Config{}, fmt.Errorf("MASTER_KEY must be 64 hex characters")
	}
	if cfg.MasterKeyPassphrase != "" && cfg.MasterKeySalt == "" {
		return Config{}, fmt.Errorf("MASTER_KEY_PASSPHRASE requires MASTER_KEY_SALT")
	}
	if cfg.ContextHistoryLimit <= 0 {
		return Config{}, fmt.Errorf("CONTEXT_HISTORY_LIMIT must be positive")
	}
	if cfg.SummaryRefreshEvery <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_REFRESH_EVERY must be positive")
	}
	if cfg.SummaryMessageWindow <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_MESSAGE_WINDOW must be positive")
	}
	if cfg.SummarySnapshotMaxChars <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_SNAPSHOT_MAX_CHARS must be positive")
	}
	if cfg.SummaryMaxOutputTokens <= 0 {
		return Config{}, fmt.Errorf("SUMMARY_MAX_OUTPUT_TOKENS must be positive")
	}
	if cfg.ReplyMaxTokens <= 0 {
		return Config{}, fmt.Errorf("COMPLETION_REPLY_MAX_TOKENS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
