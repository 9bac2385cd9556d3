package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MetricsNamespace != "empathai" {
		t.Fatalf("MetricsNamespace = %q, want %q", cfg.MetricsNamespace, "empathai")
	}
	if !cfg.EncryptAtRest {
		t.Fatalf("EncryptAtRest = false, want true by default")
	}
	if cfg.ContextHistoryLimit != 10 {
		t.Fatalf("ContextHistoryLimit = %d, want 10", cfg.ContextHistoryLimit)
	}
	if cfg.SummaryRefreshEvery != 8 {
		t.Fatalf("SummaryRefreshEvery = %d, want 8", cfg.SummaryRefreshEvery)
	}
	if cfg.SummaryMessageWindow != 200 {
		t.Fatalf("SummaryMessageWindow = %d, want 200", cfg.SummaryMessageWindow)
	}
	if cfg.SummarySnapshotMaxChars != 3000 {
		t.Fatalf("SummarySnapshotMaxChars = %d, want 3000", cfg.SummarySnapshotMaxChars)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Fatalf("JWTTTL = %v, want 24h", cfg.JWTTTL)
	}
	if cfg.CompletionMode != "auto" {
		t.Fatalf("CompletionMode = %q, want %q", cfg.CompletionMode, "auto")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	setCoreEnvEmpty(t)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("Load() error = %v, want JWT_SECRET error", err)
	}
}

func TestLoadRejectsShortMasterKey(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MASTER_KEY", "abcd1234")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted a short MASTER_KEY")
	}
}

func TestLoadPassphraseRequiresSalt(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MASTER_KEY_PASSPHRASE", "open sesame")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted a passphrase without a salt")
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("SUMMARY_REFRESH_EVERY", "4")
	t.Setenv("ENCRYPT_AT_REST", "false")
	t.Setenv("JWT_TTL", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want explicit value", cfg.BindAddr)
	}
	if cfg.SummaryRefreshEvery != 4 {
		t.Fatalf("SummaryRefreshEvery = %d, want 4", cfg.SummaryRefreshEvery)
	}
	if cfg.EncryptAtRest {
		t.Fatalf("EncryptAtRest = true, want false")
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Fatalf("JWTTTL = %v, want 2h", cfg.JWTTTL)
	}
}

func TestLoadRejectsBadCadence(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SUMMARY_REFRESH_EVERY", "0")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() accepted a zero refresh cadence")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_SYSTEM_PROMPT",
		"DATABASE_URL",
		"MASTER_KEY",
		"MASTER_KEY_PASSPHRASE",
		"MASTER_KEY_SALT",
		"ENCRYPT_AT_REST",
		"JWT_SECRET",
		"JWT_TTL",
		"CONTEXT_HISTORY_LIMIT",
		"SUMMARY_REFRESH_EVERY",
		"SUMMARY_MESSAGE_WINDOW",
		"SUMMARY_SNAPSHOT_MAX_CHARS",
		"SUMMARY_MAX_OUTPUT_TOKENS",
		"COMPLETION_ADAPTER_MODE",
		"COMPLETION_BASE_URL",
		"COMPLETION_API_KEY",
		"COMPLETION_MODEL",
		"COMPLETION_REPLY_MAX_TOKENS",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
