package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t, "HTTP_ADDR", "HTTP_BASE_PATH", "HTTP_MAX_ICS_BYTES", "HTTP_MAX_VCF_BYTES",
		"HTTP_TRUSTED_USER_HEADER", "STORAGE_TYPE", "PG_URL", "SQLITE_PATH",
		"SYNC_TOMBSTONE_MAX_AGE", "RECUR_EXPANSION_LIMIT", "RECUR_EXPANSION_HORIZON", "TZ", "LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("HTTP.Addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.HTTP.BasePath != "/dav" {
		t.Fatalf("HTTP.BasePath = %q, want /dav", cfg.HTTP.BasePath)
	}
	if cfg.HTTP.TrustedUserHeader != "X-Remote-User" {
		t.Fatalf("HTTP.TrustedUserHeader = %q, want X-Remote-User", cfg.HTTP.TrustedUserHeader)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Fatalf("Storage.Type = %q, want sqlite", cfg.Storage.Type)
	}
	if cfg.Sync.TombstoneMaxAge != 0 {
		t.Fatalf("Sync.TombstoneMaxAge = %v, want 0", cfg.Sync.TombstoneMaxAge)
	}
	if cfg.Recurrence.ExpansionLimit != 2000 {
		t.Fatalf("Recurrence.ExpansionLimit = %d, want 2000", cfg.Recurrence.ExpansionLimit)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	clearEnv(t, "HTTP_ADDR", "STORAGE_TYPE", "RECUR_EXPANSION_LIMIT", "SYNC_TOMBSTONE_MAX_AGE")
	os.Setenv("HTTP_ADDR", ":9999")
	os.Setenv("STORAGE_TYPE", "postgres")
	os.Setenv("RECUR_EXPANSION_LIMIT", "50")
	os.Setenv("SYNC_TOMBSTONE_MAX_AGE", "72h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("HTTP.Addr = %q, want :9999", cfg.HTTP.Addr)
	}
	if cfg.Storage.Type != "postgres" {
		t.Fatalf("Storage.Type = %q, want postgres", cfg.Storage.Type)
	}
	if cfg.Recurrence.ExpansionLimit != 50 {
		t.Fatalf("Recurrence.ExpansionLimit = %d, want 50", cfg.Recurrence.ExpansionLimit)
	}
	if cfg.Sync.TombstoneMaxAge != 72*time.Hour {
		t.Fatalf("Sync.TombstoneMaxAge = %v, want 72h", cfg.Sync.TombstoneMaxAge)
	}
}

func TestLoadInvalidIntFallsBackToDefault(t *testing.T) {
	clearEnv(t, "RECUR_EXPANSION_LIMIT")
	os.Setenv("RECUR_EXPANSION_LIMIT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Recurrence.ExpansionLimit != 2000 {
		t.Fatalf("Recurrence.ExpansionLimit = %d, want default 2000 on invalid input", cfg.Recurrence.ExpansionLimit)
	}
}
