package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("PLAYER_PROBE_TIMEOUT", "3s")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg := Load()

	if cfg.ServerAddr != ":9090" {
		t.Errorf("ServerAddr = %q, want :9090", cfg.ServerAddr)
	}
	if cfg.ProbeTimeout != 3*time.Second {
		t.Errorf("ProbeTimeout = %v, want 3s", cfg.ProbeTimeout)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("RedisDB = %d, want fallback 0", cfg.RedisDB)
	}
	if !cfg.MinioUseSSL {
		t.Error("MinioUseSSL should be true")
	}
	if cfg.MaxPlayerSessions <= 0 {
		t.Errorf("MaxPlayerSessions = %d, want positive default", cfg.MaxPlayerSessions)
	}
	if cfg.MaxPlayAttempts != 8 {
		t.Errorf("MaxPlayAttempts = %d, want 8", cfg.MaxPlayAttempts)
	}
}
