package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	path := writeConfig(t, `
database:
  path: "`+dbPath+`"
redis:
  address: "localhost:6379"
  db: 1
cache:
  ttl_seconds: 120
api:
  port: 9000
  rate_limit_rps: 25
  rate_limit_burst: 50
monitoring:
  health_check_port: 8091
  prometheus_enabled: true
  prometheus_port: 9091
scheduling:
  next_slot_horizon_days: 14
  bulk_max_days: 60
  store_timeout_seconds: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Path != dbPath {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Redis.Address != "localhost:6379" || cfg.Redis.DB != 1 {
		t.Errorf("redis config wrong: %+v", cfg.Redis)
	}
	if cfg.API.Port != 9000 || cfg.API.RateLimitRPS != 25 {
		t.Errorf("api config wrong: %+v", cfg.API)
	}
	if cfg.CacheTTL() != 2*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL())
	}
	if cfg.NextSlotHorizon() != 14 || cfg.BulkMaxDays() != 60 {
		t.Errorf("scheduling config wrong: %+v", cfg.Scheduling)
	}
	if cfg.StoreTimeout() != 3*time.Second {
		t.Errorf("StoreTimeout = %v", cfg.StoreTimeout())
	}

	// The database directory is created so sqlite can open the file.
	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Errorf("database dir not created: %v", err)
	}
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("TEST_ORDERSLOT_DB", dbPath)

	path := writeConfig(t, `
database:
  path: "${TEST_ORDERSLOT_DB}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != dbPath {
		t.Errorf("placeholder not expanded: %q", cfg.Database.Path)
	}
}

func TestLoadDefaults(t *testing.T) {
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Fatalf("restore chdir: %v", err)
		}
	})

	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Path != "data/orderslot.db" {
		t.Errorf("default db path = %q", cfg.Database.Path)
	}
	if cfg.CacheTTL() != 0 {
		t.Errorf("cache should be off by default, ttl = %v", cfg.CacheTTL())
	}
	if cfg.NextSlotHorizon() != 30 || cfg.BulkMaxDays() != 90 {
		t.Errorf("scheduling defaults wrong: horizon=%d bulk=%d", cfg.NextSlotHorizon(), cfg.BulkMaxDays())
	}
	if cfg.StoreTimeout() != 5*time.Second {
		t.Errorf("StoreTimeout default = %v", cfg.StoreTimeout())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
