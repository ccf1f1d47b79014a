package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_ADDR", "localhost:5432")
	t.Setenv("POSTGRES_USER", "zombies")
	t.Setenv("POSTGRES_PASS", "secret")
	t.Setenv("REDIS_ADDR", "localhost:6379")
}

func TestParse_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("NODE_ID", "node-1")

	c, err := Parse()
	if err != nil {
		t.Fatal(err)
	}
	if c.ApiPort != "5000" || c.MetricsPort != "2112" || c.HealthPort != "8080" {
		t.Errorf("unexpected ports %s %s %s", c.ApiPort, c.MetricsPort, c.HealthPort)
	}
	if c.LockTTL != 30*time.Second || c.LockBackend != LockBackendRedis || c.EventBuffer != 256 {
		t.Errorf("unexpected lock/event defaults %+v", c)
	}
	if c.TotalsRefreshInterval != 5*time.Minute || c.WorkerShards != 0 {
		t.Errorf("unexpected worker defaults %+v", c)
	}
	if c.LocalePath != "locales/" || c.DefaultLang != "en" || c.NodeID != "node-1" {
		t.Errorf("unexpected locale defaults %+v", c)
	}
}

func TestParse_Required(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_PASS", "")
	os.Unsetenv("POSTGRES_PASS")
	if _, err := Parse(); err == nil {
		t.Error("expected an error without POSTGRES_PASS")
	}
}

func TestParse_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("LOCK_BACKEND", "etcd")
	if _, err := Parse(); err == nil {
		t.Error("expected an unknown lock backend to fail")
	}

	t.Setenv("LOCK_BACKEND", LockBackendMemory)
	t.Setenv("LOCK_TTL", "soon")
	if _, err := Parse(); err == nil {
		t.Error("expected a malformed duration to fail")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	setRequired(t)
	t.Setenv("API_PORT", "")
	os.Unsetenv("API_PORT")
	t.Setenv("LOG_LEVEL", "warn")

	file := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(file, []byte("API_PORT=6000\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if c.ApiPort != "6000" {
		t.Errorf("expected the file to set API_PORT, got %s", c.ApiPort)
	}
	if c.LogLevel != "warn" {
		t.Errorf("the environment should win over the file, got %s", c.LogLevel)
	}
	// godotenv sets variables process-wide
	os.Unsetenv("API_PORT")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("a missing env file is not an error: %v", err)
	}
}
