package domain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mizan.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Tier != TierCommunity || cfg.Repository.Driver != "sqlite" || cfg.EventBus.Type != "channel" {
		t.Errorf("unexpected community defaults: %+v", cfg)
	}
	if cfg.Engine.RuleCacheTTL != DefaultRuleCacheTTL {
		t.Errorf("expected rule cache TTL %v, got %v", DefaultRuleCacheTTL, cfg.Engine.RuleCacheTTL)
	}
}

func TestLoadConfigProTier(t *testing.T) {
	t.Setenv("MIZAN_TIER", TierPro)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Repository.Driver != "postgres" || cfg.Cache.Type != "redis" || !cfg.Worker.Enabled {
		t.Errorf("unexpected pro config: %+v", cfg)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
engine:
  ruleCacheTTL: 2m
  defaultMadhab: maliki
  defaultStrictness: strict
retention:
  enabled: true
  schedule: "0 3 * * *"
  maxAge: 48h
logging:
  level: warn
`)
	t.Setenv("MIZAN_PORT", "9191")
	t.Setenv("MIZAN_DEFAULT_STRICTNESS", "VERY_STRICT")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("environment should override the file port, got %d", cfg.Server.Port)
	}
	if cfg.Engine.RuleCacheTTL != 2*time.Minute {
		t.Errorf("expected 2m rule cache TTL, got %v", cfg.Engine.RuleCacheTTL)
	}
	if cfg.Engine.DefaultMadhab != MadhabMaliki {
		t.Errorf("expected maliki, got %s", cfg.Engine.DefaultMadhab)
	}
	if cfg.Engine.DefaultStrictness != StrictnessVeryStrict {
		t.Errorf("expected very_strict, got %s", cfg.Engine.DefaultStrictness)
	}
	if cfg.Retention.MaxAge != 48*time.Hour || cfg.Retention.Schedule != "0 3 * * *" {
		t.Errorf("unexpected retention config: %+v", cfg.Retention)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn, got %s", cfg.Logging.Level)
	}
	// Unset keys keep their defaults.
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("expected default driver, got %s", cfg.Repository.Driver)
	}
}

func TestLoadConfigDebugOverride(t *testing.T) {
	t.Setenv("MIZAN_DEBUG", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	if _, err := LoadConfig(writeConfig(t, "server: [")); err == nil {
		t.Error("expected an error for malformed YAML")
	}

	_, err := LoadConfig(writeConfig(t, "engine:\n  defaultMadhab: zahiri\n"))
	if err == nil || !strings.Contains(err.Error(), "defaultMadhab") {
		t.Errorf("expected a validation error for the madhab, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"driver", func(c *Config) { c.Repository.Driver = "mysql" }, "repository.driver"},
		{"cache", func(c *Config) { c.Cache.Type = "memcached" }, "cache.type"},
		{"bus", func(c *Config) { c.EventBus.Type = "kafka" }, "eventBus.type"},
		{"rule cache ttl", func(c *Config) { c.Engine.RuleCacheTTL = 0 }, "ruleCacheTTL"},
		{"strictness", func(c *Config) { c.Engine.DefaultStrictness = "lax" }, "defaultStrictness"},
		{"retention", func(c *Config) { c.Retention.MaxAge = 0 }, "retention.maxAge"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, "tracing.sampleRatio"},
		{"exporter", func(c *Config) { c.Tracing.ExporterType = "jaeger" }, "tracing.exporterType"},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if err := ProConfig().Validate(); err != nil {
		t.Fatalf("pro config should be valid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error mentioning %s, got %v", tt.field, err)
			}
		})
	}
}
