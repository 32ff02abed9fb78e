package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.HTTP.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.HTTP.Port)
	}
	if cfg.Ranking.DefaultPreset != "relevance_first" {
		t.Errorf("default preset = %q", cfg.Ranking.DefaultPreset)
	}
	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("batch size = %d, want 64", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.Budget.Action != "warn" {
		t.Errorf("budget action = %q, want warn", cfg.Embedding.Budget.Action)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("cors origins = %v, want [*]", cfg.CORS.AllowedOrigins)
	}
	if cfg.Cache.Enabled() {
		t.Error("cache must be disabled without addrs")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "invalid port",
			mutate: func(c *Config) { c.HTTP.Port = 70000 },
			want:   "http.port must be between 1 and 65535, got 70000",
		},
		{
			name:   "unknown preset",
			mutate: func(c *Config) { c.Ranking.DefaultPreset = "popular" },
			want:   `ranking.default_preset must be "balanced" or "relevance_first", got "popular"`,
		},
		{
			name:   "invalid budget action",
			mutate: func(c *Config) { c.Embedding.Budget.Action = "invalid_action" },
			want:   `embedding.budget.action must be "warn" or "reject", got "invalid_action"`,
		},
		{
			name:   "negative dimensions",
			mutate: func(c *Config) { c.Embedding.Dimensions = -1 },
			want:   "embedding.dimensions must not be negative, got -1",
		},
		{
			name:   "negative rate limit",
			mutate: func(c *Config) { c.RateLimit.RequestsPerMinute = -5 },
			want:   "rate_limit.requests_per_minute must not be negative, got -5",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != tc.want {
				t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), tc.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("COURSERANK_TEST_KEY", "sk-test")

	in := "a: ${COURSERANK_TEST_KEY}\nb: ${COURSERANK_TEST_UNSET:-fallback}\nc: ${COURSERANK_TEST_UNSET}\n"
	want := "a: sk-test\nb: fallback\nc: \n"
	if got := string(expandEnvVars([]byte(in))); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("COURSERANK_TEST_PORT", "9090")
	path := filepath.Join(t.TempDir(), "test.yaml")
	yaml := `
http:
  port: ${COURSERANK_TEST_PORT}
ranking:
  default_preset: balanced
embedding:
  model: text-embedding-3-large
  budget:
    daily_token_limit: 1000
    action: reject
cache:
  addrs: ["localhost:6379"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Ranking.DefaultPreset != "balanced" {
		t.Errorf("preset = %q", cfg.Ranking.DefaultPreset)
	}
	if cfg.Embedding.Budget.DailyTokenLimit != 1000 || cfg.Embedding.Budget.Action != "reject" {
		t.Errorf("budget = %+v", cfg.Embedding.Budget)
	}
	if !cfg.Cache.Enabled() {
		t.Error("cache should be enabled")
	}
	if cfg.Embedding.TimeoutSec != 10 {
		t.Errorf("timeout default not applied: %d", cfg.Embedding.TimeoutSec)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("ranking:\n  default_preset: newest\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoad_BundledConfigs(t *testing.T) {
	for _, env := range []string{"local", "prod"} {
		t.Run(env, func(t *testing.T) {
			if _, err := Load(env); err != nil {
				t.Fatalf("Load(%q): %v", env, err)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}
