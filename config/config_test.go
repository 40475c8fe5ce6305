package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:5000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", cfg.Poll.Interval)
	}
	if cfg.Poll.RunMode != RunModeOnce || cfg.Poll.Strategy != StrategySimilarity {
		t.Errorf("RunMode/Strategy = %q/%q", cfg.Poll.RunMode, cfg.Poll.Strategy)
	}
	if cfg.Similarity.NumResults != 10 || cfg.Similarity.SimilarityWeight != 0.7 {
		t.Errorf("unexpected similarity defaults: %+v", cfg.Similarity)
	}
	if cfg.Model.EmbeddingDim != 50 || cfg.Model.TopK != 5 {
		t.Errorf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Email.Enabled() {
		t.Error("email should be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("API_BASE_URL", "http://prefs.internal:8080")
	t.Setenv("RUN_MODE", "scheduler")
	t.Setenv("STRATEGY", "model")
	t.Setenv("POLL_INTERVAL", "2s")
	t.Setenv("NUM_RESULTS", "3")
	t.Setenv("EMAIL_SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_RECIPIENT", "viewer@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://prefs.internal:8080" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Poll.RunMode != RunModeScheduler {
		t.Errorf("RunMode = %q", cfg.Poll.RunMode)
	}
	if cfg.Poll.Strategy != StrategyModel {
		t.Errorf("Strategy = %q", cfg.Poll.Strategy)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("Interval = %v", cfg.Poll.Interval)
	}
	if cfg.Similarity.NumResults != 3 {
		t.Errorf("NumResults = %d", cfg.Similarity.NumResults)
	}
	if !cfg.Email.Enabled() {
		t.Error("email should be enabled")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "catalog:\n  path: /srv/titles.csv\nsimilarity:\n  runtime_window: 45\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.Path != "/srv/titles.csv" {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
	if cfg.Similarity.RuntimeWindow != 45 {
		t.Errorf("RuntimeWindow = %v", cfg.Similarity.RuntimeWindow)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"run mode", "RUN_MODE", "forever", "RunMode"},
		{"strategy", "STRATEGY", "random", "Strategy"},
		{"base url", "API_BASE_URL", "not a url", "BaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateRejectsZeroWeights(t *testing.T) {
	cfg := defaultConfig()
	cfg.Similarity.SimilarityWeight = 0
	cfg.Similarity.PopularityWeight = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero weights")
	}
}
