package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "NEWS_API_KEY", "DASHBOARD_DATA_DIR", "DASHBOARD_PORT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Market.CacheTTL != 5*time.Minute {
		t.Errorf("Market.CacheTTL = %v, want %v", cfg.Market.CacheTTL, 5*time.Minute)
	}
	if cfg.News.CacheTTL != 30*time.Minute {
		t.Errorf("News.CacheTTL = %v, want %v", cfg.News.CacheTTL, 30*time.Minute)
	}
	if cfg.LLM.APIKey != "" || cfg.News.APIKey != "" {
		t.Errorf("API keys should be empty by default, got %q / %q", cfg.LLM.APIKey, cfg.News.APIKey)
	}
	if got := cfg.StatePath(); got != filepath.Join("data", "chat_data.json") {
		t.Errorf("StatePath() = %q, want %q", got, filepath.Join("data", "chat_data.json"))
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	clearConfigEnv(t)

	yamlContent := []byte(`
server:
  port: 9000
storage:
  data_dir: "/tmp/dash"
  state_file: "state.json"
news:
  limit: 15
  cache_ttl: 10m
  feeds:
    - "https://example.com/feed.xml"
market:
  cache_ttl: 1m
scheduler:
  enabled: false
`)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.News.Limit != 15 {
		t.Errorf("News.Limit = %d, want %d", cfg.News.Limit, 15)
	}
	if cfg.News.CacheTTL != 10*time.Minute {
		t.Errorf("News.CacheTTL = %v, want %v", cfg.News.CacheTTL, 10*time.Minute)
	}
	if len(cfg.News.Feeds) != 1 {
		t.Errorf("len(News.Feeds) = %d, want 1", len(cfg.News.Feeds))
	}
	if cfg.Market.CacheTTL != time.Minute {
		t.Errorf("Market.CacheTTL = %v, want %v", cfg.Market.CacheTTL, time.Minute)
	}
	if cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = true, want false")
	}
	// Untouched sections keep their defaults.
	if cfg.News.PerFeed != 5 {
		t.Errorf("News.PerFeed = %d, want %d", cfg.News.PerFeed, 5)
	}
	if got := cfg.StatePath(); got != "/tmp/dash/state.json" {
		t.Errorf("StatePath() = %q, want %q", got, "/tmp/dash/state.json")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("NEWS_API_KEY", "news-key")
	t.Setenv("DASHBOARD_PORT", "7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.LLM.APIKey != "google-key" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "google-key")
	}
	if cfg.News.APIKey != "news-key" {
		t.Errorf("News.APIKey = %q, want %q", cfg.News.APIKey, "news-key")
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 7070)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}
