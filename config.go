package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the dashboard.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	News      NewsConfig      `yaml:"news"`
	Market    MarketConfig    `yaml:"market"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for data persistence. Relative file names are
// resolved against DataDir.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	StateFile  string `yaml:"state_file"`
	SQLitePath string `yaml:"sqlite_path"`
}

type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type NewsConfig struct {
	APIKey   string        `yaml:"api_key"`
	APIURL   string        `yaml:"api_url"`
	Query    string        `yaml:"query"`
	Feeds    []string      `yaml:"feeds"`
	PerFeed  int           `yaml:"per_feed"`
	Limit    int           `yaml:"limit"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type MarketConfig struct {
	BaseURL          string        `yaml:"base_url"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	AutoRefreshEvery time.Duration `yaml:"auto_refresh_every"`
	DefaultWatchlist []string      `yaml:"default_watchlist"`
	SnapshotDays     int           `yaml:"snapshot_days"`
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Spec     string `yaml:"spec"`
	Timezone string `yaml:"timezone"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var defaultFeeds = []string{
	"https://techcrunch.com/category/artificial-intelligence/feed/",
	"https://www.theverge.com/rss/ai-artificial-intelligence/index.xml",
	"https://venturebeat.com/category/ai/feed/",
	"https://www.technologyreview.com/feed/",
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{
			DataDir:    "data",
			StateFile:  "chat_data.json",
			SQLitePath: "dashboard.db",
		},
		LLM: LLMConfig{Model: "gemini-2.0-flash"},
		News: NewsConfig{
			APIURL:   "https://newsapi.org",
			Query:    "artificial intelligence",
			Feeds:    append([]string(nil), defaultFeeds...),
			PerFeed:  5,
			Limit:    20,
			CacheTTL: 30 * time.Minute,
		},
		Market: MarketConfig{
			BaseURL:          "https://query1.finance.yahoo.com",
			CacheTTL:         5 * time.Minute,
			AutoRefreshEvery: 5 * time.Minute,
			DefaultWatchlist: []string{"AAPL", "GOOGL", "MSFT", "TSLA", "NVDA"},
			SnapshotDays:     30,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Spec:     "0 8 * * *",
			Timezone: "Asia/Taipei",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults, then loads
// a .env file next to the working directory (if any) and applies environment
// overrides. A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	// Secrets usually live in .env during local development.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	// GOOGLE_API_KEY takes priority, matching the name used by hosted secrets.
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("NEWS_API_KEY"); v != "" {
		cfg.News.APIKey = v
	}
	if v := os.Getenv("DASHBOARD_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("DASHBOARD_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// StatePath is the resolved location of the chat state document.
func (c *Config) StatePath() string {
	return c.resolve(c.Storage.StateFile)
}

// DatabasePath is the resolved location of the SQLite database.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Storage.SQLitePath)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) || c.Storage.DataDir == "" {
		return name
	}
	return filepath.Join(c.Storage.DataDir, name)
}
