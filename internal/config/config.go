package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"CryptoIngest/internal/catalog"
	"CryptoIngest/internal/pipeline"
)

// DefaultSQLitePath is used when database.sqlite_path is absent.
const DefaultSQLitePath = "data/ingest_history.db"

// Config holds all application configuration.
type Config struct {
	DataSource struct {
		Provider          string        `yaml:"provider"` // "binance" or "mock"
		BaseURL           string        `yaml:"base_url"`
		Window            int           `yaml:"window"`
		Timeout           time.Duration `yaml:"timeout"`
		MaxParallelism    int           `yaml:"max_parallelism"`
		Retries           *int          `yaml:"retries"`
		RetryBackoff      time.Duration `yaml:"retry_backoff"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
	} `yaml:"data_source"`
	Symbols []catalog.Entry `yaml:"symbols"`
	Output  struct {
		RawPath       string `yaml:"raw_path"`
		ProcessedPath string `yaml:"processed_path"`
	} `yaml:"output"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// Set before decoding so an explicit empty sqlite_path disables history.
	cfg.Database.SQLitePath = DefaultSQLitePath

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("INGEST_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("INGEST_WINDOW: %w", err)
		}
		cfg.DataSource.Window = n
	}
	if v := os.Getenv("RAW_PATH"); v != "" {
		cfg.Output.RawPath = v
	}
	if v := os.Getenv("PROCESSED_PATH"); v != "" {
		cfg.Output.ProcessedPath = v
	}
	if v := os.Getenv("CRON_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.DataSource.Provider == "" {
		cfg.DataSource.Provider = "binance"
	}
	if cfg.DataSource.BaseURL == "" {
		cfg.DataSource.BaseURL = "https://api.binance.com"
	}
	if cfg.DataSource.Window == 0 {
		cfg.DataSource.Window = pipeline.DefaultWindow
	}
	if cfg.DataSource.Timeout == 0 {
		cfg.DataSource.Timeout = pipeline.DefaultTimeout
	}
	if cfg.DataSource.MaxParallelism == 0 {
		cfg.DataSource.MaxParallelism = pipeline.DefaultMaxParallelism
	}
	if cfg.DataSource.Retries == nil {
		n := pipeline.DefaultRetries
		cfg.DataSource.Retries = &n
	}
	if cfg.DataSource.RetryBackoff == 0 {
		cfg.DataSource.RetryBackoff = pipeline.DefaultRetryBackoff
	}
	if cfg.DataSource.RequestsPerSecond == 0 {
		cfg.DataSource.RequestsPerSecond = 10
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = catalog.DefaultEntries()
	}
	if cfg.Output.RawPath == "" {
		cfg.Output.RawPath = pipeline.DefaultRawPath
	}
	if cfg.Output.ProcessedPath == "" {
		cfg.Output.ProcessedPath = pipeline.DefaultProcessedPath
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "binance", "mock":
	default:
		return fmt.Errorf("data_source.provider must be binance or mock, got %q", c.DataSource.Provider)
	}
	if c.DataSource.Window <= 0 {
		return fmt.Errorf("data_source.window must be positive")
	}
	if c.DataSource.Timeout <= 0 {
		return fmt.Errorf("data_source.timeout must be positive")
	}
	if c.DataSource.MaxParallelism <= 0 {
		return fmt.Errorf("data_source.max_parallelism must be positive")
	}
	if c.DataSource.Retries != nil && *c.DataSource.Retries < 0 {
		return fmt.Errorf("data_source.retries must not be negative")
	}
	if _, err := catalog.New(c.Symbols); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}
	if c.Output.RawPath == c.Output.ProcessedPath {
		return fmt.Errorf("output.raw_path and output.processed_path must differ")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// NotifyEnabled reports whether Telegram notifications are configured.
func (c *Config) NotifyEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// PipelineConfig builds the explicit pipeline configuration.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	cat, err := catalog.New(c.Symbols)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("symbols: %w", err)
	}
	retries := pipeline.DefaultRetries
	if c.DataSource.Retries != nil {
		retries = *c.DataSource.Retries
	}
	return pipeline.Config{
		Catalog:           cat,
		Window:            c.DataSource.Window,
		RawPath:           c.Output.RawPath,
		ProcessedPath:     c.Output.ProcessedPath,
		Timeout:           c.DataSource.Timeout,
		MaxParallelism:    c.DataSource.MaxParallelism,
		Retries:           retries,
		RetryBackoff:      c.DataSource.RetryBackoff,
		RequestsPerSecond: c.DataSource.RequestsPerSecond,
	}, nil
}
