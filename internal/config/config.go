// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. IMGCRAWL_CRAWLER_WORKERS.
const EnvPrefix = "IMGCRAWL"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// CrawlerConfig governs the feed source and the worker pool.
type CrawlerConfig struct {
	Articles    int    `mapstructure:"articles"`
	Workers     int    `mapstructure:"workers"`
	OutputDir   string `mapstructure:"output_dir"`
	BaseURL     string `mapstructure:"base_url"`
	FeedPath    string `mapstructure:"feed_path"`
	PageSize    int    `mapstructure:"page_size"`
	ImagePrefix string `mapstructure:"image_prefix"`
	UserAgent   string `mapstructure:"user_agent"`
	ImageExt    string `mapstructure:"image_ext"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// StorageConfig selects where images are written. An empty bucket means local disk.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables the /metrics and /healthz listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProgressConfig tunes the progress event hub.
type ProgressConfig struct {
	BufferSize      int `mapstructure:"buffer_size"`
	FlushIntervalMs int `mapstructure:"flush_interval_ms"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.articles", 25)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.output_dir", "images")
	v.SetDefault("crawler.base_url", "https://habr.com")
	v.SetDefault("crawler.feed_path", "/ru/all/page%d")
	v.SetDefault("crawler.page_size", 20)
	v.SetDefault("crawler.image_prefix", "https://habrastorage")
	v.SetDefault("crawler.user_agent", "imgcrawl/0.1 (+https://github.com/JakeFAU/article-image-crawler)")
	v.SetDefault("crawler.image_ext", ".jpg")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.flush_interval_ms", 250)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Articles < 0 {
		return fmt.Errorf("crawler.articles must be >= 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.PageSize <= 0 {
		return fmt.Errorf("crawler.page_size must be > 0")
	}
	if !strings.Contains(c.Crawler.FeedPath, "%d") {
		return fmt.Errorf("crawler.feed_path must contain %%d")
	}
	if strings.TrimSpace(c.Crawler.OutputDir) == "" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("crawler.output_dir must be set when storage.gcs_bucket is empty")
	}
	if ext := c.Crawler.ImageExt; ext != "" && (!strings.HasPrefix(ext, ".") || filepath.Base(ext) != ext) {
		return fmt.Errorf("crawler.image_ext must look like .jpg, got %q", ext)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	if c.Progress.BufferSize < 0 || c.Progress.FlushIntervalMs < 0 {
		return fmt.Errorf("progress settings must be >= 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// FlushInterval converts the progress flush interval into a duration.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Progress.FlushIntervalMs) * time.Millisecond
}
