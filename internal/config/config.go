// Package config loads worker configuration from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

type RedisConfig struct {
	URL       string `yaml:"url"`
	QueueKey  string `yaml:"queue_key"`
	KeyPrefix string `yaml:"key_prefix"`
}

type StoreConfig struct {
	Backend   string        `yaml:"backend"` // redis or sqlite
	SQLiteDSN string        `yaml:"sqlite_dsn"`
	RecordTTL time.Duration `yaml:"record_ttl"`
}

type WorkerConfig struct {
	Count      int           `yaml:"count"`
	PopTimeout time.Duration `yaml:"pop_timeout"`
}

type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

type LLMConfig struct {
	APIKey          string        `yaml:"api_key"`
	PlanModel       string        `yaml:"plan_model"`
	ResearchModel   string        `yaml:"research_model"`
	PlanTimeout     time.Duration `yaml:"plan_timeout"`
	ResearchTimeout time.Duration `yaml:"research_timeout"`
	RateLimit       float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst           int           `yaml:"burst"`
}

type NotionConfig struct {
	Secret     string        `yaml:"secret"`
	DatabaseID string        `yaml:"database_id"`
	TitleProp  string        `yaml:"title_prop"`
	DueProp    string        `yaml:"due_prop"`
	Version    string        `yaml:"version"`
	Timeout    time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full worker configuration.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Store   StoreConfig   `yaml:"store"`
	Worker  WorkerConfig  `yaml:"worker"`
	Retry   RetryConfig   `yaml:"retry"`
	LLM     LLMConfig     `yaml:"llm"`
	Notion  NotionConfig  `yaml:"notion"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			URL:       "redis://localhost:6379/0",
			QueueKey:  "queue:jobs",
			KeyPrefix: "job:",
		},
		Store: StoreConfig{
			Backend:   "redis",
			SQLiteDSN: "file:capturex.db",
			RecordTTL: 21600 * time.Second,
		},
		Worker: WorkerConfig{
			Count:      1,
			PopTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries: 2,
			BaseDelay:  1 * time.Second,
		},
		LLM: LLMConfig{
			PlanModel:       "gemini-2.5-flash",
			ResearchModel:   "gemini-2.5-pro",
			PlanTimeout:     60 * time.Second,
			ResearchTimeout: 600 * time.Second,
		},
		Notion: NotionConfig{
			TitleProp: "Name",
			Version:   "2022-06-28",
			Timeout:   30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LookupFunc reads an environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads path (if it exists) over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("REDIS_URL", &c.Redis.URL)
	str("STORE_BACKEND", &c.Store.Backend)
	str("SQLITE_DSN", &c.Store.SQLiteDSN)
	str("GEMINI_API_KEY", &c.LLM.APIKey)
	str("MODEL_PLAN", &c.LLM.PlanModel)
	str("MODEL_RESEARCH", &c.LLM.ResearchModel)
	str("NOTION_INTEGRATION_SECRET", &c.Notion.Secret)
	str("NOTION_DATABASE_ID", &c.Notion.DatabaseID)
	str("NOTION_TITLE_PROP", &c.Notion.TitleProp)
	str("NOTION_DUE_PROP", &c.Notion.DueProp)
	str("NOTION_VERSION", &c.Notion.Version)
	str("LOG_LEVEL", &c.Log.Level)
	str("METRICS_ADDR", &c.Metrics.Addr)

	if v, ok := lookup("JOB_TTL_SECONDS"); ok && v != "" {
		secs, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("JOB_TTL_SECONDS: %w", err)
		}
		c.Store.RecordTTL = time.Duration(secs) * time.Second
	}
	if v, ok := lookup("WORKERS"); ok && v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("WORKERS: %w", err)
		}
		c.Worker.Count = n
	}
	if v, ok := lookup("MAX_RETRIES"); ok && v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("MAX_RETRIES: %w", err)
		}
		c.Retry.MaxRetries = n
	}
	if v, ok := lookup("LLM_RATE_LIMIT"); ok && v != "" {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return fmt.Errorf("LLM_RATE_LIMIT: %w", err)
		}
		c.LLM.RateLimit = f
	}
	return nil
}

// Validate reports every missing or invalid value at once.
func (c *Config) Validate() error {
	var problems []string
	if c.LLM.APIKey == "" {
		problems = append(problems, "llm.api_key (GEMINI_API_KEY) is required")
	}
	if c.Notion.Secret == "" {
		problems = append(problems, "notion.secret (NOTION_INTEGRATION_SECRET) is required")
	}
	if c.Notion.DatabaseID == "" {
		problems = append(problems, "notion.database_id (NOTION_DATABASE_ID) is required")
	}
	problems = append(problems, c.validateQueue()...)
	if c.Worker.Count < 1 {
		problems = append(problems, "worker.count must be at least 1")
	}
	if c.Retry.MaxRetries < 0 {
		problems = append(problems, "retry.max_retries must not be negative")
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// ValidateQueue checks only what submitting and reading status needs.
func (c *Config) ValidateQueue() error {
	if problems := c.validateQueue(); len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateQueue() []string {
	var problems []string
	if c.Redis.URL == "" {
		problems = append(problems, "redis.url (REDIS_URL) is required")
	}
	switch c.Store.Backend {
	case "redis":
	case "sqlite":
		if c.Store.SQLiteDSN == "" {
			problems = append(problems, "store.sqlite_dsn is required for the sqlite backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.backend %q must be redis or sqlite", c.Store.Backend))
	}
	if c.Store.RecordTTL <= 0 {
		problems = append(problems, "store.record_ttl must be positive")
	}
	return problems
}
