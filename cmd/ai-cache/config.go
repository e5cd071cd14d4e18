package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/always-cache/ai-cache/cache"
	"github.com/always-cache/ai-cache/classifier"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		Origin string `yaml:"origin"`
	} `yaml:"server"`

	Cache struct {
		Provider string `yaml:"provider"`
		Path     string `yaml:"path"`
		// how often expired records are purged from disk providers
		SweepEvery string `yaml:"sweepEvery"`
		Valkey     struct {
			Address  string `yaml:"address"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"valkey"`
	} `yaml:"cache"`

	Classifier struct {
		Backend   string `yaml:"backend"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"apiKey"`
		BaseURL   string `yaml:"baseURL"`
		AccountID string `yaml:"accountID"`
		Verdict   string `yaml:"verdict"`
	} `yaml:"classifier"`

	Coalesce   bool   `yaml:"coalesce"`
	StatsEvery string `yaml:"statsEvery"`

	// compiled
	sweepEvery time.Duration
	statsEvery time.Duration
}

func defaultConfig() Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Cache.Provider = cache.ProviderSQLite
	cfg.Cache.Path = "cache.db"
	cfg.Cache.SweepEvery = "10m"
	cfg.Classifier.Backend = classifier.BackendOpenAI
	return cfg
}

// LoadConfig reads the YAML file at path on top of the defaults.
// An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv fills the classifier API key from the environment when the
// config does not carry one.
func (c *Config) applyEnv() {
	if c.Classifier.APIKey != "" {
		return
	}
	switch c.Classifier.Backend {
	case classifier.BackendOpenAI, classifier.BackendWorkersAI:
		c.Classifier.APIKey = os.Getenv("OPENAI_API_KEY")
	case classifier.BackendGemini:
		c.Classifier.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

func (c *Config) validate() error {
	if c.Server.Origin == "" {
		return fmt.Errorf("server.origin is required")
	}
	if !strings.HasPrefix(c.Server.Origin, "http://") && !strings.HasPrefix(c.Server.Origin, "https://") {
		return fmt.Errorf("server.origin must be an http(s) URL, got %q", c.Server.Origin)
	}
	c.Server.Origin = strings.TrimRight(c.Server.Origin, "/")
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	switch c.Cache.Provider {
	case cache.ProviderMemory, cache.ProviderValkey:
	case cache.ProviderSQLite, cache.ProviderBolt, cache.ProviderLevelDB:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path is required for the %s provider", c.Cache.Provider)
		}
	default:
		return fmt.Errorf("cache.provider: unsupported provider %q", c.Cache.Provider)
	}
	if c.Cache.Provider == cache.ProviderValkey && c.Cache.Valkey.Address == "" {
		return fmt.Errorf("cache.valkey.address is required for the valkey provider")
	}

	var err error
	if c.sweepEvery, err = parseInterval(c.Cache.SweepEvery); err != nil {
		return fmt.Errorf("cache.sweepEvery: %w", err)
	}
	if c.statsEvery, err = parseInterval(c.StatsEvery); err != nil {
		return fmt.Errorf("statsEvery: %w", err)
	}
	return nil
}

func parseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative interval %s", s)
	}
	return d, nil
}

func (c Config) cacheOptions() cache.Options {
	return cache.Options{
		Provider: c.Cache.Provider,
		Path:     c.Cache.Path,
		Valkey: cache.ValkeyConfig{
			Address:  c.Cache.Valkey.Address,
			Password: c.Cache.Valkey.Password,
			DB:       c.Cache.Valkey.DB,
		},
	}
}

func (c Config) backendConfig() classifier.BackendConfig {
	return classifier.BackendConfig{
		Backend:   c.Classifier.Backend,
		Model:     c.Classifier.Model,
		APIKey:    c.Classifier.APIKey,
		BaseURL:   c.Classifier.BaseURL,
		AccountID: c.Classifier.AccountID,
		Verdict:   c.Classifier.Verdict,
	}
}
