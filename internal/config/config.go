// Package config loads and validates the chat streaming service
// configuration: server settings, the model catalog, tier access lists and
// provider credentials.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig              `koanf:"server"`
	Logging   LoggingConfig             `koanf:"logging"`
	Metrics   MetricsConfig             `koanf:"metrics"`
	Session   SessionConfig             `koanf:"session"`
	Cache     CacheConfig               `koanf:"cache"`
	Database  DatabaseConfig            `koanf:"database"`
	Providers map[string]ProviderConfig `koanf:"providers"`
	Models    []ModelConfig             `koanf:"models"`
	Tiers     TiersConfig               `koanf:"tiers"`
}

type ServerConfig struct {
	BindAddr        string        `koanf:"bind_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowAnyOrigin  bool          `koanf:"allow_any_origin"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type MetricsConfig struct {
	Namespace string `koanf:"namespace"`
}

type SessionConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type CacheConfig struct {
	Backend     string        `koanf:"backend"` // memory | redis
	RedisAddr   string        `koanf:"redis_addr"`
	ResponseTTL time.Duration `koanf:"response_ttl"`
}

type DatabaseConfig struct {
	URL string `koanf:"url"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// ModelConfig is one catalog entry. Vendor selects the provider adapter.
type ModelConfig struct {
	ID          string `koanf:"id"`
	Vendor      string `koanf:"vendor"`
	DisplayName string `koanf:"display_name"`
}

// TiersConfig declares the tier order (lowest first) and each tier's curated
// model list. Higher tiers inherit lower tiers' lists.
type TiersConfig struct {
	Order  []string            `koanf:"order"`
	Models map[string][]string `koanf:"models"`
}

// Load reads the YAML config file and layers WHALLI_-prefixed environment
// variables on top. Double underscore nests: WHALLI_SERVER__BIND_ADDR maps
// to server.bind_addr.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	if err := k.Load(env.Provider("WHALLI_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "WHALLI_")),
			"__", ".",
		)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} placeholders in provider API keys so secrets stay out of
	// the YAML file.
	for name, p := range cfg.Providers {
		if strings.HasPrefix(p.APIKey, "${") && strings.HasSuffix(p.APIKey, "}") {
			p.APIKey = os.Getenv(p.APIKey[2 : len(p.APIKey)-1])
			cfg.Providers[name] = p
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.BindAddr == "" {
		c.Server.BindAddr = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "whalli_chat"
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 10 * time.Minute
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.ResponseTTL <= 0 {
		c.Cache.ResponseTTL = time.Hour
	}
	if len(c.Tiers.Order) == 0 {
		c.Tiers.Order = []string{"free", "basic", "pro", "enterprise"}
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Cache.Backend) {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("at least one model must be declared")
	}
	catalog := make(map[string]struct{}, len(c.Models))
	for _, m := range c.Models {
		if strings.TrimSpace(m.ID) == "" {
			return fmt.Errorf("model entries require an id")
		}
		if strings.TrimSpace(m.Vendor) == "" {
			return fmt.Errorf("model %q requires a vendor", m.ID)
		}
		if _, dup := catalog[m.ID]; dup {
			return fmt.Errorf("duplicate model id %q", m.ID)
		}
		catalog[m.ID] = struct{}{}
	}

	order := make(map[string]struct{}, len(c.Tiers.Order))
	for _, t := range c.Tiers.Order {
		order[t] = struct{}{}
	}
	for tier, models := range c.Tiers.Models {
		if _, known := order[tier]; !known {
			return fmt.Errorf("tier %q is not listed in tiers.order", tier)
		}
		for _, id := range models {
			if _, known := catalog[id]; !known {
				return fmt.Errorf("tier %q lists unknown model %q", tier, id)
			}
		}
	}
	return nil
}

// Catalog indexes the model list by ID.
func (c *Config) Catalog() map[string]ModelConfig {
	out := make(map[string]ModelConfig, len(c.Models))
	for _, m := range c.Models {
		out[m.ID] = m
	}
	return out
}

// Vendors returns the distinct vendor names the catalog references.
func (c *Config) Vendors() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range c.Models {
		if _, ok := seen[m.Vendor]; ok {
			continue
		}
		seen[m.Vendor] = struct{}{}
		out = append(out, m.Vendor)
	}
	return out
}
