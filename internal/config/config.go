package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"ttlcache-api/internal/cache"

	"gopkg.in/yaml.v3"
)

// Dispose sinks a namespace can fan its removals out to.
const (
	SinkJournal   = "journal"
	SinkBroadcast = "broadcast"
	SinkMetrics   = "metrics"
)

var knownSinks = []string{SinkJournal, SinkBroadcast, SinkMetrics}

// TTL is a cache TTL as written in config files: a Go duration string
// ("90s", "5m"), an integer number of milliseconds, or "never".
type TTL time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TTL) UnmarshalYAML(value *yaml.Node) error {
	raw := strings.TrimSpace(value.Value)
	switch strings.ToLower(raw) {
	case "":
		*t = 0
		return nil
	case "never", "infinite", "infinity":
		*t = TTL(cache.NoExpiration)
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms == 0 {
			*t = 0
			return nil
		}
		d, err := cache.MillisToTTL(ms)
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", raw, err)
		}
		*t = TTL(d)
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid ttl %q: %w", raw, err)
	}
	*t = TTL(d)
	return nil
}

// NamespaceConfig holds the cache options of one namespace.
type NamespaceConfig struct {
	TTL            TTL      `yaml:"ttl"`
	Max            int      `yaml:"max"`
	CheckAgeOnGet  bool     `yaml:"check_age_on_get"`
	UpdateAgeOnGet bool     `yaml:"update_age_on_get"`
	NoUpdateTTL    bool     `yaml:"no_update_ttl"`
	NoDisposeOnSet bool     `yaml:"no_dispose_on_set"`
	Dispose        []string `yaml:"dispose"`
}

// Validate checks the namespace against the cache constraints.
func (n NamespaceConfig) Validate() error {
	if n.TTL != 0 {
		if err := cache.ValidateTTL(time.Duration(n.TTL)); err != nil {
			return err
		}
	}
	if n.Max < 0 {
		return fmt.Errorf("%w: got %d", cache.ErrInvalidCapacity, n.Max)
	}
	for _, sink := range n.Dispose {
		if !slices.Contains(knownSinks, sink) {
			return fmt.Errorf("%w: unknown sink %q", cache.ErrInvalidDispose, sink)
		}
	}
	return nil
}

// Config is the service configuration.
type Config struct {
	Port       string                     `yaml:"port"`
	DBPath     string                     `yaml:"db_path"`
	LogLevel   string                     `yaml:"log_level"`
	Defaults   NamespaceConfig            `yaml:"defaults"`
	Namespaces map[string]NamespaceConfig `yaml:"namespaces"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:     ":8008",
		DBPath:   "ttlcache.db",
		LogLevel: "info",
		Defaults: NamespaceConfig{
			TTL:     TTL(5 * time.Minute),
			Max:     10000,
			Dispose: []string{SinkJournal, SinkBroadcast, SinkMetrics},
		},
		Namespaces: map[string]NamespaceConfig{},
	}
}

// Namespace returns the options for name, falling back to the defaults.
func (c Config) Namespace(name string) NamespaceConfig {
	if ns, ok := c.Namespaces[name]; ok {
		return ns
	}
	return c.Defaults
}

// Validate checks the defaults and every named namespace.
func (c Config) Validate() error {
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for name, ns := range c.Namespaces {
		if name == "" {
			return fmt.Errorf("namespace name must not be empty")
		}
		if err := ns.Validate(); err != nil {
			return fmt.Errorf("namespace %s: %w", name, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load builds the configuration from the defaults, the YAML file named by
// CONFIG_FILE (if any), and the PORT, DB_PATH and LOG_LEVEL variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over cfg, keeping values the document leaves out.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if cfg.Namespaces == nil {
		cfg.Namespaces = map[string]NamespaceConfig{}
	}
	return nil
}
