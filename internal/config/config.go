package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeMemory  = "memory"
	ModeSharded = "sharded"
	ModeRedis   = "redis"
	ModeLFU     = "lfu"
	ModeARC     = "arc"
)

type Config struct {
	Port     string `json:"port" yaml:"port"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	AdminToken string `json:"admin_token" yaml:"admin_token"`

	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
	RedisPrefix   string `json:"redis_prefix" yaml:"redis_prefix"`

	SnapshotIntervalSeconds int `json:"snapshot_interval_seconds" yaml:"snapshot_interval_seconds"`
	StreamIntervalMs        int `json:"stream_interval_ms" yaml:"stream_interval_ms"`
	StreamMaxClients        int `json:"stream_max_clients" yaml:"stream_max_clients"`

	Caches []CacheConfig `json:"caches" yaml:"caches"`
}

// CacheConfig describes one observed cache.
type CacheConfig struct {
	Name         string `json:"name" yaml:"name"`
	Mode         string `json:"mode" yaml:"mode"`
	Size         int    `json:"size" yaml:"size"`
	Shards       int    `json:"shards" yaml:"shards"`
	TTLSeconds   int    `json:"ttl_seconds" yaml:"ttl_seconds"`
	StaleSeconds int    `json:"stale_seconds" yaml:"stale_seconds"`
	RedisPrefix  string `json:"redis_prefix" yaml:"redis_prefix"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c CacheConfig) StaleTTL() time.Duration {
	return time.Duration(c.StaleSeconds) * time.Second
}

func Load(path string) (*Config, string, error) {
	resolvedPath, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(resolvedPath))
	if err != nil {
		return nil, "", err
	}
	return cfg, resolvedPath, nil
}

// Parse decodes data according to ext (".json", ".yaml" or ".yml") and
// applies defaults.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Config{}
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension: %s", ext)
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		return path, nil
	}

	candidates := []string{"config.json", "config.yaml", "config.yml"}
	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", errors.New("config.json/config.yaml/config.yml not found")
}

func ApplyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "3002"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AdminToken == "" {
		slog.Warn("admin_token is empty, flush endpoints are open to everyone")
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "cachestats:"
	}
	if cfg.SnapshotIntervalSeconds == 0 {
		cfg.SnapshotIntervalSeconds = 60
	}
	if cfg.StreamIntervalMs == 0 {
		cfg.StreamIntervalMs = 2000
	}
	if cfg.StreamMaxClients == 0 {
		cfg.StreamMaxClients = 16
	}

	if len(cfg.Caches) == 0 {
		cfg.Caches = []CacheConfig{{Name: "default"}}
	}
	for i := range cfg.Caches {
		c := &cfg.Caches[i]
		if c.Mode == "" {
			c.Mode = ModeMemory
		}
		c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
		if c.Size == 0 {
			c.Size = 256
		}
		if c.TTLSeconds == 0 {
			c.TTLSeconds = 3600
		}
		if c.Mode == ModeSharded && c.Shards == 0 {
			c.Shards = 16
		}
		if c.Mode == ModeRedis && c.RedisPrefix == "" {
			c.RedisPrefix = cfg.RedisPrefix + "cache:" + c.Name + ":"
		}
	}
}

// Validate rejects cache definitions the server cannot build.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Caches))
	for _, cc := range c.Caches {
		if strings.TrimSpace(cc.Name) == "" {
			return errors.New("cache name is required")
		}
		if seen[cc.Name] {
			return fmt.Errorf("duplicate cache name: %s", cc.Name)
		}
		seen[cc.Name] = true
		switch cc.Mode {
		case ModeMemory, ModeSharded, ModeLFU, ModeARC:
		case ModeRedis:
			if c.RedisAddr == "" {
				return fmt.Errorf("cache %s: redis mode needs redis_addr", cc.Name)
			}
		default:
			return fmt.Errorf("cache %s: unknown mode %q", cc.Name, cc.Mode)
		}
	}
	return nil
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

func (c *Config) StreamInterval() time.Duration {
	return time.Duration(c.StreamIntervalMs) * time.Millisecond
}

// SlogLevel maps log_level onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
