package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/store"
)

const (
	DefaultAddr            = ":8080"
	DefaultUpstreamTimeout = 15 * time.Second
	DefaultSweepSchedule   = "@every 6h"

	// MinSigningKeyLength is the minimum length of the admin HS256 key.
	MinSigningKeyLength = 32
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Store     store.Config     `yaml:"store"`
	Renewal   RenewalConfig    `yaml:"renewal"`
	Audit     AuditConfig      `yaml:"audit"`
	Admin     AdminConfig      `yaml:"admin"`
	Platforms []PlatformConfig `yaml:"platforms"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// UpstreamTimeout bounds every single call to a platform.
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
}

type RenewalConfig struct {
	// StrictThreshold is used for single-token auto-renew checks.
	StrictThreshold time.Duration `yaml:"strict_threshold"`

	// BatchThreshold is used by the renewal sweep.
	BatchThreshold time.Duration `yaml:"batch_threshold"`

	Sweep SweepConfig `yaml:"sweep"`
}

type SweepConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 6h" or "0 */6 * * *"
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

type AdminConfig struct {
	// SigningKey is the HS256 key admin JWTs are signed with.
	// The admin API is disabled if empty.
	SigningKey string `yaml:"signing_key"`
}

// PlatformConfig holds configuration for one upstream platform client.
type PlatformConfig struct {
	Type   string         `yaml:"type"`   // e.g., "whatsapp", "instagram"
	Config map[string]any `yaml:"config"` // decoded by the platform client
}

// LoadDotEnv loads environment variables from the given .env files.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses the configuration file at the given path.
// ${VAR} references are expanded from the environment before parsing.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.UpstreamTimeout == 0 {
		c.Server.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if c.Store.Type == "" {
		c.Store.Type = store.TypeMemory
	}
	if c.Store.Capacity == 0 {
		c.Store.Capacity = store.DefaultCapacity
	}
	if c.Renewal.StrictThreshold == 0 {
		c.Renewal.StrictThreshold = time.Hour
	}
	if c.Renewal.BatchThreshold == 0 {
		c.Renewal.BatchThreshold = 24 * time.Hour
	}
	if c.Renewal.Sweep.Schedule == "" {
		c.Renewal.Sweep.Schedule = DefaultSweepSchedule
	}
	if c.Audit.Enabled && c.Audit.Type == "" {
		c.Audit.Type = "memory"
	}
}

func (c *Config) Validate() error {
	seen := make(map[string]struct{})
	for idx, p := range c.Platforms {
		if p.Type == "" {
			return fmt.Errorf("platform at index %d has empty type", idx)
		}
		if _, err := core.ParsePlatform(p.Type); err != nil {
			return fmt.Errorf("platform at index %d: %w", idx, err)
		}
		if _, ok := seen[p.Type]; ok {
			return fmt.Errorf("platform '%s' is configured more than once", p.Type)
		}
		seen[p.Type] = struct{}{}
	}

	if c.Server.UpstreamTimeout < 0 {
		return fmt.Errorf("server.upstream_timeout must not be negative")
	}

	switch c.Store.Type {
	case store.TypeMemory:
	case store.TypeRedis:
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown store type '%s'", c.Store.Type)
	}
	if c.Store.Capacity < 0 {
		return fmt.Errorf("store.capacity must be positive")
	}

	if c.Renewal.StrictThreshold < 0 || c.Renewal.BatchThreshold < 0 {
		return fmt.Errorf("renewal thresholds must be positive")
	}
	if c.Renewal.Sweep.Enabled {
		if _, err := cron.ParseStandard(c.Renewal.Sweep.Schedule); err != nil {
			return fmt.Errorf("invalid renewal.sweep.schedule '%s': %w", c.Renewal.Sweep.Schedule, err)
		}
	}

	if c.Audit.Enabled {
		switch c.Audit.Type {
		case "memory":
		case "file":
			if c.Audit.Path == "" {
				return fmt.Errorf("audit.path is required for the file auditor")
			}
		default:
			return fmt.Errorf("unknown audit type '%s'", c.Audit.Type)
		}
	}

	if c.Admin.SigningKey != "" && len(c.Admin.SigningKey) < MinSigningKeyLength {
		return fmt.Errorf("admin.signing_key must be at least %d characters", MinSigningKeyLength)
	}

	return nil
}
