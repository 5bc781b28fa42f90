// Package config loads and validates the RACS configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/racs-io/racs/internal/circuit"
	"github.com/racs-io/racs/internal/coordination"
)

// ReadPolicy selects how GET chooses repositories.
type ReadPolicy string

const (
	// PolicyLatency queries every active repository; the k fastest win.
	PolicyLatency ReadPolicy = "latency"
	// PolicyBandwidth starts only k transfers, falling over to the
	// remaining repositories as transfers fail.
	PolicyBandwidth ReadPolicy = "bandwidth"
)

// Config is the complete server configuration.
type Config struct {
	RACS         RACSConfig          `yaml:"racs"`
	Repositories []RepositoryConfig  `yaml:"repositories"`
	Zookeeper    coordination.Config `yaml:"zookeeper"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	Breaker      circuit.Config      `yaml:"circuit_breaker"`
}

// RACSConfig holds the core section.
type RACSConfig struct {
	K    int    `yaml:"k"`
	M    int    `yaml:"m"` // 0 means "use the repository count"
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadPolicy               ReadPolicy    `yaml:"read_policy"`
	VerifyListingsConsistent bool          `yaml:"verify_listings_consistent"`
	LogFile                  string        `yaml:"logfile"`
	RecordStats              bool          `yaml:"record_stats"`
	HeadCacheTTL             time.Duration `yaml:"head_cache_ttl"`
	DisableHeadCache         bool          `yaml:"disable_head_cache"`
	WorkerPoolSize           int           `yaml:"worker_pool_size"`
}

// RepositoryConfig declares one backend.
type RepositoryConfig struct {
	Name    string                 `yaml:"name"`
	Class   string                 `yaml:"class"`
	Active  bool                   `yaml:"active"`
	Options map[string]interface{} `yaml:"options"`
}

// MetricsConfig controls the statistics surface.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // optional standalone /metrics listener
}

// NewDefault returns a configuration with sensible defaults; the
// repository list must come from the file.
func NewDefault() *Config {
	return &Config{
		RACS: RACSConfig{
			// K has no default: the erasure parameter must be chosen
			// deliberately, and Validate rejects a missing one.
			Host:           "0.0.0.0",
			Port:           8000,
			ReadPolicy:     PolicyLatency,
			RecordStats:    true,
			HeadCacheTTL:   5 * time.Minute,
			WorkerPoolSize: 15,
		},
		Zookeeper: coordination.DefaultConfig(),
		Metrics:   MetricsConfig{Enabled: true},
	}
}

// Load reads the file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := NewDefault()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the erasure layer depends on. A failure
// here must abort startup.
func (c *Config) Validate() error {
	known := map[string]bool{
		"FSRepository": true,
		"S3Repository": true,
		"RSRepository": true,
	}

	n := len(c.Repositories)
	if n == 0 {
		return fmt.Errorf("no repositories configured")
	}
	seen := make(map[string]bool, n)
	for _, rc := range c.Repositories {
		if rc.Name == "" {
			return fmt.Errorf("repository with empty name")
		}
		if seen[rc.Name] {
			return fmt.Errorf("duplicate repository name %q", rc.Name)
		}
		seen[rc.Name] = true
		if !known[rc.Class] {
			return fmt.Errorf("repository %q: unknown class %q", rc.Name, rc.Class)
		}
	}

	k, m := c.RACS.K, c.RACS.M
	if m == 0 {
		m = n
	}
	if k < 1 {
		return fmt.Errorf("k must be at least 1, got %d", k)
	}
	// Writing m shares of which k are required tolerates m-k failures;
	// k == m would tolerate none, so at least one parity share is
	// mandatory.
	if k > m-1 {
		return fmt.Errorf("k (%d) can be at most %d with %d shares", k, m-1, m)
	}
	if m > 256 {
		return fmt.Errorf("m must be at most 256, got %d", m)
	}
	if m > n {
		return fmt.Errorf("m (%d) exceeds the configured repository count (%d)", m, n)
	}

	switch c.RACS.ReadPolicy {
	case PolicyLatency, PolicyBandwidth:
	default:
		return fmt.Errorf("unknown read_policy %q", c.RACS.ReadPolicy)
	}

	if c.RACS.Port <= 0 || c.RACS.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.RACS.Port)
	}
	return nil
}

// EffectiveM resolves the m parameter against the repository count.
func (c *Config) EffectiveM() int {
	if c.RACS.M > 0 {
		return c.RACS.M
	}
	return len(c.Repositories)
}
