// CLAUDE:SUMMARY Service configuration: upstream endpoints, retry budget, per-data-class cache TTLs, YAML loading.
package archiviste

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TTLConfig sets the cache lifetime per data class. Archived content is
// immutable and cached longest; availability is the most volatile.
type TTLConfig struct {
	Availability time.Duration `yaml:"availability"`
	Snapshots    time.Duration `yaml:"snapshots"`
	Content      time.Duration `yaml:"content"`
	CDX          time.Duration `yaml:"cdx"`
	SiteURLs     time.Duration `yaml:"site_urls"`
}

// Config configures the Service.
type Config struct {
	// CachePath is the persisted cache file. Default: per-user config dir.
	CachePath string `yaml:"cache_path"`

	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxBytes   int64         `yaml:"max_bytes"`
	MaxRetries int           `yaml:"max_retries"`

	// Endpoint overrides, for tests and mirrors.
	AvailabilityURL string `yaml:"availability_url"`
	CDXURL          string `yaml:"cdx_url"`
	WebURL          string `yaml:"web_url"`

	TTL TTLConfig `yaml:"ttl"`
}

func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = "archiviste/1.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.TTL.Availability <= 0 {
		c.TTL.Availability = time.Hour
	}
	if c.TTL.Snapshots <= 0 {
		c.TTL.Snapshots = 24 * time.Hour
	}
	if c.TTL.Content <= 0 {
		c.TTL.Content = 7 * 24 * time.Hour
	}
	if c.TTL.CDX <= 0 {
		c.TTL.CDX = 12 * time.Hour
	}
	if c.TTL.SiteURLs <= 0 {
		c.TTL.SiteURLs = 6 * time.Hour
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archiviste: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("archiviste: parse config: %w", err)
	}
	cfg.defaults()
	return &cfg, nil
}
