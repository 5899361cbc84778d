package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	NATS    NATSConfig    `yaml:"nats"`
	Agenda  AgendaConfig  `yaml:"agenda"`
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig points at the dashboard REST backend serving the calendar
// endpoints.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures the optional refresh-notification bridge. An empty
// URL disables the bridge entirely.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type AgendaConfig struct {
	MaxEntries      int           `yaml:"max_entries"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend URL is required")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 30 * time.Second
	}

	if c.NATS.URL != "" && c.NATS.Subject == "" {
		c.NATS.Subject = "dashboard.refresh"
	}

	if c.Agenda.MaxEntries < 0 {
		return fmt.Errorf("agenda max_entries must not be negative")
	}
	if c.Agenda.MaxEntries == 0 {
		c.Agenda.MaxEntries = 15
	}
	if c.Agenda.RefreshInterval < 0 {
		return fmt.Errorf("agenda refresh_interval must not be negative")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	return nil
}
