package io

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/deadliner/internal/model"
)

// ConfigYAMLRepository loads daemon configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads a daemon configuration from a YAML file and returns a validated domain model.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string) (model.DaemonConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.DaemonConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.DaemonConfig{}, ctx.Err()
	}

	var cfg DaemonConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.DaemonConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return model.DaemonConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.toModel(), nil
}

// DaemonConfig represents the YAML structure for daemon configuration.
type DaemonConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	DBPath   string         `yaml:"db_path"`
	Checks   ChecksConfig   `yaml:"checks"`
}

// TelegramConfig represents the YAML structure for the Telegram transport.
type TelegramConfig struct {
	Token       string   `yaml:"token"`
	PollTimeout duration `yaml:"poll_timeout"`
}

// ChecksConfig represents the YAML structure for checkpoint behavior.
type ChecksConfig struct {
	OnNoResponse    string   `yaml:"on_no_response"`
	NoResponseGrace duration `yaml:"no_response_grace"`
}

// duration unmarshals Go duration strings ("30s", "1h") from YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = duration(parsed)
	return nil
}

const (
	defaultPollTimeout     = 30 * time.Second
	defaultNoResponseGrace = time.Hour
)

func (c DaemonConfig) validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram poll_timeout can't be negative, got: %s", time.Duration(c.Telegram.PollTimeout))
	}

	switch c.Checks.OnNoResponse {
	case "", string(model.NoResponseWait), string(model.NoResponseFail):
	default:
		return fmt.Errorf("on_no_response must be %q or %q, got: %q", model.NoResponseWait, model.NoResponseFail, c.Checks.OnNoResponse)
	}

	if c.Checks.NoResponseGrace < 0 {
		return fmt.Errorf("no_response_grace can't be negative, got: %s", time.Duration(c.Checks.NoResponseGrace))
	}

	return nil
}

func (c DaemonConfig) toModel() model.DaemonConfig {
	cfg := model.DaemonConfig{
		TelegramToken:    c.Telegram.Token,
		PollTimeout:      time.Duration(c.Telegram.PollTimeout),
		DBPath:           c.DBPath,
		NoResponsePolicy: model.NoResponsePolicy(c.Checks.OnNoResponse),
		NoResponseGrace:  time.Duration(c.Checks.NoResponseGrace),
	}

	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.NoResponsePolicy == "" {
		cfg.NoResponsePolicy = model.NoResponseWait
	}
	if cfg.NoResponseGrace == 0 {
		cfg.NoResponseGrace = defaultNoResponseGrace
	}

	return cfg
}
