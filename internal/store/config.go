package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode           string `yaml:"mode"`            // PREVIEW or COMMIT
	DBPath         string `yaml:"db_path"`         // SQLite database file
	MoneyPrecision int32  `yaml:"money_precision"` // decimal places for fees and P&L

	Log struct {
		RetentionDays int `yaml:"retention_days"` // gzip run logs older than this
	} `yaml:"log"`

	Warnings struct {
		// FlagDanglingShorts surfaces shorts that survive the whole stream
		// with no cover activity as run warnings.
		FlagDanglingShorts bool `yaml:"flag_dangling_shorts"`
	} `yaml:"warnings"`
}

func (c *Config) Validate() error {
	if c.Mode != "PREVIEW" && c.Mode != "COMMIT" {
		return fmt.Errorf("invalid mode '%s': must be 'PREVIEW' or 'COMMIT'", c.Mode)
	}
	if c.DBPath == "" {
		return errors.New("db_path cannot be empty")
	}
	if c.MoneyPrecision < 0 || c.MoneyPrecision > 8 {
		return fmt.Errorf("money_precision must be between 0-8, got %d", c.MoneyPrecision)
	}
	if c.Log.RetentionDays < 0 {
		return fmt.Errorf("log.retention_days cannot be negative, got %d", c.Log.RetentionDays)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Mode == "" {
		c.Mode = "PREVIEW"
	}
	if c.MoneyPrecision == 0 {
		c.MoneyPrecision = 2
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
