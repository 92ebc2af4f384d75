// Package config loads ~/.config/imlog/config.toml.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/segment"
)

type Config struct {
	YahooRoot  string `toml:"yahoo_root"`
	DigsbyRoot string `toml:"digsby_root"`
	DBPath     string `toml:"db_path"`

	// Workers is the number of archive files analysed concurrently.
	Workers int `toml:"workers"`
	// DigsbyGap is the silence that starts a new Digsby conversation.
	DigsbyGap string `toml:"digsby_gap"`
	// ConferenceMinSpeakers: a Digsby conversation with more speakers is a
	// conference. Zero flags every conversation.
	ConferenceMinSpeakers int    `toml:"conference_min_speakers"`
	LogLevel              string `toml:"log_level"`

	gap   time.Duration
	level slog.Level
}

// Load reads the configuration file named by $IMLOG_CONFIG, or the
// default one under the home directory. A missing file yields defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	cfgPath := os.Getenv("IMLOG_CONFIG")
	if cfgPath == "" {
		cfgPath = filepath.Join(home, ".config", "imlog", "config.toml")
	}
	return LoadFile(cfgPath, home)
}

// LoadFile decodes cfgPath over the defaults, expanding ~/ against home.
func LoadFile(cfgPath, home string) (*Config, error) {
	cfg := &Config{
		YahooRoot:             filepath.Join(home, "Yahoo", "Profiles"),
		DigsbyRoot:            filepath.Join(home, "Digsby Logs"),
		DBPath:                filepath.Join(home, ".config", "imlog", "imlog.db"),
		Workers:               1,
		DigsbyGap:             segment.DefaultGap.String(),
		ConferenceMinSpeakers: segment.DefaultConferenceMinSpeakers,
		LogLevel:              "info",
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	// expand ~ in paths
	cfg.YahooRoot = expandHome(cfg.YahooRoot, home)
	cfg.DigsbyRoot = expandHome(cfg.DigsbyRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	gap, err := time.ParseDuration(c.DigsbyGap)
	if err != nil {
		return fmt.Errorf("digsby_gap: %w", err)
	}
	if gap <= 0 {
		return fmt.Errorf("digsby_gap: must be positive, got %s", c.DigsbyGap)
	}
	c.gap = gap

	if c.Workers < 0 {
		return fmt.Errorf("workers: must not be negative, got %d", c.Workers)
	}
	if c.ConferenceMinSpeakers < 0 {
		return fmt.Errorf("conference_min_speakers: must not be negative, got %d", c.ConferenceMinSpeakers)
	}
	if err := c.level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Policy returns the Digsby segmentation settings.
func (c *Config) Policy() segment.Policy {
	return segment.Policy{Gap: c.gap, ConferenceMinSpeakers: c.ConferenceMinSpeakers}
}

func (c *Config) Level() slog.Level { return c.level }

// Root returns the archive root configured for a format.
func (c *Config) Root(f parse.Format) string {
	switch f {
	case parse.FormatYahoo:
		return c.YahooRoot
	case parse.FormatDigsby:
		return c.DigsbyRoot
	}
	return ""
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
