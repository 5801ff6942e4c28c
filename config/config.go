// Package config loads the YAML configuration file and threshold-history files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lucasjlepore/trainingload/load"
	"github.com/lucasjlepore/trainingload/logging"
	"github.com/lucasjlepore/trainingload/thresholds"
	"github.com/lucasjlepore/trainingload/training"
)

// Config is the on-disk configuration. Fields left out of the file keep their defaults.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Load       load.Constants   `yaml:"load"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Storage    StorageConfig    `yaml:"storage"`
	Output     OutputConfig     `yaml:"output"`
}

type LogConfig struct {
	Mode  string `yaml:"mode"`  // development|production
	Level string `yaml:"level"` // debug|info|warn|error
}

type ThresholdsConfig struct {
	PreferUserOverride bool `yaml:"prefer_user_override"`
	// File is an optional YAML threshold history loaded by the CLI.
	File string `yaml:"file"`
}

type StorageConfig struct {
	// Path of the SQLite database. Empty disables persistence. Supports ~ expansion.
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Format string `yaml:"format"` // parquet|csv
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:        LogConfig{Mode: "development", Level: "info"},
		Load:       load.DefaultConstants(),
		Thresholds: ThresholdsConfig{PreferUserOverride: true},
		Output:     OutputConfig{Format: "parquet"},
	}
}

// Load reads path over the defaults. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enumerated fields and the load constants.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Mode) {
	case "", "dev", "development", "prod", "production":
	default:
		return fmt.Errorf("log.mode %q must be development or production", c.Log.Mode)
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "parquet", "csv":
	default:
		return fmt.Errorf("output.format %q must be parquet or csv", c.Output.Format)
	}
	return c.Load.Validate()
}

// Logger builds the configured logger.
func (c *Config) Logger() (*logging.Logger, error) {
	return logging.New(c.Log.Mode, c.Log.Level)
}

// Resolver returns the threshold resolver the configuration describes.
func (c *Config) Resolver() thresholds.Resolver {
	return thresholds.Resolver{PreferUserOverride: c.Thresholds.PreferUserOverride}
}

// StoragePath returns the database path with ~ expanded, or "" when persistence is off.
func (c *Config) StoragePath() string {
	return ExpandPath(strings.TrimSpace(c.Storage.Path))
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// LoadThresholds reads a YAML list of threshold records. Sports are normalized, every
// record is validated and no two records may share (athlete, sport, effective_date).
func LoadThresholds(path string) ([]training.AthleteThreshold, error) {
	f, err := os.Open(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("open thresholds: %w", err)
	}
	defer f.Close()
	return DecodeThresholds(f)
}

// DecodeThresholds is LoadThresholds over an open reader.
func DecodeThresholds(r io.Reader) ([]training.AthleteThreshold, error) {
	var records []training.AthleteThreshold
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	for i := range records {
		records[i].Sport = training.NormalizeSport(string(records[i].Sport))
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("threshold record %d: %w", i, err)
		}
	}
	if err := thresholds.CheckHistory(records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadRecovery reads a YAML list of per-day recovery markers.
func LoadRecovery(path string) ([]load.Recovery, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("read recovery: %w", err)
	}
	var markers []load.Recovery
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&markers); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse recovery %s: %w", path, err)
	}
	return markers, nil
}
