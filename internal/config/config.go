// Package config loads the midisuite configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leandrodaf/midisuite/sdk/contracts"
	"github.com/leandrodaf/midisuite/sdk/midi"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the content of the YAML configuration file.
// Empty fields keep the SDK defaults.
type Config struct {
	ClientName    string `yaml:"client_name"`
	Manufacturer  string `yaml:"manufacturer"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LibraryDir    string `yaml:"library_dir"`
	CaptureBuffer int    `yaml:"capture_buffer"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Manufacturer:  midi.DefaultManufacturer,
		LogLevel:      "info",
		LibraryDir:    defaultLibraryDir(),
		CaptureBuffer: midi.DefaultCaptureBuffer,
	}
}

func defaultLibraryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".midisuite", "library")
	}
	return filepath.Join(home, ".midisuite", "library")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "midisuite.yaml"
	}
	return filepath.Join(dir, "midisuite", "config.yaml")
}

// Load reads the configuration at path. An empty path means DefaultPath,
// which may be missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, ok := contracts.ParseLogLevel(strings.ToLower(c.LogLevel)); !ok {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}
	if c.CaptureBuffer < 0 {
		return fmt.Errorf("%w: capture_buffer must not be negative", ErrInvalid)
	}
	if c.ClientName != "" && strings.TrimSpace(c.ClientName) == "" {
		return fmt.Errorf("%w: client_name is blank", ErrInvalid)
	}
	return nil
}

// Options converts the configuration into SDK options.
func (c *Config) Options() []contracts.Option {
	level, _ := contracts.ParseLogLevel(strings.ToLower(c.LogLevel))
	opts := []contracts.Option{contracts.WithLogLevel(level)}

	if c.ClientName != "" {
		opts = append(opts, contracts.WithClientName(c.ClientName))
	}
	if c.Manufacturer != "" {
		opts = append(opts, contracts.WithManufacturer(c.Manufacturer))
	}
	if c.LogFile != "" {
		opts = append(opts, contracts.WithLogFile(c.LogFile))
	}
	if c.CaptureBuffer > 0 {
		opts = append(opts, contracts.WithCaptureBuffer(c.CaptureBuffer))
	}
	return opts
}
