// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/carbon-relay/lib/capture"
)

// Config holds every relay setting.
type Config struct {
	// Listen configures the Carbon ingress.
	Listen ListenConfig `yaml:"listen"`

	// Destination configures the InfluxDB series endpoint.
	Destination DestinationConfig `yaml:"destination"`

	// Capture configures the optional batch capture file.
	Capture CaptureConfig `yaml:"capture"`

	// StatsInterval is how often relay counters are logged. Zero
	// disables the periodic log.
	StatsInterval time.Duration `yaml:"stats_interval"`

	// ShutdownTimeout bounds how long a stopping relay waits for
	// connection handlers to flush their batches.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ListenConfig configures the TCP listener.
type ListenConfig struct {
	// Host is the interface to bind. Default: 127.0.0.1
	Host string `yaml:"host"`

	// Port is normally set from the first positional argument.
	Port int `yaml:"port"`

	// ReuseAddress sets SO_REUSEADDR on the listening socket.
	// Default: true
	ReuseAddress bool `yaml:"reuse_address"`

	// IdleTimeout ends a connection that sends nothing for this long.
	// Whatever it already sent is still forwarded. Zero disables.
	// Default: 5m
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxLineBytes is the longest line accepted. A longer line ends
	// reading on that connection. Default: 65536
	MaxLineBytes int `yaml:"max_line_bytes"`
}

// DestinationConfig configures the database the relay writes to.
type DestinationConfig struct {
	// Host, Port, and Database are normally set from the second,
	// third, and fourth positional arguments.
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`

	// Username and Password are sent as the u and p query parameters.
	// Default: test / test
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// PasswordSealed is a base64 age ciphertext of the password. When
	// set it replaces Password and requires IdentityFile.
	PasswordSealed string `yaml:"password_sealed"`

	// IdentityFile holds the age identity that opens PasswordSealed.
	IdentityFile string `yaml:"identity_file"`

	// TimePrecision is sent as time_precision when non-empty
	// (s, m, or u for the 0.8 API).
	TimePrecision string `yaml:"time_precision"`

	// Timeout bounds each HTTP request. Zero disables. Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// SourceHostColumn adds a source_host column carrying the sender's
	// address to every record. Default: false
	SourceHostColumn bool `yaml:"source_host_column"`
}

// CaptureConfig configures the batch capture file.
type CaptureConfig struct {
	// Path of the capture file. Empty disables capture.
	Path string `yaml:"path"`

	// Compression is none, lz4, or zstd. Default: zstd
	Compression string `yaml:"compression"`
}

// Default returns the configuration of a relay started with only its
// positional arguments.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Host:         "127.0.0.1",
			ReuseAddress: true,
			IdleTimeout:  5 * time.Minute,
			MaxLineBytes: 64 * 1024,
		},
		Destination: DestinationConfig{
			Username: "test",
			Password: "test",
			Timeout:  30 * time.Second,
		},
		Capture: CaptureConfig{
			Compression: capture.CompressionZstd.String(),
		},
		StatsInterval:   time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadFile returns Default overlaid with the file at path. The result
// is not validated; callers apply their own overrides first and then
// call Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges one file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in the fields
// that commonly reference the environment.
func (c *Config) expandVariables() {
	c.Destination.Username = expandVars(c.Destination.Username)
	c.Destination.Password = expandVars(c.Destination.Password)
	c.Destination.PasswordSealed = expandVars(c.Destination.PasswordSealed)
	c.Destination.IdentityFile = expandVars(c.Destination.IdentityFile)
	c.Capture.Path = expandVars(c.Capture.Path)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks a fully merged configuration. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Listen.Host == "" {
		errs = append(errs, fmt.Errorf("listen.host is required"))
	}
	if err := checkPort("listen port", c.Listen.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Listen.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("listen.idle_timeout must not be negative"))
	}
	if c.Listen.MaxLineBytes < 64 {
		errs = append(errs, fmt.Errorf("listen.max_line_bytes must be at least 64, got %d", c.Listen.MaxLineBytes))
	}

	if c.Destination.Host == "" {
		errs = append(errs, fmt.Errorf("destination host is required"))
	}
	if err := checkPort("destination port", c.Destination.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Destination.Database == "" {
		errs = append(errs, fmt.Errorf("destination database is required"))
	}
	if c.Destination.PasswordSealed != "" && c.Destination.IdentityFile == "" {
		errs = append(errs, fmt.Errorf("destination.password_sealed requires destination.identity_file"))
	}
	if c.Destination.Timeout < 0 {
		errs = append(errs, fmt.Errorf("destination.timeout must not be negative"))
	}

	if _, err := capture.ParseCompression(c.Capture.Compression); err != nil {
		errs = append(errs, fmt.Errorf("capture.compression: %w", err))
	}

	if c.StatsInterval < 0 {
		errs = append(errs, fmt.Errorf("stats_interval must not be negative"))
	}
	if c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

func checkPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
