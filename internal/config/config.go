// Package config provides configuration loading and validation for stampede.
// It reads scan defaults from a YAML file so operators don't repeat the same
// flags on every invocation; any flag set on the command line overrides the
// file value.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/stampede/internal/dnsquery"
	"github.com/lc/stampede/internal/engine"
	"github.com/lc/stampede/internal/filesys"
	"github.com/lc/stampede/internal/output"
)

var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNoConfig is returned when the configuration file is not found.
	ErrNoConfig = errors.New("configuration file not found")
)

const (
	// DefaultConfigPath is the default path for the configuration file,
	// relative to the user's home directory.
	DefaultConfigPath = ".stampede/config.yaml"
	// DefaultTimeout is the default per-sub-query timeout.
	DefaultTimeout = 2 * time.Second
	// DefaultConcurrency is the default ceiling on in-flight candidates.
	DefaultConcurrency = 100
	// DefaultRecordType is the default DNS record type to query.
	DefaultRecordType = "A"
	// DefaultPolicy is the default resolver assignment policy.
	DefaultPolicy = string(engine.PolicyRoundRobin)
	// DefaultFormat is the default output format.
	DefaultFormat = string(output.FormatText)
)

// Config holds the application configuration.
type Config struct {
	Scan ScanConfig `yaml:"scan"`
}

// ScanConfig holds scan defaults.
type ScanConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	RecordType  string        `yaml:"record_type"`
	Policy      string        `yaml:"policy"`
	QPS         int           `yaml:"qps"`
	Format      string        `yaml:"format"`
}

// Provider defines the interface for loading configuration.
type Provider interface {
	Load() (*Config, error)
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
}

// Verify FSProvider implements Provider interface.
var _ Provider = (*FSProvider)(nil)

// New creates a new configuration provider using the default configuration path.
// If the home directory cannot be determined, it falls back to the current directory.
func New() Provider {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	return NewWithPath(filesys.OS(), filepath.Join(home, DefaultConfigPath))
}

// NewWithPath creates a new provider with a specific config path.
// It allows specifying both the filesystem implementation and the path to use.
func NewWithPath(fs filesys.ReadWriteFS, path string) Provider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns a default configuration with preset values.
// This is used when no configuration file exists.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Timeout:     DefaultTimeout,
			Concurrency: DefaultConcurrency,
			RecordType:  DefaultRecordType,
			Policy:      DefaultPolicy,
			Format:      DefaultFormat,
		},
	}
}

// Load loads the configuration from the specified path. A missing file is
// not an error; defaults are returned instead.
func (p *FSProvider) Load() (*Config, error) {
	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// applyDefaults fills fields the file left unset, so a partial config file
// only overrides what it names.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Scan.Timeout == 0 {
		c.Scan.Timeout = def.Scan.Timeout
	}
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = def.Scan.Concurrency
	}
	if c.Scan.RecordType == "" {
		c.Scan.RecordType = def.Scan.RecordType
	}
	if c.Scan.Policy == "" {
		c.Scan.Policy = def.Scan.Policy
	}
	if c.Scan.Format == "" {
		c.Scan.Format = def.Scan.Format
	}
}

// Validate checks the configuration to ensure all fields hold usable values.
func (c *Config) Validate() error {
	if c.Scan.Timeout < 100*time.Millisecond {
		return errors.New("timeout must be at least 100ms")
	}
	if c.Scan.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if _, err := dnsquery.ParseRecordType(c.Scan.RecordType); err != nil {
		return err
	}
	if _, err := engine.ParsePolicy(c.Scan.Policy); err != nil {
		return err
	}
	if _, err := output.ParseFormat(c.Scan.Format); err != nil {
		return err
	}
	if c.Scan.QPS < 0 {
		return errors.New("qps cannot be negative")
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config file: %w", err)
	}

	return &cfg, nil
}
