// Package config loads doclink settings with viper.
//
// Precedence (lowest to highest): defaults, <root>/.doclink/config.toml,
// an explicit --config file, DOCLINK_* environment variables. Keys use dot
// notation; the environment form replaces dots with underscores, so
// storage.driver is DOCLINK_STORAGE_DRIVER.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix.
const EnvPrefix = "DOCLINK"

// FileName is the project config file name inside the state directory.
const FileName = "config.toml"

// Config is the full doclink configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage" toml:"storage"`
	Spool   SpoolConfig   `mapstructure:"spool" toml:"spool"`
	HTTP    HTTPConfig    `mapstructure:"http" toml:"http"`
	Log     LogConfig     `mapstructure:"log" toml:"log"`
	Samples SamplesConfig `mapstructure:"samples" toml:"samples"`
	Send    SendConfig    `mapstructure:"send" toml:"send"`
}

// StorageConfig selects the persistence adapter.
type StorageConfig struct {
	// Driver is bbolt, sqlite or memory.
	Driver string `mapstructure:"driver" toml:"driver"`
	// Path is the database file. Empty derives it from the project root.
	Path string `mapstructure:"path" toml:"path,omitempty"`
}

// SpoolConfig controls the spool directory consumer.
type SpoolConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Dir     string `mapstructure:"dir" toml:"dir,omitempty"`
}

// HTTPConfig controls the HTTP API.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	// Port 0 derives a stable port from the project root.
	Port int `mapstructure:"port" toml:"port"`
}

// LogConfig controls zap output.
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Level string `mapstructure:"level" toml:"level"`
}

// SamplesConfig names a sample file imported when the daemon starts.
type SamplesConfig struct {
	File string `mapstructure:"file" toml:"file,omitempty"`
}

// SendConfig controls `doclink send`.
type SendConfig struct {
	// Rate is records per second; 0 is unlimited.
	Rate      float64 `mapstructure:"rate" toml:"rate"`
	BatchSize int     `mapstructure:"batch_size" toml:"batch_size"`
}

// LoadOptions locates configuration sources.
type LoadOptions struct {
	// Root is the project root; <Root>/.doclink/config.toml is read if present.
	Root string
	// File is an explicit config file merged over the project file.
	File string
}

// ProjectFile returns the project config path for root.
func ProjectFile(root string) string {
	return filepath.Join(root, ".doclink", FileName)
}

// NewViper returns a viper instance with defaults and environment binding,
// and the config files from opts merged in.
func NewViper(opts LoadOptions) (*viper.Viper, error) {
	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	v.SetConfigType("toml")

	var files []string
	if opts.Root != "" {
		if p := ProjectFile(opts.Root); fileExists(p) {
			files = append(files, p)
		}
	}
	if opts.File != "" {
		if !fileExists(opts.File) {
			return nil, fmt.Errorf("config file %s not found", opts.File)
		}
		files = append(files, opts.File)
	}

	for _, f := range files {
		v.SetConfigFile(f)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", f, err)
		}
	}
	return v, nil
}

// Load reads, unmarshals and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v, err := NewViper(opts)
	if err != nil {
		return nil, err
	}
	return LoadWithViper(v)
}

// LoadWithViper unmarshals and validates from a prepared viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration built from defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
