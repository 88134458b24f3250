// Package config loads the signalboard settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/anggasct/signalcycle"
	"github.com/anggasct/signalcycle/pkg/remote"
)

// DefaultFile is read when no --config flag is given
const DefaultFile = "signalboard.yaml"

// Config holds every setting of the dashboard
type Config struct {
	// APIURL is the base address of the vehicle-counting backend. Empty runs offline.
	APIURL         string        `yaml:"api_url"`
	UploadPath     string        `yaml:"upload_path"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	TotalTime      int           `yaml:"total_time"`
	LogLevel       string        `yaml:"log_level"`
	// HTMLOutput is where the HTML board is written on every render. Empty disables it.
	HTMLOutput string `yaml:"html_output"`
	Listen     string `yaml:"listen"`
}

// Default returns the settings used when the file leaves a field out
func Default() Config {
	return Config{
		APIURL:         "http://localhost:8000",
		UploadPath:     remote.DefaultUploadPath,
		RequestTimeout: remote.DefaultTimeout,
		TotalTime:      signalcycle.DefaultTotalTime,
		LogLevel:       zerolog.LevelInfoValue,
		Listen:         ":8080",
	}
}

// Load reads filename over the defaults. A missing file yields the defaults
// when allowMissing is set.
func Load(filename string, allowMissing bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}

// Validate checks the settings for values the dashboard cannot run with
func (c Config) Validate() error {
	if c.TotalTime <= 0 {
		return signalcycle.NewValidationError("total_time", c.TotalTime, "must be a positive number of seconds")
	}
	if c.RequestTimeout <= 0 {
		return signalcycle.NewValidationError("request_timeout", c.RequestTimeout, "must be positive")
	}
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return signalcycle.NewValidationError("api_url", c.APIURL, "must be an absolute http(s) URL")
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return signalcycle.NewValidationError("log_level", c.LogLevel, err.Error())
	}
	return nil
}

// Level returns the zerolog level for LogLevel, defaulting to info
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Offline reports whether no backend is configured
func (c Config) Offline() bool {
	return c.APIURL == ""
}

// RemoteOptions returns the client options derived from the settings
func (c Config) RemoteOptions() []remote.Option {
	return []remote.Option{
		remote.WithUploadPath(c.UploadPath),
		remote.WithTimeout(c.RequestTimeout),
	}
}

// Write stores the settings as YAML
func (c Config) Write(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", filename, err)
	}
	return nil
}
