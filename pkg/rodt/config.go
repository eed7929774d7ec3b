package rodt

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries the session-level settings spec §9 calls out to pull into
// an explicit, passed-around value rather than process-wide globals:
// window size, timeout, the default maximum payload size a receiver
// offers, plus the ambient logging and metrics settings that sit outside
// the core's tested contract.
type Config struct {
	WindowSize     int           `yaml:"window_size"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxPayloadSize int           `yaml:"max_payload_size"`
	LogLevel       string        `yaml:"log_level"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

// DefaultConfig returns the built-in defaults, overridden by LoadConfig
// when a file or environment variables are present.
func DefaultConfig() Config {
	return Config{
		WindowSize:     4,
		Timeout:        2 * time.Second,
		MaxPayloadSize: 512,
		LogLevel:       "info",
		MetricsAddr:    ":9090",
	}
}

// LoadConfig builds a Config starting from DefaultConfig, layering a YAML
// file at path (if it exists — a missing file is not an error), a .env
// file in the working directory (via godotenv, ignored if absent), and
// finally RODT_-prefixed environment variable overrides, in that order of
// increasing precedence. This mirrors the teacher's client.LoadConfig
// layering (file, then environment) referenced in
// pkg/client/userd/service.go.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.Wrapf(err, "parsing config file %q", path)
			}
		case os.IsNotExist(err):
			// No config file is not an error; defaults stand.
		default:
			return Config{}, errors.Wrapf(err, "reading config file %q", path)
		}
	}

	// A missing .env is not an error either; godotenv.Load returns one in
	// that case and we deliberately ignore it.
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("RODT_WINDOW_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing RODT_WINDOW_SIZE=%q", v)
		}
		cfg.WindowSize = n
	}
	if v, ok := os.LookupEnv("RODT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing RODT_TIMEOUT=%q", v)
		}
		cfg.Timeout = d
	}
	if v, ok := os.LookupEnv("RODT_MAX_PAYLOAD_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing RODT_MAX_PAYLOAD_SIZE=%q", v)
		}
		cfg.MaxPayloadSize = n
	}
	if v, ok := os.LookupEnv("RODT_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("RODT_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}

	return cfg, nil
}

// Validate checks the invariants spec §3 places on session state: a
// positive window size and a positive timeout. It reproduces
// original_source/client.py's "window_size < 1 or timeout <= 0" guard.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("rodt: window size must be >= 1, got %d", c.WindowSize)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("rodt: timeout must be > 0, got %s", c.Timeout)
	}
	if c.MaxPayloadSize < 0 {
		return fmt.Errorf("rodt: max payload size must be >= 0, got %d", c.MaxPayloadSize)
	}
	return nil
}
