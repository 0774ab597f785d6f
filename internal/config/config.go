// Package config loads runtime settings from YAML with environment
// overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miltondw/cuentas-ingeocimyc-sub001/internal/wire"
)

// Backend names a durable store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
)

// Environment variables that override file settings.
const (
	EnvAPIURL   = "COMPOSE_API_URL"
	EnvDB       = "COMPOSE_DB"
	EnvBackend  = "COMPOSE_BACKEND"
	EnvStrategy = "COMPOSE_STRATEGY"
	EnvOffline  = "COMPOSE_OFFLINE"
)

// Config holds every runtime setting.
type Config struct {
	APIURL  string        `yaml:"api_url"`
	Timeout time.Duration `yaml:"timeout"`
	// Offline forces the offline path regardless of connectivity.
	Offline bool `yaml:"offline"`

	Backend Backend `yaml:"backend"`
	// DBPath is the SQLite file or Badger directory. Empty picks a
	// backend-specific default.
	DBPath     string        `yaml:"db"`
	SessionKey string        `yaml:"session_key"`
	Debounce   time.Duration `yaml:"debounce"`

	// Catalog is a CUE catalog file. Empty fetches the catalog from the API.
	Catalog   string        `yaml:"catalog"`
	Strategy  wire.Strategy `yaml:"strategy"`
	NoticeTTL time.Duration `yaml:"notice_ttl"`

	DrainRate        float64 `yaml:"drain_rate"`
	DrainMaxAttempts int     `yaml:"drain_max_attempts"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:     "http://localhost:5051/api",
		Timeout:    30 * time.Second,
		Backend:    BackendSQLite,
		SessionKey: "serviceRequestState",
		Debounce:   500 * time.Millisecond,
		Strategy:   wire.FirstInstance,
		NoticeTTL:  3 * time.Second,
		DrainRate:  2,
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeInto(&cfg, data); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decodeInto(&cfg, data); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeInto(cfg *Config, data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.APIURL = v
	}
	if v, ok := lookup(EnvDB); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = Backend(v)
	}
	if v, ok := lookup(EnvStrategy); ok && v != "" {
		c.Strategy = wire.Strategy(v)
	}
	if v, ok := lookup(EnvOffline); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvOffline, err)
		}
		c.Offline = b
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("api_url is required"))
	}
	switch c.Backend {
	case BackendSQLite, BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if _, err := wire.ParseStrategy(string(c.Strategy)); err != nil {
		errs = append(errs, err)
	}
	if c.SessionKey == "" {
		errs = append(errs, errors.New("session_key is required"))
	}
	if c.Debounce < 0 {
		errs = append(errs, errors.New("debounce must not be negative"))
	}
	if c.NoticeTTL < 0 {
		errs = append(errs, errors.New("notice_ttl must not be negative"))
	}
	if c.DrainRate <= 0 {
		errs = append(errs, errors.New("drain_rate must be positive"))
	}
	if c.DrainMaxAttempts < 0 {
		errs = append(errs, errors.New("drain_max_attempts must not be negative"))
	}
	return errors.Join(errs...)
}

// StorePath returns DBPath or the backend's default location.
func (c Config) StorePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	if c.Backend == BackendBadger {
		return "compose-badger"
	}
	return "compose.db"
}
