// Package config loads and validates the orchestration config: the typed
// settings structure that supplies every tunable named by the concurrency
// and external-interfaces sections, following the teacher's own shape of an
// applyDefaults pass plus a validate pass that accumulates every error via
// errors.Join rather than failing fast on the first one.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be expressed in YAML as a string
// like "5m" or "30s" rather than a raw nanosecond count.
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Config is the orchestration process's typed configuration.
type Config struct {
	WorkspaceRoot string `yaml:"workspace_root"`

	SnapshotTTL           Duration `yaml:"snapshot_ttl"`
	SnapshotSweepInterval Duration `yaml:"snapshot_sweep_interval"`
	SessionTTL            Duration `yaml:"session_ttl"`
	SessionSweepInterval  Duration `yaml:"session_sweep_interval"`
	RevisionCacheTTL      Duration `yaml:"revision_cache_ttl"`

	LogLevel string `yaml:"log_level"`

	// HTTPAddr, if non-empty, enables the operator HTTP API on that bind
	// address (e.g. "127.0.0.1:8080").
	HTTPAddr string `yaml:"http_addr"`
	// JWTPublicKeyPath, if non-empty, requires an RS256 bearer token on
	// every /api/v1 route of the operator HTTP API.
	JWTPublicKeyPath string `yaml:"jwt_public_key_path"`

	// LedgerIndexDSN is either a filesystem path (embedded SQLite
	// backend, the default) or a postgres:// connection string (the
	// optional external mirror backend).
	LedgerIndexDSN string `yaml:"ledger_index_dsn"`
}

var validLogLevels = map[string]struct{}{
	"debug": {}, "info": {}, "warn": {}, "error": {},
}

func applyDefaults(cfg *Config) {
	if cfg.SnapshotTTL.Duration == 0 {
		cfg.SnapshotTTL = Duration{5 * time.Minute}
	}
	if cfg.SnapshotSweepInterval.Duration == 0 {
		cfg.SnapshotSweepInterval = Duration{60 * time.Second}
	}
	if cfg.SessionTTL.Duration == 0 {
		cfg.SessionTTL = Duration{30 * time.Minute}
	}
	if cfg.SessionSweepInterval.Duration == 0 {
		cfg.SessionSweepInterval = Duration{300 * time.Second}
	}
	if cfg.RevisionCacheTTL.Duration == 0 {
		cfg.RevisionCacheTTL = Duration{5 * time.Second}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LedgerIndexDSN == "" && cfg.WorkspaceRoot != "" {
		cfg.LedgerIndexDSN = filepath.Join(cfg.WorkspaceRoot, ".orchestration", "ledger_index.db")
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.WorkspaceRoot == "" {
		errs = append(errs, errors.New("workspace_root must not be empty"))
	}
	if _, ok := validLogLevels[cfg.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("invalid log_level: %q", cfg.LogLevel))
	}
	if cfg.SnapshotTTL.Duration <= 0 {
		errs = append(errs, errors.New("snapshot_ttl must be positive"))
	}
	if cfg.SnapshotSweepInterval.Duration <= 0 {
		errs = append(errs, errors.New("snapshot_sweep_interval must be positive"))
	}
	if cfg.SessionTTL.Duration <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if cfg.SessionSweepInterval.Duration <= 0 {
		errs = append(errs, errors.New("session_sweep_interval must be positive"))
	}
	if cfg.RevisionCacheTTL.Duration <= 0 {
		errs = append(errs, errors.New("revision_cache_ttl must be positive"))
	}
	if cfg.JWTPublicKeyPath != "" && cfg.HTTPAddr == "" {
		errs = append(errs, errors.New("jwt_public_key_path set without http_addr"))
	}

	return errors.Join(errs...)
}

// LoadConfig reads, parses, defaults, and validates the orchestration
// config at path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
