// Package daemon manages the QOR daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/units"
)

// Config holds all daemon configuration.
type Config struct {
	Node      NodeConfig      `toml:"node"`
	API       APIConfig       `toml:"api"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Auth      AuthConfig      `toml:"auth"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// NodeConfig identifies this node.
type NodeConfig struct {
	ID string `toml:"id"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	CORSOrigins    []string `toml:"cors_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

// LedgerConfig holds the network policy. Amounts are minor units.
type LedgerConfig struct {
	MinStake          int64  `toml:"min_stake"`
	Quorum            int64  `toml:"quorum"`
	ReputationSuccess int64  `toml:"reputation_success"`
	ReputationFailure int64  `toml:"reputation_failure"`
	VoteWeighting     string `toml:"vote_weighting"`
	CurrencyDecimals  int32  `toml:"currency_decimals"`
}

// AuthConfig restricts privileged identities. Empty lists allow anyone.
type AuthConfig struct {
	OracleCallers    []string `toml:"oracle_callers"`
	OptimizerCallers []string `toml:"optimizer_callers"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// TelemetryConfig controls metrics, tracing and health checks.
type TelemetryConfig struct {
	Prometheus     bool   `toml:"prometheus"`
	Tracing        string `toml:"tracing"` // "none" or "stdout"
	HealthInterval string `toml:"health_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	p := domain.DefaultPolicy()
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8645,
			RequestTimeout: "30s",
		},
		Ledger: LedgerConfig{
			MinStake:          p.MinStake,
			Quorum:            p.Quorum,
			ReputationSuccess: p.ReputationSuccess,
			ReputationFailure: p.ReputationFailure,
			VoteWeighting:     string(p.VoteWeighting),
			CurrencyDecimals:  units.DefaultDecimals,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			Tracing:        "none",
			HealthInterval: "60s",
		},
	}
}

// Validate rejects configurations the ledgers cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.Ledger.MinStake < 0 {
		errs = append(errs, fmt.Errorf("ledger.min_stake must not be negative"))
	}
	if c.Ledger.Quorum <= 0 {
		errs = append(errs, fmt.Errorf("ledger.quorum must be positive"))
	}
	switch domain.VoteWeighting(c.Ledger.VoteWeighting) {
	case domain.WeightDeclared, domain.WeightFlat:
	default:
		errs = append(errs, fmt.Errorf("ledger.vote_weighting %q must be declared or flat", c.Ledger.VoteWeighting))
	}
	if c.Ledger.CurrencyDecimals < 0 || c.Ledger.CurrencyDecimals > 18 {
		errs = append(errs, fmt.Errorf("ledger.currency_decimals %d out of range", c.Ledger.CurrencyDecimals))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Policy converts the ledger and auth sections into ledger policy.
func (c Config) Policy() domain.Policy {
	return domain.Policy{
		MinStake:          c.Ledger.MinStake,
		Quorum:            c.Ledger.Quorum,
		ReputationSuccess: c.Ledger.ReputationSuccess,
		ReputationFailure: c.Ledger.ReputationFailure,
		VoteWeighting:     domain.VoteWeighting(c.Ledger.VoteWeighting),
		OracleCallers:     c.Auth.OracleCallers,
		OptimizerCallers:  c.Auth.OptimizerCallers,
	}
}

// LoadConfig reads config from $QOR_HOME/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(qorHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes the config to $QOR_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(qorHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// qorHome returns the QOR data directory.
func qorHome() string {
	if env := os.Getenv("QOR_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".qor")
}

// Home is exported for use by other packages.
func Home() string {
	return qorHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
