package daemon

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/qor-network/qor/internal/app/governance"
	"github.com/qor-network/qor/internal/app/registry"
	"github.com/qor-network/qor/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8645 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8645)
	}
	if cfg.Ledger.MinStake != 1_000_000 {
		t.Errorf("Ledger.MinStake = %d, want 1000000", cfg.Ledger.MinStake)
	}
	if cfg.Ledger.Quorum != 5 {
		t.Errorf("Ledger.Quorum = %d, want 5", cfg.Ledger.Quorum)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfig_Policy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ledger.VoteWeighting = "flat"
	cfg.Auth.OracleCallers = []string{"oracle-1"}

	p := cfg.Policy()
	if p.VoteWeighting != domain.WeightFlat {
		t.Errorf("VoteWeighting = %q, want flat", p.VoteWeighting)
	}
	if p.ReputationFailure != -5 {
		t.Errorf("ReputationFailure = %d, want -5", p.ReputationFailure)
	}
	if len(p.OracleCallers) != 1 || p.OracleCallers[0] != "oracle-1" {
		t.Errorf("OracleCallers = %v", p.OracleCallers)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"negative min stake", func(c *Config) { c.Ledger.MinStake = -1 }, "min_stake"},
		{"zero quorum", func(c *Config) { c.Ledger.Quorum = 0 }, "quorum"},
		{"weighting", func(c *Config) { c.Ledger.VoteWeighting = "quadratic" }, "vote_weighting"},
		{"decimals", func(c *Config) { c.Ledger.CurrencyDecimals = 30 }, "currency_decimals"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.API.Port != 8645 {
		t.Errorf("API.Port = %d, want default", cfg.API.Port)
	}
}

func TestSaveLoadConfig(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.API.Port = 9000
	cfg.Ledger.MinStake = 42
	cfg.Auth.OptimizerCallers = []string{"opt"}
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got.API.Port != 9000 || got.Ledger.MinStake != 42 {
		t.Errorf("loaded port=%d min_stake=%d, want 9000/42", got.API.Port, got.Ledger.MinStake)
	}
	if len(got.Auth.OptimizerCallers) != 1 {
		t.Errorf("OptimizerCallers = %v", got.Auth.OptimizerCallers)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Ledger.Quorum = 0
	if err := SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() should reject quorum 0")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"2m", 2 * time.Minute},
		{"", time.Minute},
		{"soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseDuration(tt.input, time.Minute); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf, "node-a")

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info event logged at warn level")
	}
	if !strings.Contains(out, `"node":"node-a"`) || !strings.Contains(out, "shown") {
		t.Errorf("log output = %q", out)
	}
}

// ─── Daemon wiring ──────────────────────────────────────────────────────────

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "disabled"
	cfg.Telemetry.Prometheus = false
	return cfg
}

func TestNewWithConfig_ReplaysGovernance(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())
	ctx := context.Background()

	d, err := NewWithConfig(testConfig())
	if err != nil {
		t.Fatalf("NewWithConfig() error: %v", err)
	}
	p, err := d.Core.Governance.Propose(ctx, "", governance.NewProposal{
		Title:    "Raise stake",
		Action:   registry.MinStakeAction + "=3000000",
		Proposer: "alice",
	})
	if err != nil {
		t.Fatalf("Propose() error: %v", err)
	}
	for _, v := range []string{"a", "b", "c", "d", "e"} {
		if _, err := d.Core.Governance.Vote(ctx, "", p.ID, v, true, 1); err != nil {
			t.Fatalf("Vote(%s) error: %v", v, err)
		}
	}
	if _, err := d.Core.Governance.Execute(ctx, "", p.ID); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	d.Close()

	reopened, err := NewWithConfig(testConfig())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	if got := reopened.Core.Registry.MinStake(); got != 3_000_000 {
		t.Errorf("MinStake after restart = %d, want 3000000", got)
	}
}

func TestNewWithConfig_RejectsInvalid(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())
	cfg := testConfig()
	cfg.Ledger.VoteWeighting = "quadratic"

	if _, err := NewWithConfig(cfg); err == nil {
		t.Error("NewWithConfig() should reject an invalid config")
	}
}
