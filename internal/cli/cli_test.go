package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/qor-network/qor/internal/app/market"
	"github.com/qor-network/qor/internal/domain"
)

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("qor %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func mustRunJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out := mustRun(t, append(args, "--json")...)
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("qor %s: decode %q: %v", strings.Join(args, " "), out, err)
	}
}

func TestMissionLifecycle(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())

	var robot domain.Robot
	mustRunJSON(t, &robot, "robot", "register", "rover", "--stake", "0.01", "--capability", "lidar", "--as", "operator")
	if !robot.Active || robot.Stake != 1_000_000 {
		t.Fatalf("robot = %+v, want active with stake 1000000", robot)
	}

	var task domain.Task
	mustRunJSON(t, &task, "task", "create", "--robot", robot.ID, "--title", "Sweep",
		"--waypoint", "52.52,13.405", "--waypoint", "48.85,2.35,scan",
		"--required-score", "80", "--as", "operator")
	if len(task.Waypoints) != 2 || task.Waypoints[1].Action != "scan" {
		t.Fatalf("waypoints = %+v", task.Waypoints)
	}

	mustRun(t, "task", "buy", task.ID, "--side", "yes", "--amount", "0.0000001", "--as", "alice")
	mustRun(t, "task", "buy", task.ID, "--side", "no", "--amount", "0.00000005", "--as", "bob")
	mustRun(t, "task", "solution", task.ID, "--uri", "ipfs://route", "--score", "85", "--as", "optimizer")

	out := mustRun(t, "oracle", "verify", task.ID, "--evidence", "ipfs://evidence", "--as", "oracle")
	if !strings.Contains(out, "verified") {
		t.Errorf("verify output = %q", out)
	}

	var red market.Redemption
	mustRunJSON(t, &red, "task", "redeem", task.ID, "--as", "alice")
	if red.Payout != 15 {
		t.Errorf("payout = %d, want 15", red.Payout)
	}

	out = mustRun(t, "ledger", "alice")
	if !strings.Contains(out, "user:alice balance: 0.00000005") {
		t.Errorf("ledger output = %q", out)
	}

	out = mustRun(t, "task", "show", task.ID)
	if !strings.Contains(out, "YES wins") {
		t.Errorf("task show output = %q", out)
	}
}

func TestGovernanceRaisesMinStake(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())

	var robot domain.Robot
	mustRunJSON(t, &robot, "robot", "register", "rover", "--stake", "0.01", "--as", "operator")

	var p domain.Proposal
	mustRunJSON(t, &p, "dao", "propose", "--title", "Raise stake", "--action", "registry.min_stake=2000000", "--as", "alice")

	if _, err := run(t, "dao", "execute", p.ID); err == nil {
		t.Fatal("execute without quorum should fail")
	}
	for _, voter := range []string{"v1", "v2", "v3", "v4", "v5"} {
		mustRun(t, "dao", "vote", p.ID, "--support", "yes", "--as", voter)
	}
	mustRunJSON(t, &p, "dao", "execute", p.ID)
	if p.Status != domain.ProposalExecuted {
		t.Fatalf("status = %s, want EXECUTED", p.Status)
	}

	mustRunJSON(t, &robot, "robot", "show", robot.ID)
	if robot.Active {
		t.Error("robot below the raised minimum should be inactive")
	}

	mustRunJSON(t, &robot, "robot", "update", robot.ID, "--add-stake", "0.01", "--as", "operator")
	if !robot.Active {
		t.Error("topped-up robot should be active again")
	}
}

func TestCommandsRequireIdentity(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())

	_, err := run(t, "robot", "register", "rover", "--stake", "0.01")
	if err == nil || !strings.Contains(err.Error(), "identity required") {
		t.Errorf("err = %v, want identity required", err)
	}
}

func TestRejectsExcessPrecision(t *testing.T) {
	t.Setenv("QOR_HOME", t.TempDir())

	_, err := run(t, "robot", "register", "rover", "--stake", "0.000000001", "--as", "operator")
	if err == nil || !strings.Contains(err.Error(), "--stake") {
		t.Errorf("err = %v, want --stake precision error", err)
	}
}

func TestParseWaypoint(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Waypoint
		wantErr bool
	}{
		{in: "52.5,13.4", want: domain.Waypoint{Latitude: 52.5, Longitude: 13.4, Action: "visit"}},
		{in: "-33.9, 151.2, photograph", want: domain.Waypoint{Latitude: -33.9, Longitude: 151.2, Action: "photograph"}},
		{in: "91,0", wantErr: true},
		{in: "0,181", wantErr: true},
		{in: "north,0", wantErr: true},
		{in: "1", wantErr: true},
		{in: "1,2,3,4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWaypoint(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseWaypoint(%q) = %+v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseWaypoint(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseWaypoint(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDeadline(t *testing.T) {
	before := time.Now()
	got, err := parseDeadline("48h")
	if err != nil {
		t.Fatalf("parseDeadline(48h) error: %v", err)
	}
	if got.Before(before.Add(48*time.Hour)) || got.After(time.Now().Add(48*time.Hour)) {
		t.Errorf("parseDeadline(48h) = %v, want ~48h from now", got)
	}

	got, err = parseDeadline("2030-01-02T03:04:05Z")
	if err != nil {
		t.Fatalf("parseDeadline(RFC 3339) error: %v", err)
	}
	if !got.Equal(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("parseDeadline = %v", got)
	}

	if _, err := parseDeadline("next week"); err == nil {
		t.Error("parseDeadline(next week) should fail")
	}
}
