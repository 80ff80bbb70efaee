package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/qor-network/qor/internal/daemon"
	"github.com/qor-network/qor/internal/domain"
	"github.com/qor-network/qor/internal/infra/units"
)

// withDaemon opens the ledger in-process for the duration of fn.
func withDaemon(fn func(d *daemon.Daemon) error) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}
	if !verbose {
		cfg.Logging.Level = "warn"
	}
	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(d)
}

// caller returns the --as identity or fails when none is set.
func caller() (string, error) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return "", errors.New("identity required: pass --as or set QOR_IDENTITY")
	}
	return id, nil
}

// amount parses a decimal flag into minor units.
func amount(d *daemon.Daemon, flag, value string) (int64, error) {
	v, err := units.Parse(value, d.Config.Ledger.CurrencyDecimals)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}
	return v, nil
}

func display(d *daemon.Daemon, minor int64) string {
	return units.Format(minor, d.Config.Ledger.CurrencyDecimals)
}

// parseDeadline accepts a duration from now ("48h") or an RFC 3339 time.
func parseDeadline(s string) (time.Time, error) {
	if dur, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(dur), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--deadline %q: want a duration like 48h or an RFC 3339 time", s)
	}
	return t, nil
}

// parseWaypoint reads "lat,lng[,action]".
func parseWaypoint(s string) (domain.Waypoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return domain.Waypoint{}, domain.Invalid(domain.ErrInvalidWaypoint, "%q: want lat,lng[,action]", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Waypoint{}, domain.Invalid(domain.ErrInvalidWaypoint, "%q: latitude: %v", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Waypoint{}, domain.Invalid(domain.ErrInvalidWaypoint, "%q: longitude: %v", s, err)
	}
	wp := domain.Waypoint{Latitude: lat, Longitude: lng, Action: domain.DefaultWaypointAction}
	if len(parts) == 3 {
		wp.Action = strings.TrimSpace(parts[2])
	}
	return wp, wp.Validate()
}

// printJSON writes v indented.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table returns a tabwriter over the command's output.
func table(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
}

func timeOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
