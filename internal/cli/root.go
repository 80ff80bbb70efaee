// Package cli implements the qor command-line interface using Cobra.
// Commands open the ledger in-process; `qor serve` exposes the same ledger
// over HTTP.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&identity, "as", os.Getenv("QOR_IDENTITY"), "Caller identity (defaults to $QOR_IDENTITY)")
	rootCmd.PersistentFlags().StringVar(&idemKey, "key", "", "Idempotency key; repeating a command with the same key replays its result")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log ledger events to stderr")
}

var (
	identity   string
	idemKey    string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "qor",
	Short: "QOR — coordination ledger for robot missions",
	Long: `QOR records robot identities, mission prediction markets and governance.

Robots register with a stake, missions become YES/NO markets, an oracle
settles them against the optimizer's score, and stakeholders vote on
network parameters.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
